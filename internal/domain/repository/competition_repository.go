package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"time"

	sq "github.com/Masterminds/squirrel"
)

type CompetitionFilter struct {
	Status       model.CompetitionStatus
	ExcludeDraft bool
	OrganizerID  string
	Search       string
	Limit        int
	Offset       int
}

type CompetitionRepository interface {
	Create(ctx context.Context, c *model.Competition) error
	FindByID(ctx context.Context, id string) (*model.Competition, error)
	FindBySlug(ctx context.Context, slug string) (*model.Competition, error)
	List(ctx context.Context, f CompetitionFilter) ([]model.Competition, int, error)
	// Update stores the editable fields of c. It fails with
	// common.ErrInvalidState when c.MaxTeams is below the number of active
	// teams or teamSizeLimit is below the size of the largest team.
	Update(ctx context.Context, c *model.Competition, teamSizeLimit int) error
	UpdateStatus(ctx context.Context, id string, status model.CompetitionStatus, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type pgCompetitionRepository struct {
	db *sql.DB
}

func NewPgCompetitionRepository(db *sql.DB) CompetitionRepository {
	return &pgCompetitionRepository{db: db}
}

const competitionColumns = `c.id, c.slug, c.title, c.description, c.location, c.start_date, c.end_date,
	c.registration_deadline, c.organizer_id, c.organizer_name, c.status, c.max_teams, c.max_team_size,
	c.prize_pool, c.published_at, c.created_at, c.updated_at`

func scanCompetition(row interface{ Scan(...any) error }, c *model.Competition) error {
	return row.Scan(&c.ID, &c.Slug, &c.Title, &c.Description, &c.Location, &c.StartDate, &c.EndDate,
		&c.RegistrationDeadline, &c.OrganizerID, &c.OrganizerName, &c.Status, &c.MaxTeams, &c.MaxTeamSize,
		&c.PrizePool, &c.PublishedAt, &c.CreatedAt, &c.UpdatedAt)
}

func (r *pgCompetitionRepository) Create(ctx context.Context, c *model.Competition) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `INSERT INTO competitions (id, slug, title, description, location, start_date, end_date,
		              registration_deadline, organizer_id, organizer_name, status, max_teams, max_team_size, prize_pool)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		          RETURNING created_at, updated_at`
		err := tx.QueryRowContext(ctx, query, c.ID, c.Slug, c.Title, c.Description, c.Location, c.StartDate, c.EndDate,
			c.RegistrationDeadline, c.OrganizerID, c.OrganizerName, c.Status, c.MaxTeams, c.MaxTeamSize, c.PrizePool,
		).Scan(&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			if common.IsUniqueViolation(err) {
				return fmt.Errorf("competition with this slug already exists: %w", common.ErrConflict)
			}
			return fmt.Errorf("pgCompetitionRepository.Create: %w", err)
		}
		return replaceJudges(ctx, tx, c.ID, c.Judges)
	})
}

func replaceJudges(ctx context.Context, tx *sql.Tx, competitionID string, judges []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM competition_judges WHERE competition_id = $1`, competitionID); err != nil {
		return fmt.Errorf("clear judges: %w", err)
	}
	if len(judges) == 0 {
		return nil
	}
	ins := psql.Insert("competition_judges").Columns("competition_id", "judge_email")
	for _, j := range judges {
		ins = ins.Values(competitionID, j)
	}
	query, args, err := ins.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("build judges insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert judges: %w", err)
	}
	return nil
}

func (r *pgCompetitionRepository) FindByID(ctx context.Context, id string) (*model.Competition, error) {
	return r.findOne(ctx, "FindByID", "c.id = $1", id)
}

func (r *pgCompetitionRepository) FindBySlug(ctx context.Context, slug string) (*model.Competition, error) {
	return r.findOne(ctx, "FindBySlug", "c.slug = $1", slug)
}

func (r *pgCompetitionRepository) findOne(ctx context.Context, op, where string, arg string) (*model.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions c WHERE ` + where
	c := &model.Competition{}
	if err := scanCompetition(r.db.QueryRowContext(ctx, query, arg), c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgCompetitionRepository.%s: %w", op, err)
	}
	list := []model.Competition{*c}
	if err := loadJudges(ctx, r.db, list); err != nil {
		return nil, fmt.Errorf("pgCompetitionRepository.%s: %w", op, err)
	}
	return &list[0], nil
}

func (r *pgCompetitionRepository) List(ctx context.Context, f CompetitionFilter) ([]model.Competition, int, error) {
	base := psql.Select().From("competitions c")
	if f.Status != "" {
		base = base.Where(sq.Eq{"c.status": f.Status})
	}
	if f.ExcludeDraft {
		base = base.Where(sq.NotEq{"c.status": model.CompetitionDraft})
	}
	if f.OrganizerID != "" {
		base = base.Where(sq.Eq{"c.organizer_id": f.OrganizerID})
	}
	if f.Search != "" {
		like := "%" + escapeLike(f.Search) + "%"
		base = base.Where(sq.Or{sq.ILike{"c.title": like}, sq.ILike{"c.description": like}, sq.ILike{"c.location": like}})
	}

	// Count total matching competitions (without limit/offset)
	countQuery, countArgs, err := base.Column("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("pgCompetitionRepository.List build count: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgCompetitionRepository.List count: %w", err)
	}

	listQuery := base.Columns(competitionColumns).OrderBy("c.start_date ASC", "c.id ASC")
	if f.Limit > 0 {
		listQuery = listQuery.Limit(uint64(f.Limit)).Offset(uint64(f.Offset))
	}
	query, args, err := listQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("pgCompetitionRepository.List build: %w", err)
	}
	competitions, err := r.query(ctx, "List", query, args...)
	if err != nil {
		return nil, 0, err
	}
	return competitions, total, nil
}

func (r *pgCompetitionRepository) query(ctx context.Context, op, query string, args ...any) ([]model.Competition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgCompetitionRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	competitions := []model.Competition{}
	for rows.Next() {
		var c model.Competition
		if err := scanCompetition(rows, &c); err != nil {
			return nil, fmt.Errorf("pgCompetitionRepository.%s scan: %w", op, err)
		}
		competitions = append(competitions, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgCompetitionRepository.%s rows.Err: %w", op, err)
	}
	if err := loadJudges(ctx, r.db, competitions); err != nil {
		return nil, fmt.Errorf("pgCompetitionRepository.%s: %w", op, err)
	}
	return competitions, nil
}

// loadJudges fills Judges for every competition in place.
func loadJudges(ctx context.Context, q querier, competitions []model.Competition) error {
	if len(competitions) == 0 {
		return nil
	}
	index := make(map[string]int, len(competitions))
	ids := make([]string, 0, len(competitions))
	for i, c := range competitions {
		index[c.ID] = i
		ids = append(ids, c.ID)
	}
	query, args, err := psql.Select("competition_id", "judge_email").From("competition_judges").
		Where(sq.Eq{"competition_id": ids}).OrderBy("judge_email").ToSql()
	if err != nil {
		return fmt.Errorf("build judges query: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query judges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var competitionID, email string
		if err := rows.Scan(&competitionID, &email); err != nil {
			return fmt.Errorf("scan judge: %w", err)
		}
		i := index[competitionID]
		competitions[i].Judges = append(competitions[i].Judges, email)
	}
	return rows.Err()
}

func (r *pgCompetitionRepository) Update(ctx context.Context, c *model.Competition, teamSizeLimit int) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		// Blocks team creation and joins until the new caps are in place.
		var id string
		err := tx.QueryRowContext(ctx, `SELECT id FROM competitions WHERE id = $1 FOR UPDATE`, c.ID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("pgCompetitionRepository.Update lock: %w", err)
		}

		var activeTeams, largestTeam int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FILTER (WHERE status IN ('pending', 'approved')), COALESCE(MAX(members), 0)
			FROM (
				SELECT t.status, COUNT(m.member_email) AS members
				FROM teams t
				LEFT JOIN team_members m ON m.team_id = t.id
				WHERE t.competition_id = $1
				GROUP BY t.id, t.status
			) sizes`, c.ID).Scan(&activeTeams, &largestTeam)
		if err != nil {
			return fmt.Errorf("pgCompetitionRepository.Update count teams: %w", err)
		}
		if err := CheckCapacity(c.MaxTeams, teamSizeLimit, activeTeams, largestTeam); err != nil {
			return err
		}

		query := `UPDATE competitions SET
		              title = $1, description = $2, location = $3, start_date = $4, end_date = $5,
		              registration_deadline = $6, max_teams = $7, max_team_size = $8, prize_pool = $9,
		              updated_at = CURRENT_TIMESTAMP
		          WHERE id = $10
		          RETURNING updated_at`
		err = tx.QueryRowContext(ctx, query, c.Title, c.Description, c.Location, c.StartDate, c.EndDate,
			c.RegistrationDeadline, c.MaxTeams, c.MaxTeamSize, c.PrizePool, c.ID).Scan(&c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("pgCompetitionRepository.Update: %w", err)
		}
		return replaceJudges(ctx, tx, c.ID, c.Judges)
	})
}

// CheckCapacity returns common.ErrInvalidState when a competition holding
// activeTeams teams, the largest with largestTeam members, would no longer fit
// caps of maxTeams teams and teamSizeLimit members. A maxTeams of zero is
// uncapped.
func CheckCapacity(maxTeams, teamSizeLimit, activeTeams, largestTeam int) error {
	if maxTeams > 0 && activeTeams > maxTeams {
		return fmt.Errorf("competition already has %d active teams, cannot lower max_teams to %d: %w",
			activeTeams, maxTeams, common.ErrInvalidState)
	}
	if largestTeam > teamSizeLimit {
		return fmt.Errorf("a team already has %d members, cannot lower the team size limit to %d: %w",
			largestTeam, teamSizeLimit, common.ErrInvalidState)
	}
	return nil
}

func (r *pgCompetitionRepository) UpdateStatus(ctx context.Context, id string, status model.CompetitionStatus, at time.Time) error {
	query := `UPDATE competitions SET
	              status = $1,
	              published_at = CASE WHEN $1::text = 'published' THEN $2 ELSE published_at END,
	              updated_at = $2
	          WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, status, at, id)
	if err != nil {
		return fmt.Errorf("pgCompetitionRepository.UpdateStatus: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("pgCompetitionRepository.UpdateStatus rows affected: %w", err)
	} else if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Delete removes the competition; teams, memberships and judge assignments
// go with it through ON DELETE CASCADE in the same statement.
func (r *pgCompetitionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM competitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgCompetitionRepository.Delete: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("pgCompetitionRepository.Delete rows affected: %w", err)
	} else if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
