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

// JoinParams describes a join-by-code attempt. DefaultMaxSize caps teams of
// competitions that set no team size of their own.
type JoinParams struct {
	CompetitionID  string
	Code           string
	Email          string
	DefaultMaxSize int
	JoinedAt       time.Time
}

type TeamRepository interface {
	// CreateWithLeader inserts team with its leader as the only member. It fails
	// with common.ErrConflict when the leader already belongs to an active team
	// of the competition, common.ErrFull when the competition's max_teams active
	// teams exist, and ErrDuplicateCode when the code is taken.
	CreateWithLeader(ctx context.Context, team *model.Team) error
	// JoinByCode adds p.Email to the approved team holding p.Code and returns
	// the team id. Joining the caller's own active team again is a no-op
	// reported with joined == false.
	JoinByCode(ctx context.Context, p JoinParams) (teamID string, joined bool, err error)
	FindByID(ctx context.Context, id string) (*model.Team, error)
	// ListByCompetition lists teams of a competition; an empty status means all.
	ListByCompetition(ctx context.Context, competitionID string, status model.TeamStatus) ([]model.Team, error)
	ListByMember(ctx context.Context, email string) ([]model.Team, error)
	// ListPendingForOrganizer returns the most recent pending teams across the
	// organizer's competitions. An empty organizer means every competition.
	ListPendingForOrganizer(ctx context.Context, organizerEmail string, limit int) ([]model.Team, error)
	// UpdateStatus moves a pending team to status. It reports false when the
	// team was no longer pending.
	UpdateStatus(ctx context.Context, id string, status model.TeamStatus, at time.Time) (bool, error)
	RemoveMember(ctx context.Context, teamID, email string) error
	Delete(ctx context.Context, id string) error
}

type pgTeamRepository struct {
	db *sql.DB
}

func NewPgTeamRepository(db *sql.DB) TeamRepository {
	return &pgTeamRepository{db: db}
}

const teamColumns = `t.id, t.name, t.description, t.competition_id, t.leader_email, t.code, t.status,
	t.created_at, t.approved_at, t.updated_at, c.title, COALESCE(u.name, '')`

func teamSelect() sq.SelectBuilder {
	return psql.Select(teamColumns).
		From("teams t").
		Join("competitions c ON c.id = t.competition_id").
		LeftJoin("users u ON u.email = t.leader_email")
}

func scanTeam(row interface{ Scan(...any) error }, t *model.Team) error {
	return row.Scan(&t.ID, &t.Name, &t.Description, &t.CompetitionID, &t.Leader, &t.Code, &t.Status,
		&t.CreatedAt, &t.ApprovedAt, &t.UpdatedAt, &t.CompetitionTitle, &t.LeaderName)
}

// activeTeamOf returns the id of the pending or approved team email belongs
// to within competitionID, or "" when there is none.
func activeTeamOf(ctx context.Context, q querier, competitionID, email string) (string, error) {
	query := `SELECT t.id FROM teams t
	          JOIN team_members m ON m.team_id = t.id
	          WHERE t.competition_id = $1 AND m.member_email = $2 AND t.status IN ('pending', 'approved')
	          LIMIT 1`
	var id string
	err := q.QueryRowContext(ctx, query, competitionID, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find active team: %w", err)
	}
	return id, nil
}

func (r *pgTeamRepository) CreateWithLeader(ctx context.Context, team *model.Team) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockRegistration(ctx, tx, team.CompetitionID, team.Leader); err != nil {
			return err
		}

		// Serializes team creation per competition so the count below stays accurate.
		var maxTeams int
		err := tx.QueryRowContext(ctx, `SELECT max_teams FROM competitions WHERE id = $1 FOR UPDATE`, team.CompetitionID).
			Scan(&maxTeams)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("pgTeamRepository.CreateWithLeader lock competition: %w", err)
		}

		active, err := activeTeamOf(ctx, tx, team.CompetitionID, team.Leader)
		if err != nil {
			return fmt.Errorf("pgTeamRepository.CreateWithLeader: %w", err)
		}
		if active != "" {
			return fmt.Errorf("%s already has an active team in this competition: %w", team.Leader, common.ErrConflict)
		}

		if maxTeams > 0 {
			var count int
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM teams WHERE competition_id = $1 AND status IN ('pending', 'approved')`,
				team.CompetitionID).Scan(&count)
			if err != nil {
				return fmt.Errorf("pgTeamRepository.CreateWithLeader count teams: %w", err)
			}
			if count >= maxTeams {
				return fmt.Errorf("competition accepts at most %d teams: %w", maxTeams, common.ErrFull)
			}
		}

		query := `INSERT INTO teams (id, name, description, competition_id, leader_email, code, status, created_at, updated_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
		_, err = tx.ExecContext(ctx, query, team.ID, team.Name, team.Description, team.CompetitionID,
			team.Leader, team.Code, team.Status, team.CreatedAt)
		if err != nil {
			if common.IsUniqueViolation(err) {
				return ErrDuplicateCode
			}
			return fmt.Errorf("pgTeamRepository.CreateWithLeader insert team: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO team_members (team_id, member_email, joined_at) VALUES ($1, $2, $3)`,
			team.ID, team.Leader, team.CreatedAt)
		if err != nil {
			return fmt.Errorf("pgTeamRepository.CreateWithLeader insert leader: %w", err)
		}
		team.UpdatedAt = team.CreatedAt
		team.Members = []string{team.Leader}
		return nil
	})
}

func (r *pgTeamRepository) JoinByCode(ctx context.Context, p JoinParams) (string, bool, error) {
	var teamID string
	var joined bool
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockRegistration(ctx, tx, p.CompetitionID, p.Email); err != nil {
			return err
		}

		// Shared lock: joins run in parallel but not alongside a cap change.
		var maxTeamSize int
		err := tx.QueryRowContext(ctx, `SELECT max_team_size FROM competitions WHERE id = $1 FOR SHARE`, p.CompetitionID).
			Scan(&maxTeamSize)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("pgTeamRepository.JoinByCode lock competition: %w", err)
		}
		limit := (&model.Competition{MaxTeamSize: maxTeamSize}).TeamSizeLimit(p.DefaultMaxSize)

		active, err := activeTeamOf(ctx, tx, p.CompetitionID, p.Email)
		if err != nil {
			return fmt.Errorf("pgTeamRepository.JoinByCode: %w", err)
		}
		if active != "" {
			var target string
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM teams WHERE competition_id = $1 AND code = $2`, p.CompetitionID, p.Code).Scan(&target)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("pgTeamRepository.JoinByCode lookup code: %w", err)
			}
			if target == active {
				teamID = active
				return nil
			}
			return fmt.Errorf("%s already has an active team in this competition: %w", p.Email, common.ErrConflict)
		}

		err = tx.QueryRowContext(ctx,
			`SELECT id FROM teams WHERE competition_id = $1 AND code = $2 AND status = 'approved' FOR UPDATE`,
			p.CompetitionID, p.Code).Scan(&teamID)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrInvalidCode
		}
		if err != nil {
			return fmt.Errorf("pgTeamRepository.JoinByCode lock team: %w", err)
		}

		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM team_members WHERE team_id = $1`, teamID).Scan(&count); err != nil {
			return fmt.Errorf("pgTeamRepository.JoinByCode count members: %w", err)
		}
		if count >= limit {
			return fmt.Errorf("team already has %d members: %w", count, common.ErrFull)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO team_members (team_id, member_email, joined_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			teamID, p.Email, p.JoinedAt)
		if err != nil {
			return fmt.Errorf("pgTeamRepository.JoinByCode insert member: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("pgTeamRepository.JoinByCode rows affected: %w", err)
		} else if n == 0 {
			return nil
		}
		joined = true
		_, err = tx.ExecContext(ctx, `UPDATE teams SET updated_at = $1 WHERE id = $2`, p.JoinedAt, teamID)
		if err != nil {
			return fmt.Errorf("pgTeamRepository.JoinByCode touch team: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return teamID, joined, nil
}

func (r *pgTeamRepository) FindByID(ctx context.Context, id string) (*model.Team, error) {
	teams, err := r.list(ctx, "FindByID", teamSelect().Where(sq.Eq{"t.id": id}))
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return nil, common.ErrNotFound
	}
	return &teams[0], nil
}

func (r *pgTeamRepository) ListByCompetition(ctx context.Context, competitionID string, status model.TeamStatus) ([]model.Team, error) {
	q := teamSelect().Where(sq.Eq{"t.competition_id": competitionID})
	if status != "" {
		q = q.Where(sq.Eq{"t.status": status})
	}
	return r.list(ctx, "ListByCompetition", q.OrderBy("t.created_at ASC", "t.id ASC"))
}

func (r *pgTeamRepository) ListByMember(ctx context.Context, email string) ([]model.Team, error) {
	q := teamSelect().
		Where("EXISTS (SELECT 1 FROM team_members m WHERE m.team_id = t.id AND m.member_email = ?)", email).
		OrderBy("t.created_at DESC", "t.id ASC")
	return r.list(ctx, "ListByMember", q)
}

func (r *pgTeamRepository) ListPendingForOrganizer(ctx context.Context, organizerEmail string, limit int) ([]model.Team, error) {
	q := teamSelect().Where(sq.Eq{"t.status": model.TeamPending})
	if organizerEmail != "" {
		q = q.Where(sq.Eq{"c.organizer_id": organizerEmail})
	}
	q = q.OrderBy("t.created_at DESC", "t.id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return r.list(ctx, "ListPendingForOrganizer", q)
}

func (r *pgTeamRepository) list(ctx context.Context, op string, b sq.SelectBuilder) ([]model.Team, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgTeamRepository.%s build: %w", op, err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgTeamRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	teams := []model.Team{}
	for rows.Next() {
		var t model.Team
		if err := scanTeam(rows, &t); err != nil {
			return nil, fmt.Errorf("pgTeamRepository.%s scan: %w", op, err)
		}
		teams = append(teams, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTeamRepository.%s rows.Err: %w", op, err)
	}
	if err := loadMembers(ctx, r.db, teams); err != nil {
		return nil, fmt.Errorf("pgTeamRepository.%s: %w", op, err)
	}
	return teams, nil
}

// loadMembers fills Members and MemberNames in join order, leader first.
// Members without a stored profile are named by their email.
func loadMembers(ctx context.Context, q querier, teams []model.Team) error {
	if len(teams) == 0 {
		return nil
	}
	index := make(map[string]int, len(teams))
	ids := make([]string, 0, len(teams))
	for i, t := range teams {
		index[t.ID] = i
		ids = append(ids, t.ID)
	}
	query, args, err := psql.Select("m.team_id", "m.member_email", "COALESCE(u.name, '')").
		From("team_members m").
		Join("teams t ON t.id = m.team_id").
		LeftJoin("users u ON u.email = m.member_email").
		Where(sq.Eq{"m.team_id": ids}).
		OrderBy("m.team_id", "(m.member_email = t.leader_email) DESC", "m.joined_at ASC", "m.member_email ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("build members query: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var teamID, email, name string
		if err := rows.Scan(&teamID, &email, &name); err != nil {
			return fmt.Errorf("scan member: %w", err)
		}
		if name == "" {
			name = email
		}
		i := index[teamID]
		teams[i].Members = append(teams[i].Members, email)
		teams[i].MemberNames = append(teams[i].MemberNames, name)
	}
	return rows.Err()
}

func (r *pgTeamRepository) UpdateStatus(ctx context.Context, id string, status model.TeamStatus, at time.Time) (bool, error) {
	query := `UPDATE teams SET
	              status = $1,
	              approved_at = CASE WHEN $1::text = 'approved' THEN $2 ELSE approved_at END,
	              updated_at = $2
	          WHERE id = $3 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, status, at, id)
	if err != nil {
		return false, fmt.Errorf("pgTeamRepository.UpdateStatus: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgTeamRepository.UpdateStatus rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *pgTeamRepository) RemoveMember(ctx context.Context, teamID, email string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND member_email = $2`, teamID, email)
	if err != nil {
		return fmt.Errorf("pgTeamRepository.RemoveMember: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgTeamRepository.RemoveMember rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s is not a member of this team: %w", email, common.ErrNotFound)
	}
	return nil
}

// Delete removes the team and its memberships in a single statement
// (team_members cascades).
func (r *pgTeamRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgTeamRepository.Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgTeamRepository.Delete rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
