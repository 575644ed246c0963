package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, limit, offset int) ([]model.User, int, error)
	// Search matches term against name and email case-insensitively,
	// leaving out exclude. An empty term matches everyone.
	Search(ctx context.Context, term, exclude string, limit int) ([]model.User, error)
	UpdateProfile(ctx context.Context, email, name string, image *string) error
	UpdateStatus(ctx context.Context, email, status string) error
	UpdateRole(ctx context.Context, email, role string) error
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `email, name, role, status, image, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }, u *model.User) error {
	return row.Scan(&u.Email, &u.Name, &u.Role, &u.Status, &u.Image, &u.CreatedAt, &u.UpdatedAt)
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (email, name, role, status, image)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, user.Email, user.Name, user.Role, user.Status, user.Image).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user %s already exists: %w", user.Email, common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user := &model.User{}
	if err := scanUser(r.db.QueryRowContext(ctx, query, email), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByEmail: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) List(ctx context.Context, limit, offset int) ([]model.User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List count: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List query: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, 0, fmt.Errorf("pgUserRepository.List scan: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List rows.Err: %w", err)
	}
	return users, total, nil
}

func (r *pgUserRepository) Search(ctx context.Context, term, exclude string, limit int) ([]model.User, error) {
	q := psql.Select(userColumns).From("users").Where(sq.NotEq{"email": exclude})
	if term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where(sq.Or{sq.ILike{"name": like}, sq.ILike{"email": like}})
	}
	q = q.OrderBy("name ASC", "email ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.Search build: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.Search query: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("pgUserRepository.Search scan: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.Search rows.Err: %w", err)
	}
	return users, nil
}

// escapeLike makes term match literally inside a LIKE pattern.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (r *pgUserRepository) UpdateProfile(ctx context.Context, email, name string, image *string) error {
	query := `UPDATE users SET name = $1, image = $2, updated_at = CURRENT_TIMESTAMP WHERE email = $3`
	return r.execOne(ctx, "UpdateProfile", query, name, image, email)
}

func (r *pgUserRepository) UpdateStatus(ctx context.Context, email, status string) error {
	query := `UPDATE users SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE email = $2`
	return r.execOne(ctx, "UpdateStatus", query, status, email)
}

func (r *pgUserRepository) UpdateRole(ctx context.Context, email, role string) error {
	query := `UPDATE users SET role = $1, updated_at = CURRENT_TIMESTAMP WHERE email = $2`
	return r.execOne(ctx, "UpdateRole", query, role, email)
}

// execOne runs an update that must touch exactly one row.
func (r *pgUserRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("pgUserRepository.%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgUserRepository.%s rows affected: %w", op, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
