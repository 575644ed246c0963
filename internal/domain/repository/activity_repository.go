package repository

import (
	"context"
	"database/sql"
	"fmt"
	"robocomp/internal/domain/model"

	sq "github.com/Masterminds/squirrel"
)

// ActivityFilter narrows an activity listing. Empty fields match everything.
type ActivityFilter struct {
	UserEmail string
	Action    string
	Limit     int
}

type ActivityRepository interface {
	Create(ctx context.Context, a *model.Activity) error
	// List returns matching entries, newest first.
	List(ctx context.Context, f ActivityFilter) ([]model.Activity, error)
}

type pgActivityRepository struct {
	db *sql.DB
}

func NewPgActivityRepository(db *sql.DB) ActivityRepository {
	return &pgActivityRepository{db: db}
}

func (r *pgActivityRepository) Create(ctx context.Context, a *model.Activity) error {
	query := `INSERT INTO activity_logs (id, action, details, user_email, user_name, ip_address, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.Action, a.Details, a.UserEmail, a.UserName, a.IPAddress, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgActivityRepository.Create: %w", err)
	}
	return nil
}

func (r *pgActivityRepository) List(ctx context.Context, f ActivityFilter) ([]model.Activity, error) {
	q := psql.Select("id", "action", "details", "user_email", "user_name", "ip_address", "created_at").
		From("activity_logs")
	if f.UserEmail != "" {
		q = q.Where(sq.Eq{"user_email": f.UserEmail})
	}
	if f.Action != "" {
		q = q.Where(sq.Eq{"action": f.Action})
	}
	q = q.OrderBy("created_at DESC", "id ASC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgActivityRepository.List build: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgActivityRepository.List query: %w", err)
	}
	defer rows.Close()

	entries := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.Action, &a.Details, &a.UserEmail, &a.UserName, &a.IPAddress, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgActivityRepository.List scan: %w", err)
		}
		entries = append(entries, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgActivityRepository.List rows.Err: %w", err)
	}
	return entries, nil
}
