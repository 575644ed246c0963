package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// ErrDuplicateCode is returned when a generated join code collides with an
// existing team. Callers regenerate and retry.
var ErrDuplicateCode = errors.New("team code already in use")

// psql builds postgres-flavoured ($1, $2, ...) statements.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction, committing on success.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// lockRegistration serializes registrations of one identity within one
// competition for the lifetime of tx.
func lockRegistration(ctx context.Context, tx *sql.Tx, competitionID, email string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, competitionID+":"+email)
	if err != nil {
		return fmt.Errorf("acquire registration lock: %w", err)
	}
	return nil
}

// Repositories groups one implementation of every store.
type Repositories struct {
	Users         UserRepository
	Competitions  CompetitionRepository
	Teams         TeamRepository
	Notifications NotificationRepository
	Activities    ActivityRepository
}

func NewPgRepositories(db *sql.DB) Repositories {
	return Repositories{
		Users:         NewPgUserRepository(db),
		Competitions:  NewPgCompetitionRepository(db),
		Teams:         NewPgTeamRepository(db),
		Notifications: NewPgNotificationRepository(db),
		Activities:    NewPgActivityRepository(db),
	}
}
