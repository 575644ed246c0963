package repository

import (
	"context"
	"database/sql"
	"fmt"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"time"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByRecipient(ctx context.Context, email string, limit int) ([]model.Notification, error)
	// MarkRead flags a notification as read. Notifications owned by another
	// recipient are reported as not found.
	MarkRead(ctx context.Context, id, recipient string, at time.Time) error
}

type pgNotificationRepository struct {
	db *sql.DB
}

func NewPgNotificationRepository(db *sql.DB) NotificationRepository {
	return &pgNotificationRepository{db: db}
}

func (r *pgNotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `INSERT INTO notifications (id, recipient_email, kind, title, message, competition_id, team_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query, n.ID, n.RecipientEmail, n.Kind, n.Title, n.Message,
		n.CompetitionID, n.TeamID, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgNotificationRepository.Create: %w", err)
	}
	return nil
}

func (r *pgNotificationRepository) ListByRecipient(ctx context.Context, email string, limit int) ([]model.Notification, error) {
	query := `SELECT id, recipient_email, kind, title, message, competition_id, team_id, read, created_at, read_at
	          FROM notifications
	          WHERE recipient_email = $1
	          ORDER BY created_at DESC, id ASC
	          LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, email, limit)
	if err != nil {
		return nil, fmt.Errorf("pgNotificationRepository.ListByRecipient query: %w", err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.RecipientEmail, &n.Kind, &n.Title, &n.Message,
			&n.CompetitionID, &n.TeamID, &n.Read, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, fmt.Errorf("pgNotificationRepository.ListByRecipient scan: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgNotificationRepository.ListByRecipient rows.Err: %w", err)
	}
	return notifications, nil
}

func (r *pgNotificationRepository) MarkRead(ctx context.Context, id, recipient string, at time.Time) error {
	query := `UPDATE notifications SET read = TRUE, read_at = COALESCE(read_at, $1)
	          WHERE id = $2 AND recipient_email = $3`
	res, err := r.db.ExecContext(ctx, query, at, id, recipient)
	if err != nil {
		return fmt.Errorf("pgNotificationRepository.MarkRead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgNotificationRepository.MarkRead rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
