package memory

import (
	"context"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"sort"
	"time"
)

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.notifications[n.ID] = *n
	return nil
}

func (r *notificationRepo) ListByRecipient(_ context.Context, email string, limit int) ([]model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Notification{}
	for _, n := range r.s.notifications {
		if n.RecipientEmail == email {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, limit, 0), nil
}

func (r *notificationRepo) MarkRead(_ context.Context, id, recipient string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.RecipientEmail != recipient {
		return common.ErrNotFound
	}
	if !n.Read {
		n.Read = true
		n.ReadAt = &at
	}
	r.s.notifications[id] = n
	return nil
}
