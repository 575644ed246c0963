package service

import (
	"context"
	"log/slog"
	"robocomp/internal/app/policy"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
	maxActivityField     = 500
)

// ActivityLogger records audit entries on behalf of other services.
type ActivityLogger interface {
	Log(ctx context.Context, actor *model.User, action, details string)
}

// ActivityService keeps the audit log of who did what and from where.
type ActivityService struct {
	activities repository.ActivityRepository
	now        func() time.Time
}

func NewActivityService(activities repository.ActivityRepository) *ActivityService {
	return &ActivityService{
		activities: activities,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type RecordActivityRequest struct {
	Action  string `json:"action"`
	Details string `json:"details"`
}

type ListActivityRequest struct {
	UserEmail string
	Action    string
	Limit     int
}

// Log appends an entry for actor, or for an anonymous caller when actor is
// nil. A storage failure is logged and otherwise ignored.
func (s *ActivityService) Log(ctx context.Context, actor *model.User, action, details string) {
	entry := &model.Activity{
		ID:        uuid.NewString(),
		Action:    action,
		Details:   details,
		UserEmail: model.AnonymousEmail,
		UserName:  model.AnonymousName,
		IPAddress: common.ClientIP(ctx),
		CreatedAt: s.now(),
	}
	if actor != nil {
		entry.UserEmail = actor.Email
		entry.UserName = actor.Name
	}
	if err := s.activities.Create(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "failed to record activity", "action", action, "user", entry.UserEmail, "error", err)
	}
}

// Record stores an action reported by a client.
func (s *ActivityService) Record(ctx context.Context, actor *model.User, req RecordActivityRequest) error {
	action := strings.TrimSpace(req.Action)
	if action == "" {
		return common.Errorf("action is required: %w", common.ErrBadRequest)
	}
	if len(action) > maxActivityField || len(req.Details) > maxActivityField {
		return common.Errorf("action and details are limited to %d bytes: %w", maxActivityField, common.ErrBadRequest)
	}
	s.Log(ctx, actor, action, strings.TrimSpace(req.Details))
	return nil
}

// List returns recent entries. Admins may read anyone's entries; everyone
// else reads only their own.
func (s *ActivityService) List(ctx context.Context, actor *model.User, req ListActivityRequest) ([]model.Activity, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	filter := repository.ActivityFilter{
		UserEmail: strings.ToLower(strings.TrimSpace(req.UserEmail)),
		Action:    strings.TrimSpace(req.Action),
		Limit:     req.Limit,
	}
	if !policy.Allowed(actor, policy.ManageUsers, policy.Resource{}) {
		if filter.UserEmail != "" && filter.UserEmail != actor.Email {
			return nil, common.Errorf("only admins can read other users' activity: %w", common.ErrForbidden)
		}
		filter.UserEmail = actor.Email
	}
	if filter.Limit < 1 {
		filter.Limit = defaultActivityLimit
	}
	if filter.Limit > maxActivityLimit {
		filter.Limit = maxActivityLimit
	}
	entries, err := s.activities.List(ctx, filter)
	if err != nil {
		return nil, common.Errorf("failed to list activity: %w", err)
	}
	return entries, nil
}
