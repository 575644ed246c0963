package service

import (
	"context"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"time"
)

const notificationListLimit = 50

type NotificationService struct {
	notifications repository.NotificationRepository
	now           func() time.Time
}

func NewNotificationService(notifications repository.NotificationRepository) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// List returns actor's most recent notifications.
func (s *NotificationService) List(ctx context.Context, actor *model.User) ([]model.Notification, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	list, err := s.notifications.ListByRecipient(ctx, actor.Email, notificationListLimit)
	if err != nil {
		return nil, common.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

// MarkRead flags one of actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor *model.User, id string) error {
	if actor == nil {
		return common.ErrUnauthorized
	}
	return s.notifications.MarkRead(ctx, id, actor.Email, s.now())
}
