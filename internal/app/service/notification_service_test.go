package service

import (
	"fmt"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"testing"
	"time"
)

func (f *fixture) notification(t *testing.T, id, recipient string, at time.Time) {
	t.Helper()
	err := f.store.Notifications().Create(f.ctx, &model.Notification{
		ID:             id,
		RecipientEmail: recipient,
		Kind:           model.NotificationTeamStatusChanged,
		Title:          "Team approved",
		Message:        "Your team was approved",
		CreatedAt:      at,
	})
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}
}

func TestNotificationsListAndMarkRead(t *testing.T) {
	f := newFixture(t)
	p := f.user(t, "p@x.io", model.RoleParticipant)
	other := f.user(t, "o@x.io", model.RoleParticipant)
	f.notification(t, "n1", p.Email, f.now.Add(-time.Hour))
	f.notification(t, "n2", p.Email, f.now)
	f.notification(t, "n3", other.Email, f.now)

	list, err := f.notifications.List(f.ctx, p)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "n2" || list[1].ID != "n1" {
		t.Fatalf("list = %+v, want n2 then n1", list)
	}

	wantErr(t, f.notifications.MarkRead(f.ctx, p, "n3"), common.ErrNotFound)
	wantErr(t, f.notifications.MarkRead(f.ctx, p, "missing"), common.ErrNotFound)
	wantErr(t, f.notifications.MarkRead(f.ctx, nil, "n1"), common.ErrUnauthorized)

	if err := f.notifications.MarkRead(f.ctx, p, "n1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	firstRead := f.now
	f.now = f.now.Add(time.Minute)
	if err := f.notifications.MarkRead(f.ctx, p, "n1"); err != nil {
		t.Fatalf("MarkRead again: %v", err)
	}

	list, _ = f.notifications.List(f.ctx, p)
	for _, n := range list {
		switch n.ID {
		case "n1":
			if !n.Read || n.ReadAt == nil || !n.ReadAt.Equal(firstRead) {
				t.Errorf("n1 = %+v, want read at %s", n, firstRead)
			}
		case "n2":
			if n.Read {
				t.Errorf("n2 unexpectedly read")
			}
		}
	}
}

func TestNotificationsListIsCapped(t *testing.T) {
	f := newFixture(t)
	p := f.user(t, "p@x.io", model.RoleParticipant)
	for i := 0; i < notificationListLimit+5; i++ {
		f.notification(t, fmt.Sprintf("n%02d", i), p.Email, f.now.Add(time.Duration(i)*time.Second))
	}
	list, err := f.notifications.List(f.ctx, p)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != notificationListLimit {
		t.Errorf("len = %d, want %d", len(list), notificationListLimit)
	}
}
