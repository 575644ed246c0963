package service

import (
	"context"
	"errors"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"strings"
	"testing"
	"time"
)

func (f *fixture) activityOf(t *testing.T, email string) []model.Activity {
	t.Helper()
	entries, err := f.store.Activities().List(f.ctx, repository.ActivityFilter{UserEmail: email})
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	return entries
}

func TestServicesRecordActivity(t *testing.T) {
	f := newFixture(t)
	f.ctx = common.WithClientIP(f.ctx, "203.0.113.7")
	comp := f.publishedCompetition(t, "Audit Cup", 4, 3)
	leader := f.user(t, "lead@x.io", model.RoleParticipant)
	team := f.createTeam(t, leader, comp.ID, "Auditors")

	org := f.activityOf(t, f.organizer.Email)
	if len(org) != 1 || org[0].Action != model.ActivityCompetitionCreated {
		t.Fatalf("organizer activity = %+v", org)
	}
	if !strings.Contains(org[0].Details, comp.ID) {
		t.Errorf("details = %q, want competition id", org[0].Details)
	}

	mine := f.activityOf(t, leader.Email)
	if len(mine) != 1 {
		t.Fatalf("leader activity = %d entries, want 1", len(mine))
	}
	got := mine[0]
	if got.Action != model.ActivityTeamRegistered || !strings.Contains(got.Details, team.ID) {
		t.Errorf("entry = %+v", got)
	}
	if got.IPAddress != "203.0.113.7" || got.UserName != leader.Name || !got.CreatedAt.Equal(f.now) {
		t.Errorf("entry metadata = %+v", got)
	}

	reviews, err := f.store.Activities().List(f.ctx, repository.ActivityFilter{Action: model.ActivityCompetitionStatus})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reviews) != 1 || reviews[0].UserEmail != f.admin.Email {
		t.Errorf("status changes = %+v", reviews)
	}
}

func TestRecordActivity(t *testing.T) {
	f := newFixture(t)
	p := f.user(t, "p@x.io", model.RoleParticipant)
	long := strings.Repeat("x", maxActivityField+1)

	tests := []struct {
		name string
		req  RecordActivityRequest
		want error
	}{
		{"missing action", RecordActivityRequest{Action: "  "}, common.ErrBadRequest},
		{"action too long", RecordActivityRequest{Action: long}, common.ErrBadRequest},
		{"details too long", RecordActivityRequest{Action: "page.view", Details: long}, common.ErrBadRequest},
		{"ok", RecordActivityRequest{Action: " page.view ", Details: " /competitions "}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.activity.Record(f.ctx, p, tt.req)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Record: %v", err)
				}
				return
			}
			wantErr(t, err, tt.want)
		})
	}

	entries := f.activityOf(t, p.Email)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Action != "page.view" || entries[0].Details != "/competitions" {
		t.Errorf("entry = %+v", entries[0])
	}
	if entries[0].IPAddress != common.UnknownClientIP {
		t.Errorf("ip = %q, want %q", entries[0].IPAddress, common.UnknownClientIP)
	}
}

func TestRecordActivityAnonymous(t *testing.T) {
	f := newFixture(t)
	if err := f.activity.Record(f.ctx, nil, RecordActivityRequest{Action: "landing.view"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	entries := f.activityOf(t, model.AnonymousEmail)
	if len(entries) != 1 || entries[0].UserName != model.AnonymousName {
		t.Errorf("anonymous entries = %+v", entries)
	}
}

func TestListActivity(t *testing.T) {
	f := newFixture(t)
	p := f.user(t, "p@x.io", model.RoleParticipant)
	q := f.user(t, "q@x.io", model.RoleParticipant)
	for i, u := range []*model.User{p, q, p} {
		f.now = f.now.Add(time.Minute)
		if err := f.activity.Record(f.ctx, u, RecordActivityRequest{Action: "step", Details: string(rune('a' + i))}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	_, err := f.activity.List(f.ctx, nil, ListActivityRequest{})
	wantErr(t, err, common.ErrUnauthorized)
	_, err = f.activity.List(f.ctx, p, ListActivityRequest{UserEmail: q.Email})
	wantErr(t, err, common.ErrForbidden)

	own, err := f.activity.List(f.ctx, p, ListActivityRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(own) != 2 || own[0].Details != "c" || own[1].Details != "a" {
		t.Errorf("own activity = %+v, want newest first", own)
	}

	theirs, err := f.activity.List(f.ctx, f.admin, ListActivityRequest{UserEmail: " Q@X.io "})
	if err != nil {
		t.Fatalf("admin List: %v", err)
	}
	if len(theirs) != 1 || theirs[0].UserEmail != q.Email {
		t.Errorf("admin view of q = %+v", theirs)
	}

	steps, err := f.activity.List(f.ctx, f.admin, ListActivityRequest{Action: "step", Limit: 2})
	if err != nil {
		t.Fatalf("admin List: %v", err)
	}
	if len(steps) != 2 {
		t.Errorf("limited steps = %d, want 2", len(steps))
	}
}

func TestListActivityClampsLimit(t *testing.T) {
	f := newFixture(t)
	p := f.user(t, "p@x.io", model.RoleParticipant)
	for i := 0; i < maxActivityLimit+5; i++ {
		f.activity.Log(f.ctx, p, "tick", "")
	}
	tests := []struct {
		limit, want int
	}{
		{0, defaultActivityLimit},
		{-3, defaultActivityLimit},
		{10, 10},
		{maxActivityLimit + 100, maxActivityLimit},
	}
	for _, tt := range tests {
		got, err := f.activity.List(f.ctx, p, ListActivityRequest{Limit: tt.limit})
		if err != nil {
			t.Fatalf("List(%d): %v", tt.limit, err)
		}
		if len(got) != tt.want {
			t.Errorf("List(%d) = %d entries, want %d", tt.limit, len(got), tt.want)
		}
	}
}

type failingActivities struct{ repository.ActivityRepository }

func (failingActivities) Create(context.Context, *model.Activity) error {
	return errors.New("disk full")
}

func TestActivityLogFailureDoesNotBreakCaller(t *testing.T) {
	f := newFixture(t)
	f.competitions.activity = NewActivityService(failingActivities{})
	if _, err := f.competitions.Create(f.ctx, f.organizer, f.competitionRequest("Still Works")); err != nil {
		t.Fatalf("Create: %v", err)
	}
}
