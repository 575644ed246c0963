package service

import (
	"context"
	"errors"
	"robocomp/internal/common/security"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository/memory"
	"sync"
	"testing"
	"time"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recordingEmitter) Emit(_ context.Context, ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEmitter) ofType(eventType string) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, ev := range r.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	emitter *recordingEmitter
	now     time.Time

	teams         *TeamService
	approvals     *ApprovalService
	competitions  *CompetitionService
	users         *UserService
	notifications *NotificationService
	activity      *ActivityService

	admin     *model.User
	organizer *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:     context.Background(),
		store:   memory.New(),
		emitter: &recordingEmitter{},
		now:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.activity = NewActivityService(f.store.Activities())
	f.activity.now = clock
	f.teams = NewTeamService(f.store.Teams(), f.store.Competitions(), f.emitter, f.activity, model.DefaultMaxTeamSize)
	f.teams.now = clock
	f.approvals = NewApprovalService(f.store.Teams(), f.store.Competitions(), f.emitter, f.activity, 5)
	f.approvals.now = clock
	f.competitions = NewCompetitionService(f.store.Competitions(), f.activity, model.DefaultMaxTeamSize)
	f.competitions.now = clock
	f.users = NewUserService(f.store.Users(), f.activity)
	f.notifications = NewNotificationService(f.store.Notifications())
	f.notifications.now = clock

	f.admin = f.user(t, "admin@robocomp.io", model.RoleParticipant)
	if err := f.users.AssignRole(f.ctx, f.admin.Email, model.RoleAdmin); err != nil {
		t.Fatalf("promote admin: %v", err)
	}
	f.admin = f.reload(t, f.admin)

	f.organizer = f.user(t, "org@robocomp.io", model.RoleOrganizer)
	if err := f.users.SetStatus(f.ctx, f.admin, f.organizer.Email, model.UserStatusApproved); err != nil {
		t.Fatalf("approve organizer: %v", err)
	}
	f.organizer = f.reload(t, f.organizer)
	return f
}

func (f *fixture) user(t *testing.T, email, role string) *model.User {
	t.Helper()
	u, err := f.users.EnsureUser(f.ctx, security.Claims{Email: email, Name: email, Role: role})
	if err != nil {
		t.Fatalf("EnsureUser(%s): %v", email, err)
	}
	return u
}

func (f *fixture) reload(t *testing.T, u *model.User) *model.User {
	t.Helper()
	fresh, err := f.store.Users().FindByEmail(f.ctx, u.Email)
	if err != nil {
		t.Fatalf("reload %s: %v", u.Email, err)
	}
	return fresh
}

// publishedCompetition creates a competition open for registration for the
// next hour.
func (f *fixture) publishedCompetition(t *testing.T, title string, maxTeams, maxTeamSize int) *model.Competition {
	t.Helper()
	c, err := f.competitions.Create(f.ctx, f.organizer, CreateCompetitionRequest{
		Title:                title,
		Description:          "Autonomous robots",
		Location:             "Hall A",
		RegistrationDeadline: f.now.Add(time.Hour),
		StartDate:            f.now.Add(2 * time.Hour),
		EndDate:              f.now.Add(26 * time.Hour),
		MaxTeams:             maxTeams,
		MaxTeamSize:          maxTeamSize,
	})
	if err != nil {
		t.Fatalf("create competition: %v", err)
	}
	if err := f.competitions.SetStatus(f.ctx, f.admin, c.ID, model.CompetitionPublished); err != nil {
		t.Fatalf("publish competition: %v", err)
	}
	c.Status = model.CompetitionPublished
	return c
}

func (f *fixture) createTeam(t *testing.T, leader *model.User, competitionID, name string) *model.Team {
	t.Helper()
	id, err := f.teams.CreateTeam(f.ctx, leader, competitionID, CreateTeamRequest{Name: name})
	if err != nil {
		t.Fatalf("CreateTeam(%s): %v", name, err)
	}
	team, err := f.store.Teams().FindByID(f.ctx, id)
	if err != nil {
		t.Fatalf("FindByID(%s): %v", id, err)
	}
	return team
}

func (f *fixture) approvedTeam(t *testing.T, leader *model.User, competitionID, name string) *model.Team {
	t.Helper()
	team := f.createTeam(t, leader, competitionID, name)
	if _, err := f.approvals.SetTeamStatus(f.ctx, f.organizer, team.ID, model.TeamApproved); err != nil {
		t.Fatalf("approve %s: %v", name, err)
	}
	team.Status = model.TeamApproved
	return team
}

func (f *fixture) team(t *testing.T, id string) *model.Team {
	t.Helper()
	team, err := f.store.Teams().FindByID(f.ctx, id)
	if err != nil {
		t.Fatalf("FindByID(%s): %v", id, err)
	}
	return team
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("err = %v, want %v", err, target)
	}
}
