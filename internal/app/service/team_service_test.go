package service

import (
	"errors"
	"fmt"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"sync"
	"testing"
	"time"
)

func TestJoinFullTeamScenario(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Sumo Bots", 10, 2)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	b := f.user(t, "b@x.io", model.RoleParticipant)
	c := f.user(t, "c@x.io", model.RoleParticipant)

	f.teams.newCode = func() (string, error) { return "ABC123", nil }
	team := f.createTeam(t, a, comp.ID, "Gears")
	if team.Code != "ABC123" {
		t.Fatalf("code = %q, want ABC123", team.Code)
	}

	status, err := f.approvals.SetTeamStatus(f.ctx, f.organizer, team.ID, model.TeamApproved)
	if err != nil || status != model.TeamApproved {
		t.Fatalf("SetTeamStatus = %q, %v", status, err)
	}

	id, err := f.teams.JoinTeamByCode(f.ctx, b, comp.ID, "ABC123")
	if err != nil {
		t.Fatalf("B join: %v", err)
	}
	if id != team.ID {
		t.Errorf("joined %s, want %s", id, team.ID)
	}
	if got := len(f.team(t, team.ID).Members); got != 2 {
		t.Fatalf("member count = %d, want 2", got)
	}

	_, err = f.teams.JoinTeamByCode(f.ctx, c, comp.ID, "ABC123")
	wantErr(t, err, common.ErrFull)
	if got := len(f.team(t, team.ID).Members); got != 2 {
		t.Errorf("member count after rejected join = %d, want 2", got)
	}
}

func TestJoinPendingTeamIsInvalidCode(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Line Followers", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	d := f.user(t, "d@x.io", model.RoleParticipant)
	team := f.createTeam(t, a, comp.ID, "Pending Pals")

	_, err := f.teams.JoinTeamByCode(f.ctx, d, comp.ID, team.Code)
	wantErr(t, err, common.ErrInvalidCode)
	if common.KindFromError(err) != common.KindInvalidCode {
		t.Errorf("kind = %s", common.KindFromError(err))
	}
}

func TestJoinUnknownCodeIsInvalidCode(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Maze", 10, 4)
	d := f.user(t, "d@x.io", model.RoleParticipant)
	_, err := f.teams.JoinTeamByCode(f.ctx, d, comp.ID, "NOPE0000")
	wantErr(t, err, common.ErrInvalidCode)
}

func TestSecondTeamInSameCompetitionConflicts(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Soccer", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	f.approvedTeam(t, a, comp.ID, "First")

	_, err := f.teams.CreateTeam(f.ctx, a, comp.ID, CreateTeamRequest{Name: "Second"})
	wantErr(t, err, common.ErrConflict)
}

func TestRejectedTeamFreesLeader(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Soccer", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	team := f.createTeam(t, a, comp.ID, "First")
	if _, err := f.approvals.SetTeamStatus(f.ctx, f.organizer, team.ID, model.TeamRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.teams.CreateTeam(f.ctx, a, comp.ID, CreateTeamRequest{Name: "Second"}); err != nil {
		t.Fatalf("CreateTeam after rejection: %v", err)
	}
}

func TestMemberOfAnotherTeamCannotJoin(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Relay", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	b := f.user(t, "b@x.io", model.RoleParticipant)
	teamA := f.approvedTeam(t, a, comp.ID, "A")
	f.approvedTeam(t, b, comp.ID, "B")

	_, err := f.teams.JoinTeamByCode(f.ctx, b, comp.ID, teamA.Code)
	wantErr(t, err, common.ErrConflict)
}

func TestJoinIsIdempotent(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Drones", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	b := f.user(t, "b@x.io", model.RoleParticipant)
	team := f.approvedTeam(t, a, comp.ID, "Flyers")

	for i := 0; i < 2; i++ {
		id, err := f.teams.JoinTeamByCode(f.ctx, b, comp.ID, " "+team.Code+" ")
		if err != nil {
			t.Fatalf("join #%d: %v", i+1, err)
		}
		if id != team.ID {
			t.Fatalf("join #%d returned %s", i+1, id)
		}
	}
	members := f.team(t, team.ID).Members
	if len(members) != 2 || members[0] != a.Email || members[1] != b.Email {
		t.Errorf("members = %v, want [leader, b]", members)
	}
	if got := len(f.emitter.ofType(model.EventTeamMemberJoined)); got != 1 {
		t.Errorf("member joined events = %d, want 1", got)
	}

	// The leader joining their own team is also a no-op.
	if _, err := f.teams.JoinTeamByCode(f.ctx, a, comp.ID, team.Code); err != nil {
		t.Errorf("leader rejoin: %v", err)
	}
}

func TestJoinDeadlineBoundary(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Boundary", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	b := f.user(t, "b@x.io", model.RoleParticipant)
	c := f.user(t, "c@x.io", model.RoleParticipant)
	team := f.approvedTeam(t, a, comp.ID, "Edge")

	f.now = comp.RegistrationDeadline
	if _, err := f.teams.JoinTeamByCode(f.ctx, b, comp.ID, team.Code); err != nil {
		t.Fatalf("join at the deadline instant: %v", err)
	}

	f.now = comp.RegistrationDeadline.Add(time.Nanosecond)
	_, err := f.teams.JoinTeamByCode(f.ctx, c, comp.ID, team.Code)
	wantErr(t, err, common.ErrDeadlinePassed)

	_, err = f.teams.CreateTeam(f.ctx, c, comp.ID, CreateTeamRequest{Name: "Late"})
	wantErr(t, err, common.ErrDeadlinePassed)
}

func TestCreateTeamValidation(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	comp := f.publishedCompetition(t, "Validation", 10, 4)

	draft, err := f.competitions.Create(f.ctx, f.organizer, CreateCompetitionRequest{
		Title: "Draft Cup", Description: "d", Location: "l",
		RegistrationDeadline: f.now.Add(time.Hour), StartDate: f.now.Add(2 * time.Hour), EndDate: f.now.Add(3 * time.Hour),
		MaxTeams: 5,
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	tests := []struct {
		name          string
		actor         *model.User
		competitionID string
		teamName      string
		want          error
	}{
		{"anonymous", nil, comp.ID, "X", common.ErrUnauthorized},
		{"blank name", a, comp.ID, "  ", common.ErrBadRequest},
		{"unknown competition", a, "missing", "X", common.ErrNotFound},
		{"draft competition", a, draft.ID, "X", common.ErrNotFound},
		{"draft competition as its organizer", f.organizer, draft.ID, "X", common.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.teams.CreateTeam(f.ctx, tt.actor, tt.competitionID, CreateTeamRequest{Name: tt.teamName})
			wantErr(t, err, tt.want)
		})
	}
}

func TestCreateTeamAfterStartIsInvalidState(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Started", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	f.now = comp.StartDate.Add(time.Minute)
	_, err := f.teams.CreateTeam(f.ctx, a, comp.ID, CreateTeamRequest{Name: "Late"})
	wantErr(t, err, common.ErrInvalidState)
}

func TestCreateTeamRespectsMaxTeams(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Small Event", 1, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	b := f.user(t, "b@x.io", model.RoleParticipant)
	f.createTeam(t, a, comp.ID, "Only")

	_, err := f.teams.CreateTeam(f.ctx, b, comp.ID, CreateTeamRequest{Name: "Too Many"})
	wantErr(t, err, common.ErrFull)
}

func TestCreateTeamRetriesCodeCollision(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Codes", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	b := f.user(t, "b@x.io", model.RoleParticipant)

	codes := []string{"SAMECODE", "SAMECODE", "FRESH001"}
	f.teams.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	f.createTeam(t, a, comp.ID, "First")
	second := f.createTeam(t, b, comp.ID, "Second")
	if second.Code != "FRESH001" {
		t.Errorf("second code = %q, want FRESH001", second.Code)
	}
}

func TestCreateTeamGivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Codes", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	b := f.user(t, "b@x.io", model.RoleParticipant)
	f.teams.newCode = func() (string, error) { return "SAMECODE", nil }
	f.createTeam(t, a, comp.ID, "First")

	_, err := f.teams.CreateTeam(f.ctx, b, comp.ID, CreateTeamRequest{Name: "Second"})
	wantErr(t, err, repository.ErrDuplicateCode)
}

func TestCreateTeamEmitsRegistration(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Events", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	team := f.createTeam(t, a, comp.ID, "Loud")

	events := f.emitter.ofType(model.EventTeamRegistered)
	if len(events) != 1 {
		t.Fatalf("registered events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.TeamID != team.ID || ev.CompetitionID != comp.ID {
		t.Errorf("event = %+v", ev)
	}
	if len(ev.Recipients) != 1 || ev.Recipients[0] != f.organizer.Email {
		t.Errorf("recipients = %v, want organizer", ev.Recipients)
	}
}

// Concurrent joins at the capacity boundary never overfill a team.
func TestConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	f := newFixture(t)
	const maxSize = 3
	const joiners = 25
	comp := f.publishedCompetition(t, "Rush", 10, maxSize)
	leader := f.user(t, "leader@x.io", model.RoleParticipant)
	team := f.approvedTeam(t, leader, comp.ID, "Crowded")

	users := make([]*model.User, joiners)
	for i := range users {
		users[i] = f.user(t, fmt.Sprintf("u%02d@x.io", i), model.RoleParticipant)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, full := 0, 0
	for _, u := range users {
		wg.Add(1)
		go func(u *model.User) {
			defer wg.Done()
			_, err := f.teams.JoinTeamByCode(f.ctx, u, comp.ID, team.Code)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, common.ErrFull):
				full++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(u)
	}
	wg.Wait()

	if succeeded != maxSize-1 {
		t.Errorf("succeeded = %d, want %d", succeeded, maxSize-1)
	}
	if full != joiners-(maxSize-1) {
		t.Errorf("full = %d, want %d", full, joiners-(maxSize-1))
	}
	if got := len(f.team(t, team.ID).Members); got != maxSize {
		t.Errorf("members = %d, want %d", got, maxSize)
	}
}

func TestConcurrentCreateAllowsOneActiveTeam(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Race", 50, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.teams.CreateTeam(f.ctx, a, comp.ID, CreateTeamRequest{Name: fmt.Sprintf("T%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
		} else if !errors.Is(err, common.ErrConflict) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}
}

func TestCodeHiddenUntilApproved(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Secrets", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	team := f.createTeam(t, a, comp.ID, "Quiet")

	mine, err := f.teams.ListUserTeams(f.ctx, a)
	if err != nil {
		t.Fatalf("ListUserTeams: %v", err)
	}
	if len(mine) != 1 || mine[0].Code != "" {
		t.Fatalf("pending team exposes code: %+v", mine)
	}
	all, _ := f.teams.ListCompetitionTeams(f.ctx, f.organizer, comp.ID)
	for _, tm := range all {
		if tm.Code != "" {
			t.Errorf("organizer listing exposes pending code for %s", tm.ID)
		}
	}
	pending, _ := f.approvals.ListPendingTeams(f.ctx, f.organizer)
	for _, tm := range pending {
		if tm.Code != "" {
			t.Errorf("pending listing exposes code for %s", tm.ID)
		}
	}
	got, _ := f.teams.GetTeam(f.ctx, a, team.ID)
	if got.Code != "" {
		t.Errorf("GetTeam exposes pending code")
	}

	if _, err := f.approvals.SetTeamStatus(f.ctx, f.organizer, team.ID, model.TeamApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	mine, _ = f.teams.ListUserTeams(f.ctx, a)
	if mine[0].Code != team.Code {
		t.Errorf("approved team code = %q, want %q", mine[0].Code, team.Code)
	}
	if mine[0].CompetitionTitle != comp.Title || mine[0].LeaderName != a.Name {
		t.Errorf("display fields not resolved: %+v", mine[0])
	}

	// Outsiders see the approved team but not its code.
	outsider := f.user(t, "o@x.io", model.RoleSpectator)
	public, err := f.teams.ListCompetitionTeams(f.ctx, outsider, comp.ID)
	if err != nil {
		t.Fatalf("ListCompetitionTeams: %v", err)
	}
	if len(public) != 1 || public[0].Code != "" {
		t.Errorf("outsider listing = %+v", public)
	}
}

func TestListCompetitionTeamsVisibility(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Visibility", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	b := f.user(t, "b@x.io", model.RoleParticipant)
	f.approvedTeam(t, a, comp.ID, "Approved")
	f.createTeam(t, b, comp.ID, "Pending")

	judge := f.user(t, "judge@x.io", model.RoleJudge)
	judges := []string{judge.Email}
	if _, err := f.competitions.Update(f.ctx, f.organizer, comp.ID, UpdateCompetitionRequest{Judges: &judges}); err != nil {
		t.Fatalf("assign judge: %v", err)
	}

	for _, tt := range []struct {
		name  string
		actor *model.User
		want  int
	}{
		{"anonymous", nil, 1},
		{"participant", b, 1},
		{"judge", judge, 2},
		{"organizer", f.organizer, 2},
		{"admin", f.admin, 2},
	} {
		teams, err := f.teams.ListCompetitionTeams(f.ctx, tt.actor, comp.ID)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if len(teams) != tt.want {
			t.Errorf("%s sees %d teams, want %d", tt.name, len(teams), tt.want)
		}
	}
}

func TestDraftCompetitionIsHiddenFromRegistration(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	draft, err := f.competitions.Create(f.ctx, f.organizer, f.competitionRequest("Secret Cup"))
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	_, err = f.teams.JoinTeamByCode(f.ctx, a, draft.ID, "ANYCODE1")
	wantErr(t, err, common.ErrNotFound)
	_, err = f.teams.ListCompetitionTeams(f.ctx, nil, draft.ID)
	wantErr(t, err, common.ErrNotFound)
	_, err = f.teams.ListCompetitionTeams(f.ctx, a, draft.ID)
	wantErr(t, err, common.ErrNotFound)

	for _, actor := range []*model.User{f.organizer, f.admin} {
		if _, err := f.teams.ListCompetitionTeams(f.ctx, actor, draft.ID); err != nil {
			t.Errorf("%s: %v", actor.Email, err)
		}
	}
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Membership", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	b := f.user(t, "b@x.io", model.RoleParticipant)
	c := f.user(t, "c@x.io", model.RoleParticipant)
	team := f.approvedTeam(t, a, comp.ID, "Editable")
	if _, err := f.teams.JoinTeamByCode(f.ctx, b, comp.ID, team.Code); err != nil {
		t.Fatalf("join: %v", err)
	}

	wantErr(t, f.teams.RemoveMember(f.ctx, nil, team.ID, b.Email), common.ErrUnauthorized)
	wantErr(t, f.teams.RemoveMember(f.ctx, a, "missing", b.Email), common.ErrNotFound)
	wantErr(t, f.teams.RemoveMember(f.ctx, b, team.ID, b.Email), common.ErrForbidden)
	wantErr(t, f.teams.RemoveMember(f.ctx, f.organizer, team.ID, b.Email), common.ErrForbidden)
	wantErr(t, f.teams.RemoveMember(f.ctx, a, team.ID, a.Email), common.ErrBadRequest)
	wantErr(t, f.teams.RemoveMember(f.ctx, a, team.ID, c.Email), common.ErrNotFound)

	if err := f.teams.RemoveMember(f.ctx, a, team.ID, "B@X.io"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if members := f.team(t, team.ID).Members; len(members) != 1 || members[0] != a.Email {
		t.Errorf("members = %v", members)
	}
	removed := f.emitter.ofType(model.EventTeamMemberRemoved)
	if len(removed) != 1 || removed[0].Subject != b.Email {
		t.Errorf("removed events = %+v", removed)
	}

	// A removed member may join again.
	if _, err := f.teams.JoinTeamByCode(f.ctx, b, comp.ID, team.Code); err != nil {
		t.Errorf("rejoin after removal: %v", err)
	}
}

func TestDeleteTeam(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Deletion", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	team := f.createTeam(t, a, comp.ID, "Doomed")

	wantErr(t, f.teams.DeleteTeam(f.ctx, a, team.ID), common.ErrForbidden)
	if err := f.teams.DeleteTeam(f.ctx, f.organizer, team.ID); err != nil {
		t.Fatalf("DeleteTeam: %v", err)
	}
	_, err := f.store.Teams().FindByID(f.ctx, team.ID)
	wantErr(t, err, common.ErrNotFound)

	// The leader is free to register again.
	if _, err := f.teams.CreateTeam(f.ctx, a, comp.ID, CreateTeamRequest{Name: "Reborn"}); err != nil {
		t.Errorf("CreateTeam after delete: %v", err)
	}
}

func TestGetTeamVisibility(t *testing.T) {
	f := newFixture(t)
	comp := f.publishedCompetition(t, "Get", 10, 4)
	a := f.user(t, "a@x.io", model.RoleParticipant)
	outsider := f.user(t, "o@x.io", model.RoleParticipant)
	team := f.createTeam(t, a, comp.ID, "Private")

	if _, err := f.teams.GetTeam(f.ctx, a, team.ID); err != nil {
		t.Errorf("member GetTeam: %v", err)
	}
	if _, err := f.teams.GetTeam(f.ctx, f.organizer, team.ID); err != nil {
		t.Errorf("organizer GetTeam: %v", err)
	}
	_, err := f.teams.GetTeam(f.ctx, outsider, team.ID)
	wantErr(t, err, common.ErrNotFound)
}
