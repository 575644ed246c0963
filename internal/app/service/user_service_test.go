package service

import (
	"fmt"
	"robocomp/internal/common"
	"robocomp/internal/common/security"
	"robocomp/internal/domain/model"
	"strings"
	"sync"
	"testing"
)

func TestEnsureUserProvisioning(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name       string
		claims     security.Claims
		wantRole   string
		wantStatus string
	}{
		{"participant", security.Claims{Email: "Pat@X.io", Name: "Pat", Role: model.RoleParticipant}, model.RoleParticipant, model.UserStatusApproved},
		{"organizer waits for approval", security.Claims{Email: "org2@x.io", Role: model.RoleOrganizer}, model.RoleOrganizer, model.UserStatusPending},
		{"self-asserted admin", security.Claims{Email: "sneaky@x.io", Role: model.RoleAdmin}, model.RoleParticipant, model.UserStatusApproved},
		{"unknown role", security.Claims{Email: "odd@x.io", Role: "wizard"}, model.RoleParticipant, model.UserStatusApproved},
		{"judge", security.Claims{Email: "judge@x.io", Role: model.RoleJudge}, model.RoleJudge, model.UserStatusApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := f.users.EnsureUser(f.ctx, tt.claims)
			if err != nil {
				t.Fatalf("EnsureUser: %v", err)
			}
			if u.Role != tt.wantRole || u.Status != tt.wantStatus {
				t.Errorf("role/status = %s/%s, want %s/%s", u.Role, u.Status, tt.wantRole, tt.wantStatus)
			}
		})
	}

	u, _ := f.users.EnsureUser(f.ctx, security.Claims{Email: "pat@x.io"})
	if u.Email != "pat@x.io" || u.Name != "Pat" {
		t.Errorf("email not normalized: %+v", u)
	}

	_, err := f.users.EnsureUser(f.ctx, security.Claims{Email: "  "})
	wantErr(t, err, common.ErrUnauthorized)
}

func TestEnsureUserStoredRoleWins(t *testing.T) {
	f := newFixture(t)
	u, err := f.users.EnsureUser(f.ctx, security.Claims{Email: "admin@robocomp.io", Role: model.RoleParticipant})
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u.Role != model.RoleAdmin {
		t.Errorf("role = %s, want stored admin role", u.Role)
	}
}

func TestEnsureUserConcurrentFirstSight(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.users.EnsureUser(f.ctx, security.Claims{Email: "race@x.io", Role: model.RoleParticipant}); err != nil {
				t.Errorf("EnsureUser: %v", err)
			}
		}()
	}
	wg.Wait()
	page, err := f.users.List(f.ctx, f.admin, 1, 100)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	seen := 0
	for _, u := range page.Users {
		if u.Email == "race@x.io" {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("race@x.io stored %d times", seen)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "p@x.io", model.RoleParticipant)

	name, image := "  Pat Doe ", "https://img.example/p.png"
	got, err := f.users.UpdateProfile(f.ctx, u, UpdateProfileRequest{Name: &name, Image: &image})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.Name != "Pat Doe" || got.Image == nil || *got.Image != image {
		t.Errorf("profile = %+v", got)
	}

	empty := ""
	got, err = f.users.UpdateProfile(f.ctx, u, UpdateProfileRequest{Image: &empty})
	if err != nil {
		t.Fatalf("clear image: %v", err)
	}
	if got.Image != nil || got.Name != "Pat Doe" {
		t.Errorf("profile after clearing image = %+v", got)
	}

	blank := " "
	_, err = f.users.UpdateProfile(f.ctx, u, UpdateProfileRequest{Name: &blank})
	wantErr(t, err, common.ErrBadRequest)
	_, err = f.users.UpdateProfile(f.ctx, nil, UpdateProfileRequest{})
	wantErr(t, err, common.ErrUnauthorized)
}

func TestUserAdministration(t *testing.T) {
	f := newFixture(t)
	org := f.user(t, "pending-org@x.io", model.RoleOrganizer)
	p := f.user(t, "p@x.io", model.RoleParticipant)

	wantErr(t, f.users.SetStatus(f.ctx, p, org.Email, model.UserStatusApproved), common.ErrForbidden)
	wantErr(t, f.users.SetStatus(f.ctx, f.admin, org.Email, model.UserStatusPending), common.ErrBadRequest)
	wantErr(t, f.users.SetStatus(f.ctx, f.admin, p.Email, model.UserStatusApproved), common.ErrBadRequest)
	wantErr(t, f.users.SetStatus(f.ctx, f.admin, "ghost@x.io", model.UserStatusApproved), common.ErrNotFound)

	if err := f.users.SetStatus(f.ctx, f.admin, org.Email, model.UserStatusRejected); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if got := f.reload(t, org); got.Status != model.UserStatusRejected {
		t.Errorf("status = %s, want rejected", got.Status)
	}

	wantErr(t, f.users.SetRole(f.ctx, p, p.Email, model.RoleAdmin), common.ErrForbidden)
	wantErr(t, f.users.SetRole(f.ctx, f.admin, p.Email, "wizard"), common.ErrBadRequest)
	if err := f.users.SetRole(f.ctx, f.admin, "P@X.io", model.RoleJudge); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if got := f.reload(t, p); got.Role != model.RoleJudge {
		t.Errorf("role = %s, want judge", got.Role)
	}

	_, err := f.users.List(f.ctx, p, 1, 10)
	wantErr(t, err, common.ErrForbidden)
	page, err := f.users.List(f.ctx, f.admin, 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 4 || len(page.Users) != 2 {
		t.Errorf("page = total %d, %d users", page.Total, len(page.Users))
	}
}

func TestSearchUsers(t *testing.T) {
	f := newFixture(t)
	seed := []security.Claims{
		{Email: "ada@lab.io", Name: "Ada Lovelace"},
		{Email: "grace@navy.mil", Name: "Grace Hopper"},
		{Email: "alan@lab.io", Name: "Alan Turing"},
		{Email: "me@lab.io", Name: "Lab Owner"},
	}
	for _, c := range seed {
		c.Role = model.RoleParticipant
		if _, err := f.users.EnsureUser(f.ctx, c); err != nil {
			t.Fatalf("EnsureUser(%s): %v", c.Email, err)
		}
	}
	me, err := f.store.Users().FindByEmail(f.ctx, "me@lab.io")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"LAB", []string{"ada@lab.io", "alan@lab.io"}},
		{"hopper", []string{"grace@navy.mil"}},
		{" tur ", []string{"alan@lab.io"}},
		{"owner", nil},
		{"100%", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := f.users.Search(f.ctx, me, tt.query)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			var emails []string
			for _, u := range got {
				emails = append(emails, u.Email)
			}
			if strings.Join(emails, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Search(%q) = %v, want %v", tt.query, emails, tt.want)
			}
		})
	}

	_, err = f.users.Search(f.ctx, nil, "ada")
	wantErr(t, err, common.ErrUnauthorized)
}

func TestSearchUsersIsCapped(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < userSearchLimit+5; i++ {
		f.user(t, fmt.Sprintf("bot%02d@swarm.io", i), model.RoleParticipant)
	}
	got, err := f.users.Search(f.ctx, f.admin, "swarm")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != userSearchLimit {
		t.Fatalf("results = %d, want %d", len(got), userSearchLimit)
	}
	if got[0].Email != "bot00@swarm.io" {
		t.Errorf("first = %s, want sorted by name", got[0].Email)
	}
}
