package memory

import (
	"context"
	"fmt"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"time"
)

type teamRepo struct{ s *Store }

func (r *teamRepo) CreateWithLeader(_ context.Context, team *model.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	competition, ok := r.s.competitions[team.CompetitionID]
	if !ok {
		return common.ErrNotFound
	}
	maxTeams := competition.MaxTeams
	if _, ok := r.s.activeTeamOf(team.CompetitionID, team.Leader); ok {
		return fmt.Errorf("%s already has an active team in this competition: %w", team.Leader, common.ErrConflict)
	}
	if maxTeams > 0 {
		count := 0
		for _, t := range r.s.teams {
			if t.CompetitionID == team.CompetitionID && t.IsActive() {
				count++
			}
		}
		if count >= maxTeams {
			return fmt.Errorf("competition accepts at most %d teams: %w", maxTeams, common.ErrFull)
		}
	}
	for _, t := range r.s.teams {
		if t.Code == team.Code {
			return repository.ErrDuplicateCode
		}
	}

	team.Members = []string{team.Leader}
	team.UpdatedAt = team.CreatedAt
	stored := *team
	stored.Members = copyStrings(team.Members)
	stored.CompetitionTitle, stored.LeaderName, stored.MemberNames = "", "", nil
	r.s.teams[team.ID] = stored
	return nil
}

func (r *teamRepo) JoinByCode(_ context.Context, p repository.JoinParams) (string, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	competition, ok := r.s.competitions[p.CompetitionID]
	if !ok {
		return "", false, common.ErrNotFound
	}

	if active, ok := r.s.activeTeamOf(p.CompetitionID, p.Email); ok {
		if active.Code == p.Code {
			return active.ID, false, nil
		}
		return "", false, fmt.Errorf("%s already has an active team in this competition: %w", p.Email, common.ErrConflict)
	}

	var target *model.Team
	for _, t := range r.s.teams {
		if t.CompetitionID == p.CompetitionID && t.Code == p.Code && t.Status == model.TeamApproved {
			target = &t
			break
		}
	}
	if target == nil {
		return "", false, common.ErrInvalidCode
	}
	if len(target.Members) >= competition.TeamSizeLimit(p.DefaultMaxSize) {
		return "", false, fmt.Errorf("team already has %d members: %w", len(target.Members), common.ErrFull)
	}
	if target.HasMember(p.Email) {
		return target.ID, false, nil
	}
	target.Members = append(copyStrings(target.Members), p.Email)
	target.UpdatedAt = p.JoinedAt
	r.s.teams[target.ID] = *target
	return target.ID, true, nil
}

func (r *teamRepo) FindByID(_ context.Context, id string) (*model.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	t = r.s.resolveTeam(t)
	return &t, nil
}

func (r *teamRepo) ListByCompetition(_ context.Context, competitionID string, status model.TeamStatus) ([]model.Team, error) {
	return r.filter(false, 0, func(t model.Team) bool {
		return t.CompetitionID == competitionID && (status == "" || t.Status == status)
	}), nil
}

func (r *teamRepo) ListByMember(_ context.Context, email string) ([]model.Team, error) {
	return r.filter(true, 0, func(t model.Team) bool { return t.HasMember(email) }), nil
}

func (r *teamRepo) ListPendingForOrganizer(_ context.Context, organizerEmail string, limit int) ([]model.Team, error) {
	r.s.mu.Lock()
	owned := make(map[string]bool)
	for id, c := range r.s.competitions {
		if organizerEmail == "" || c.OrganizerID == organizerEmail {
			owned[id] = true
		}
	}
	r.s.mu.Unlock()
	return r.filter(true, limit, func(t model.Team) bool {
		return t.Status == model.TeamPending && owned[t.CompetitionID]
	}), nil
}

func (r *teamRepo) filter(newestFirst bool, limit int, keep func(model.Team) bool) []model.Team {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	teams := []model.Team{}
	for _, t := range r.s.teams {
		if keep(t) {
			teams = append(teams, r.s.resolveTeam(t))
		}
	}
	sortTeams(teams, newestFirst)
	return page(teams, limit, 0)
}

func (r *teamRepo) UpdateStatus(_ context.Context, id string, status model.TeamStatus, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok || t.Status != model.TeamPending {
		return false, nil
	}
	t.Status = status
	if status == model.TeamApproved {
		t.ApprovedAt = &at
	}
	t.UpdatedAt = at
	r.s.teams[id] = t
	return true, nil
}

func (r *teamRepo) RemoveMember(_ context.Context, teamID, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[teamID]
	if !ok {
		return common.ErrNotFound
	}
	members := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		if m != email {
			members = append(members, m)
		}
	}
	if len(members) == len(t.Members) {
		return fmt.Errorf("%s is not a member of this team: %w", email, common.ErrNotFound)
	}
	t.Members = members
	t.UpdatedAt = now()
	r.s.teams[teamID] = t
	return nil
}

func (r *teamRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.teams[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.teams, id)
	return nil
}
