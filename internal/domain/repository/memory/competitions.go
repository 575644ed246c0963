package memory

import (
	"context"
	"fmt"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"sort"
	"strings"
	"time"
)

type competitionRepo struct{ s *Store }

func (r *competitionRepo) Create(_ context.Context, c *model.Competition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.competitions {
		if existing.Slug == c.Slug {
			return fmt.Errorf("competition with this slug already exists: %w", common.ErrConflict)
		}
	}
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts
	r.s.competitions[c.ID] = copyCompetition(*c)
	return nil
}

func (r *competitionRepo) FindByID(_ context.Context, id string) (*model.Competition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.competitions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c = copyCompetition(c)
	return &c, nil
}

func (r *competitionRepo) FindBySlug(_ context.Context, slug string) (*model.Competition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.competitions {
		if c.Slug == slug {
			c = copyCompetition(c)
			return &c, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *competitionRepo) List(_ context.Context, f repository.CompetitionFilter) ([]model.Competition, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	search := strings.ToLower(f.Search)
	var matched []model.Competition
	for _, c := range r.s.competitions {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.ExcludeDraft && c.Status == model.CompetitionDraft {
			continue
		}
		if f.OrganizerID != "" && c.OrganizerID != f.OrganizerID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Title), search) &&
			!strings.Contains(strings.ToLower(c.Description), search) &&
			!strings.Contains(strings.ToLower(c.Location), search) {
			continue
		}
		matched = append(matched, copyCompetition(c))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartDate.Equal(matched[j].StartDate) {
			return matched[i].StartDate.Before(matched[j].StartDate)
		}
		return matched[i].ID < matched[j].ID
	})
	return page(matched, f.Limit, f.Offset), len(matched), nil
}

func (r *competitionRepo) Update(_ context.Context, c *model.Competition, teamSizeLimit int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.competitions[c.ID]
	if !ok {
		return common.ErrNotFound
	}
	activeTeams, largestTeam := 0, 0
	for _, t := range r.s.teams {
		if t.CompetitionID != c.ID {
			continue
		}
		if t.IsActive() {
			activeTeams++
		}
		largestTeam = max(largestTeam, len(t.Members))
	}
	if err := repository.CheckCapacity(c.MaxTeams, teamSizeLimit, activeTeams, largestTeam); err != nil {
		return err
	}
	existing.Title = c.Title
	existing.Description = c.Description
	existing.Location = c.Location
	existing.StartDate = c.StartDate
	existing.EndDate = c.EndDate
	existing.RegistrationDeadline = c.RegistrationDeadline
	existing.MaxTeams = c.MaxTeams
	existing.MaxTeamSize = c.MaxTeamSize
	existing.PrizePool = c.PrizePool
	existing.Judges = copyStrings(c.Judges)
	existing.UpdatedAt = now()
	c.UpdatedAt = existing.UpdatedAt
	r.s.competitions[c.ID] = existing
	return nil
}

func (r *competitionRepo) UpdateStatus(_ context.Context, id string, status model.CompetitionStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.competitions[id]
	if !ok {
		return common.ErrNotFound
	}
	c.Status = status
	if status == model.CompetitionPublished {
		c.PublishedAt = &at
	}
	c.UpdatedAt = at
	r.s.competitions[id] = c
	return nil
}

func (r *competitionRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.competitions[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.competitions, id)
	for teamID, t := range r.s.teams {
		if t.CompetitionID == id {
			delete(r.s.teams, teamID)
		}
	}
	return nil
}
