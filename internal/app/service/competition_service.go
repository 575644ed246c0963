package service

import (
	"context"
	"errors"
	"log/slog"
	"robocomp/internal/app/policy"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type CompetitionService struct {
	competitions       repository.CompetitionRepository
	activity           ActivityLogger
	defaultMaxTeamSize int
	now                func() time.Time
}

func NewCompetitionService(
	competitions repository.CompetitionRepository,
	activity ActivityLogger,
	defaultMaxTeamSize int,
) *CompetitionService {
	return &CompetitionService{
		competitions:       competitions,
		activity:           activity,
		defaultMaxTeamSize: defaultMaxTeamSize,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

type CreateCompetitionRequest struct {
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Location             string    `json:"location"`
	StartDate            time.Time `json:"start_date"`
	EndDate              time.Time `json:"end_date"`
	RegistrationDeadline time.Time `json:"registration_deadline"`
	MaxTeams             int       `json:"max_teams"`
	MaxTeamSize          int       `json:"max_team_size"`
	PrizePool            *string   `json:"prize_pool,omitempty"`
	Judges               []string  `json:"judges,omitempty"`
}

type UpdateCompetitionRequest struct {
	Title                *string    `json:"title,omitempty"`
	Description          *string    `json:"description,omitempty"`
	Location             *string    `json:"location,omitempty"`
	StartDate            *time.Time `json:"start_date,omitempty"`
	EndDate              *time.Time `json:"end_date,omitempty"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	MaxTeams             *int       `json:"max_teams,omitempty"`
	MaxTeamSize          *int       `json:"max_team_size,omitempty"`
	PrizePool            *string    `json:"prize_pool,omitempty"`
	Judges               *[]string  `json:"judges,omitempty"`
}

type SetCompetitionStatusRequest struct {
	Status model.CompetitionStatus `json:"status"`
}

type ListCompetitionsRequest struct {
	Status model.CompetitionStatus
	Search string
	Page   int
	Limit  int
}

type CompetitionPage struct {
	Competitions []model.Competition `json:"competitions"`
	Total        int                 `json:"total"`
	Page         int                 `json:"page"`
	Limit        int                 `json:"limit"`
}

func validateCompetition(c *model.Competition) error {
	switch {
	case c.Title == "" || c.Description == "" || c.Location == "":
		return common.Errorf("title, description and location are required: %w", common.ErrBadRequest)
	case c.StartDate.IsZero() || c.EndDate.IsZero() || c.RegistrationDeadline.IsZero():
		return common.Errorf("start_date, end_date and registration_deadline are required: %w", common.ErrBadRequest)
	case c.RegistrationDeadline.After(c.StartDate):
		return common.Errorf("registration deadline must not be after the start date: %w", common.ErrBadRequest)
	case !c.StartDate.Before(c.EndDate):
		return common.Errorf("start date must be before the end date: %w", common.ErrBadRequest)
	case c.MaxTeams <= 0:
		return common.Errorf("max_teams must be positive: %w", common.ErrBadRequest)
	case c.MaxTeamSize < 0:
		return common.Errorf("max_team_size must not be negative: %w", common.ErrBadRequest)
	}
	return nil
}

func cleanJudges(judges []string) []string {
	seen := make(map[string]bool, len(judges))
	out := make([]string, 0, len(judges))
	for _, j := range judges {
		j = strings.ToLower(strings.TrimSpace(j))
		if j == "" || seen[j] {
			continue
		}
		seen[j] = true
		out = append(out, j)
	}
	return out
}

// Create stores a new draft competition owned by actor.
func (s *CompetitionService) Create(ctx context.Context, actor *model.User, req CreateCompetitionRequest) (*model.Competition, error) {
	if err := policy.Authorize(actor, policy.CreateCompetition, policy.Resource{}); err != nil {
		return nil, err
	}
	c := &model.Competition{
		ID:                   uuid.NewString(),
		Title:                strings.TrimSpace(req.Title),
		Description:          strings.TrimSpace(req.Description),
		Location:             strings.TrimSpace(req.Location),
		StartDate:            req.StartDate.UTC(),
		EndDate:              req.EndDate.UTC(),
		RegistrationDeadline: req.RegistrationDeadline.UTC(),
		OrganizerID:          actor.Email,
		OrganizerName:        actor.Name,
		Status:               model.CompetitionDraft,
		MaxTeams:             req.MaxTeams,
		MaxTeamSize:          req.MaxTeamSize,
		PrizePool:            req.PrizePool,
		Judges:               cleanJudges(req.Judges),
	}
	if err := validateCompetition(c); err != nil {
		return nil, err
	}

	c.Slug = slug.Make(c.Title)
	err := s.competitions.Create(ctx, c)
	if errors.Is(err, common.ErrConflict) {
		// Title already taken; disambiguate the slug with the id prefix.
		c.Slug = slug.Make(c.Title + " " + c.ID[:8])
		err = s.competitions.Create(ctx, c)
	}
	if err != nil {
		return nil, common.Errorf("failed to create competition: %w", err)
	}
	slog.InfoContext(ctx, "competition created", "competition_id", c.ID, "slug", c.Slug, "organizer", actor.Email)
	s.activity.Log(ctx, actor, model.ActivityCompetitionCreated, "competition "+c.ID+" ("+c.Title+")")
	return c, nil
}

// Get resolves a competition by id or slug. Drafts are only visible to
// their organizer and admins.
func (s *CompetitionService) Get(ctx context.Context, actor *model.User, idOrSlug string) (*model.Competition, error) {
	c, err := s.competitions.FindByID(ctx, idOrSlug)
	if errors.Is(err, common.ErrNotFound) {
		c, err = s.competitions.FindBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, err
	}
	if c.Status == model.CompetitionDraft &&
		!policy.Allowed(actor, policy.ManageCompetition, policy.Resource{Competition: c}) {
		return nil, common.ErrNotFound
	}
	c.Status = c.EffectiveStatus(s.now())
	return c, nil
}

// List returns non-draft competitions ordered by start date. Admins also see drafts.
func (s *CompetitionService) List(ctx context.Context, actor *model.User, req ListCompetitionsRequest) (*CompetitionPage, error) {
	if req.Status != "" && !model.IsValidCompetitionStatus(req.Status) {
		return nil, common.Errorf("unknown status %q: %w", req.Status, common.ErrBadRequest)
	}
	page, limit := req.Page, req.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	competitions, total, err := s.competitions.List(ctx, repository.CompetitionFilter{
		Status:       req.Status,
		ExcludeDraft: !actor.IsAdmin(),
		Search:       strings.TrimSpace(req.Search),
		Limit:        limit,
		Offset:       (page - 1) * limit,
	})
	if err != nil {
		return nil, common.Errorf("failed to list competitions: %w", err)
	}
	s.applyEffectiveStatus(competitions)
	return &CompetitionPage{Competitions: competitions, Total: total, Page: page, Limit: limit}, nil
}

// ListMine returns every competition organized by actor, drafts included.
func (s *CompetitionService) ListMine(ctx context.Context, actor *model.User) ([]model.Competition, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	competitions, _, err := s.competitions.List(ctx, repository.CompetitionFilter{OrganizerID: actor.Email})
	if err != nil {
		return nil, common.Errorf("failed to list competitions: %w", err)
	}
	s.applyEffectiveStatus(competitions)
	return competitions, nil
}

func (s *CompetitionService) applyEffectiveStatus(competitions []model.Competition) {
	now := s.now()
	for i := range competitions {
		competitions[i].Status = competitions[i].EffectiveStatus(now)
	}
}

// Update applies the non-nil fields of req. Caps cannot drop below what
// registered teams already hold.
func (s *CompetitionService) Update(ctx context.Context, actor *model.User, id string, req UpdateCompetitionRequest) (*model.Competition, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	c, err := s.competitions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ManageCompetition, policy.Resource{Competition: c}); err != nil {
		return nil, err
	}

	if req.Title != nil {
		c.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		c.Description = strings.TrimSpace(*req.Description)
	}
	if req.Location != nil {
		c.Location = strings.TrimSpace(*req.Location)
	}
	if req.StartDate != nil {
		c.StartDate = req.StartDate.UTC()
	}
	if req.EndDate != nil {
		c.EndDate = req.EndDate.UTC()
	}
	if req.RegistrationDeadline != nil {
		c.RegistrationDeadline = req.RegistrationDeadline.UTC()
	}
	if req.MaxTeams != nil {
		c.MaxTeams = *req.MaxTeams
	}
	if req.MaxTeamSize != nil {
		c.MaxTeamSize = *req.MaxTeamSize
	}
	if req.PrizePool != nil {
		c.PrizePool = req.PrizePool
	}
	if req.Judges != nil {
		c.Judges = cleanJudges(*req.Judges)
	}
	if err := validateCompetition(c); err != nil {
		return nil, err
	}

	if err := s.competitions.Update(ctx, c, c.TeamSizeLimit(s.defaultMaxTeamSize)); err != nil {
		return nil, common.Errorf("failed to update competition: %w", err)
	}
	slog.InfoContext(ctx, "competition updated", "competition_id", c.ID, "by", actor.Email)
	s.activity.Log(ctx, actor, model.ActivityCompetitionUpdated, "competition "+c.ID)
	c.Status = c.EffectiveStatus(s.now())
	return c, nil
}

// Delete removes a competition together with its teams.
func (s *CompetitionService) Delete(ctx context.Context, actor *model.User, id string) error {
	if actor == nil {
		return common.ErrUnauthorized
	}
	c, err := s.competitions.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(actor, policy.ManageCompetition, policy.Resource{Competition: c}); err != nil {
		return err
	}
	if err := s.competitions.Delete(ctx, c.ID); err != nil {
		return common.Errorf("failed to delete competition: %w", err)
	}
	slog.InfoContext(ctx, "competition deleted", "competition_id", c.ID, "by", actor.Email)
	s.activity.Log(ctx, actor, model.ActivityCompetitionDeleted, "competition "+c.ID+" ("+c.Title+")")
	return nil
}

// SetStatus moves a competition to status. Publishing stamps PublishedAt.
func (s *CompetitionService) SetStatus(ctx context.Context, actor *model.User, id string, status model.CompetitionStatus) error {
	if err := policy.Authorize(actor, policy.SetCompetitionStatus, policy.Resource{}); err != nil {
		return err
	}
	if !model.IsValidCompetitionStatus(status) {
		return common.Errorf("unknown status %q: %w", status, common.ErrBadRequest)
	}
	if err := s.competitions.UpdateStatus(ctx, id, status, s.now()); err != nil {
		return err
	}
	slog.InfoContext(ctx, "competition status changed", "competition_id", id, "status", status, "by", actor.Email)
	s.activity.Log(ctx, actor, model.ActivityCompetitionStatus, "competition "+id+" -> "+string(status))
	return nil
}
