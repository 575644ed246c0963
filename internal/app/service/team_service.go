package service

import (
	"context"
	"errors"
	"log/slog"
	"robocomp/internal/app/notify"
	"robocomp/internal/app/policy"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// codeAlphabet leaves out characters that are easy to misread (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const maxCodeAttempts = 5

type TeamService struct {
	teams              repository.TeamRepository
	competitions       repository.CompetitionRepository
	emitter            notify.Emitter
	activity           ActivityLogger
	defaultMaxTeamSize int
	now                func() time.Time
	newCode            func() (string, error)
}

func NewTeamService(
	teams repository.TeamRepository,
	competitions repository.CompetitionRepository,
	emitter notify.Emitter,
	activity ActivityLogger,
	defaultMaxTeamSize int,
) *TeamService {
	return &TeamService{
		teams:              teams,
		competitions:       competitions,
		emitter:            emitter,
		activity:           activity,
		defaultMaxTeamSize: defaultMaxTeamSize,
		now:                func() time.Time { return time.Now().UTC() },
		newCode:            func() (string, error) { return gonanoid.Generate(codeAlphabet, model.JoinCodeLength) },
	}
}

type CreateTeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type JoinTeamRequest struct {
	Code string `json:"code"`
}

// NormalizeCode makes join codes case and whitespace insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateTeam registers a new pending team led by actor and returns its id.
func (s *TeamService) CreateTeam(ctx context.Context, actor *model.User, competitionID string, req CreateTeamRequest) (string, error) {
	if actor == nil {
		return "", common.ErrUnauthorized
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", common.Errorf("team name is required: %w", common.ErrBadRequest)
	}

	competition, err := s.visibleCompetition(ctx, actor, competitionID)
	if err != nil {
		return "", err
	}
	now := s.now()
	if status := competition.EffectiveStatus(now); status != model.CompetitionPublished {
		return "", common.Errorf("competition is %s, not open for registration: %w", status, common.ErrInvalidState)
	}
	if !competition.RegistrationOpen(now) {
		return "", common.ErrDeadlinePassed
	}

	team := &model.Team{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   strings.TrimSpace(req.Description),
		CompetitionID: competition.ID,
		Leader:        actor.Email,
		Status:        model.TeamPending,
		CreatedAt:     now,
	}
	for attempt := 1; ; attempt++ {
		if team.Code, err = s.newCode(); err != nil {
			return "", common.Errorf("generate team code: %w", err)
		}
		err = s.teams.CreateWithLeader(ctx, team)
		if !errors.Is(err, repository.ErrDuplicateCode) || attempt == maxCodeAttempts {
			break
		}
		slog.WarnContext(ctx, "team code collision, regenerating", "competition_id", competition.ID, "attempt", attempt)
	}
	if err != nil {
		return "", common.Errorf("failed to create team: %w", err)
	}

	slog.InfoContext(ctx, "team registered", "team_id", team.ID, "competition_id", competition.ID, "leader", actor.Email)
	s.activity.Log(ctx, actor, model.ActivityTeamRegistered, "team "+team.ID+" ("+team.Name+") in competition "+competition.ID)
	s.emitter.Emit(ctx, model.Event{
		Type:             model.EventTeamRegistered,
		CompetitionID:    competition.ID,
		CompetitionTitle: competition.Title,
		TeamID:           team.ID,
		TeamName:         team.Name,
		Status:           team.Status,
		Actor:            actor.Email,
		Recipients:       []string{competition.OrganizerID},
	})
	return team.ID, nil
}

// JoinTeamByCode adds actor to the approved team holding code and returns the
// team id. Repeating a successful join is a no-op.
func (s *TeamService) JoinTeamByCode(ctx context.Context, actor *model.User, competitionID, code string) (string, error) {
	if actor == nil {
		return "", common.ErrUnauthorized
	}
	code = NormalizeCode(code)
	if code == "" {
		return "", common.Errorf("team code is required: %w", common.ErrBadRequest)
	}

	competition, err := s.visibleCompetition(ctx, actor, competitionID)
	if err != nil {
		return "", err
	}
	now := s.now()
	if !competition.RegistrationOpen(now) {
		return "", common.ErrDeadlinePassed
	}

	teamID, joined, err := s.teams.JoinByCode(ctx, repository.JoinParams{
		CompetitionID:  competition.ID,
		Code:           code,
		Email:          actor.Email,
		DefaultMaxSize: s.defaultMaxTeamSize,
		JoinedAt:       now,
	})
	if err != nil {
		return "", err
	}
	if !joined {
		return teamID, nil
	}

	slog.InfoContext(ctx, "member joined team", "team_id", teamID, "competition_id", competition.ID, "member", actor.Email)
	s.activity.Log(ctx, actor, model.ActivityTeamJoined, "team "+teamID+" in competition "+competition.ID)
	if team, err := s.teams.FindByID(ctx, teamID); err == nil {
		s.emitter.Emit(ctx, model.Event{
			Type:             model.EventTeamMemberJoined,
			CompetitionID:    competition.ID,
			CompetitionTitle: competition.Title,
			TeamID:           team.ID,
			TeamName:         team.Name,
			Status:           team.Status,
			Actor:            actor.Email,
			Subject:          actor.Email,
			Recipients:       without(team.Members, actor.Email),
		})
	} else {
		slog.WarnContext(ctx, "joined team vanished before notification", "team_id", teamID, "error", err)
	}
	return teamID, nil
}

// RemoveMember lets a team leader drop another member.
func (s *TeamService) RemoveMember(ctx context.Context, actor *model.User, teamID, memberEmail string) error {
	if actor == nil {
		return common.ErrUnauthorized
	}
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return err
	}
	if err := policy.Authorize(actor, policy.EditMembership, policy.Resource{Team: team}); err != nil {
		return err
	}
	memberEmail = strings.ToLower(strings.TrimSpace(memberEmail))
	if memberEmail == team.Leader {
		return common.Errorf("the team leader cannot be removed: %w", common.ErrBadRequest)
	}
	if !team.HasMember(memberEmail) {
		return common.Errorf("%s is not a member of this team: %w", memberEmail, common.ErrNotFound)
	}
	if err := s.teams.RemoveMember(ctx, team.ID, memberEmail); err != nil {
		return err
	}

	slog.InfoContext(ctx, "member removed from team", "team_id", team.ID, "member", memberEmail, "by", actor.Email)
	s.activity.Log(ctx, actor, model.ActivityTeamMemberRemoved, memberEmail+" from team "+team.ID)
	s.emitter.Emit(ctx, model.Event{
		Type:             model.EventTeamMemberRemoved,
		CompetitionID:    team.CompetitionID,
		CompetitionTitle: team.CompetitionTitle,
		TeamID:           team.ID,
		TeamName:         team.Name,
		Status:           team.Status,
		Actor:            actor.Email,
		Subject:          memberEmail,
		Recipients:       without(team.Members, actor.Email),
	})
	return nil
}

// ListUserTeams returns every team actor leads or belongs to, newest first.
func (s *TeamService) ListUserTeams(ctx context.Context, actor *model.User) ([]model.Team, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	teams, err := s.teams.ListByMember(ctx, actor.Email)
	if err != nil {
		return nil, common.Errorf("failed to list teams: %w", err)
	}
	return redactAll(teams), nil
}

// ListCompetitionTeams returns all teams to the organizer, admins and judges
// and only approved teams to everyone else. Codes are shown to team members
// and competition managers, and only once a team is approved.
func (s *TeamService) ListCompetitionTeams(ctx context.Context, actor *model.User, competitionID string) ([]model.Team, error) {
	competition, err := s.visibleCompetition(ctx, actor, competitionID)
	if err != nil {
		return nil, err
	}
	status := model.TeamApproved
	if policy.Allowed(actor, policy.ViewAllTeams, policy.Resource{Competition: competition}) {
		status = ""
	}
	teams, err := s.teams.ListByCompetition(ctx, competition.ID, status)
	if err != nil {
		return nil, common.Errorf("failed to list competition teams: %w", err)
	}
	out := make([]model.Team, 0, len(teams))
	for _, t := range teams {
		out = append(out, visibleTeam(actor, competition, t))
	}
	return out, nil
}

// GetTeam returns a team to its members, competition managers and judges.
func (s *TeamService) GetTeam(ctx context.Context, actor *model.User, teamID string) (*model.Team, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	competition, err := s.competitions.FindByID(ctx, team.CompetitionID)
	if err != nil {
		return nil, err
	}
	if !team.HasMember(actor.Email) &&
		!policy.Allowed(actor, policy.ViewAllTeams, policy.Resource{Competition: competition}) &&
		team.Status != model.TeamApproved {
		return nil, common.ErrNotFound
	}
	t := visibleTeam(actor, competition, *team)
	return &t, nil
}

// DeleteTeam removes a team and all its memberships.
func (s *TeamService) DeleteTeam(ctx context.Context, actor *model.User, teamID string) error {
	if actor == nil {
		return common.ErrUnauthorized
	}
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return err
	}
	competition, err := s.competitions.FindByID(ctx, team.CompetitionID)
	if err != nil {
		return err
	}
	if err := policy.Authorize(actor, policy.DeleteTeam, policy.Resource{Competition: competition, Team: team}); err != nil {
		return err
	}
	if err := s.teams.Delete(ctx, team.ID); err != nil {
		return common.Errorf("failed to delete team: %w", err)
	}
	slog.InfoContext(ctx, "team deleted", "team_id", team.ID, "competition_id", competition.ID, "by", actor.Email)
	s.activity.Log(ctx, actor, model.ActivityTeamDeleted, "team "+team.ID+" ("+team.Name+") in competition "+competition.ID)
	return nil
}

// visibleCompetition loads a competition, reporting drafts as missing to
// anyone who cannot manage them.
func (s *TeamService) visibleCompetition(ctx context.Context, actor *model.User, id string) (*model.Competition, error) {
	competition, err := s.competitions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if competition.Status == model.CompetitionDraft &&
		!policy.Allowed(actor, policy.ManageCompetition, policy.Resource{Competition: competition}) {
		return nil, common.ErrNotFound
	}
	return competition, nil
}

func visibleTeam(actor *model.User, competition *model.Competition, t model.Team) model.Team {
	t = t.Redacted()
	if actor == nil || !(t.HasMember(actor.Email) ||
		policy.Allowed(actor, policy.ManageCompetition, policy.Resource{Competition: competition})) {
		t.Code = ""
	}
	return t
}

func redactAll(teams []model.Team) []model.Team {
	out := make([]model.Team, 0, len(teams))
	for _, t := range teams {
		out = append(out, t.Redacted())
	}
	return out
}

func without(emails []string, drop string) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if e != drop {
			out = append(out, e)
		}
	}
	return out
}
