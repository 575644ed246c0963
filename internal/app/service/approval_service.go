package service

import (
	"context"
	"log/slog"
	"robocomp/internal/app/notify"
	"robocomp/internal/app/policy"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"time"
)

const (
	ReviewApprove = "approve"
	ReviewReject  = "reject"
)

// ApprovalService drives the team review state machine:
// pending -> approved | rejected, both terminal.
type ApprovalService struct {
	teams             repository.TeamRepository
	competitions      repository.CompetitionRepository
	emitter           notify.Emitter
	activity          ActivityLogger
	pendingTeamsLimit int
	now               func() time.Time
}

func NewApprovalService(
	teams repository.TeamRepository,
	competitions repository.CompetitionRepository,
	emitter notify.Emitter,
	activity ActivityLogger,
	pendingTeamsLimit int,
) *ApprovalService {
	return &ApprovalService{
		teams:             teams,
		competitions:      competitions,
		emitter:           emitter,
		activity:          activity,
		pendingTeamsLimit: pendingTeamsLimit,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

type SetTeamStatusRequest struct {
	Status model.TeamStatus `json:"status"`
}

type ReviewTeamRequest struct {
	Action string `json:"action"`
}

// SetTeamStatus approves or rejects a pending team and returns the resulting
// status. Repeating the current decision is accepted; reversing it is not.
func (s *ApprovalService) SetTeamStatus(ctx context.Context, actor *model.User, teamID string, target model.TeamStatus) (model.TeamStatus, error) {
	if actor == nil {
		return "", common.ErrUnauthorized
	}
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return "", err
	}
	competition, err := s.competitions.FindByID(ctx, team.CompetitionID)
	if err != nil {
		return "", err
	}
	if err := policy.Authorize(actor, policy.ReviewTeam, policy.Resource{Competition: competition, Team: team}); err != nil {
		return "", err
	}
	if target != model.TeamApproved && target != model.TeamRejected {
		return "", common.Errorf("status must be approved or rejected, got %q: %w", target, common.ErrBadRequest)
	}

	if team.Status != model.TeamPending {
		return s.settled(team, target)
	}

	now := s.now()
	updated, err := s.teams.UpdateStatus(ctx, team.ID, target, now)
	if err != nil {
		return "", common.Errorf("failed to update team status: %w", err)
	}
	if !updated {
		// Someone else decided first; report against their decision.
		current, err := s.teams.FindByID(ctx, team.ID)
		if err != nil {
			return "", err
		}
		return s.settled(current, target)
	}

	slog.InfoContext(ctx, "team reviewed", "team_id", team.ID, "competition_id", competition.ID, "status", target, "by", actor.Email)
	s.activity.Log(ctx, actor, model.ActivityTeamReviewed, "team "+team.ID+" -> "+string(target))
	s.emitter.Emit(ctx, model.Event{
		Type:             model.EventTeamStatusChanged,
		CompetitionID:    competition.ID,
		CompetitionTitle: competition.Title,
		TeamID:           team.ID,
		TeamName:         team.Name,
		Status:           target,
		Actor:            actor.Email,
		Recipients:       team.Members,
	})
	return target, nil
}

func (s *ApprovalService) settled(team *model.Team, target model.TeamStatus) (model.TeamStatus, error) {
	if team.Status == target {
		return target, nil
	}
	return "", common.Errorf("team is already %s: %w", team.Status, common.ErrInvalidState)
}

// ReviewTeam applies an approve/reject action to a team of competitionID.
func (s *ApprovalService) ReviewTeam(ctx context.Context, actor *model.User, competitionID, teamID, action string) (model.TeamStatus, error) {
	if actor == nil {
		return "", common.ErrUnauthorized
	}
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return "", err
	}
	if team.CompetitionID != competitionID {
		return "", common.Errorf("team %s does not belong to competition %s: %w", teamID, competitionID, common.ErrNotFound)
	}
	var target model.TeamStatus
	switch action {
	case ReviewApprove:
		target = model.TeamApproved
	case ReviewReject:
		target = model.TeamRejected
	}
	// An unknown action leaves target empty; SetTeamStatus rejects it after
	// the authorization check.
	return s.SetTeamStatus(ctx, actor, teamID, target)
}

// ListPendingTeams returns the most recent pending teams across the
// organizer's competitions. Admins see pending teams of every competition.
func (s *ApprovalService) ListPendingTeams(ctx context.Context, actor *model.User) ([]model.Team, error) {
	if err := policy.Authorize(actor, policy.ListPendingTeams, policy.Resource{}); err != nil {
		return nil, err
	}
	organizer := actor.Email
	if actor.IsAdmin() {
		organizer = ""
	}
	teams, err := s.teams.ListPendingForOrganizer(ctx, organizer, s.pendingTeamsLimit)
	if err != nil {
		return nil, common.Errorf("failed to list pending teams: %w", err)
	}
	return redactAll(teams), nil
}
