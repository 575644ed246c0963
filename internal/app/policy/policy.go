// Package policy holds every role and ownership rule of the platform. Services
// ask Authorize before touching state instead of checking roles inline.
package policy

import (
	"fmt"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"
)

type Action string

const (
	CreateCompetition    Action = "competition:create"
	ManageCompetition    Action = "competition:manage"
	SetCompetitionStatus Action = "competition:set-status"
	ReviewTeam           Action = "team:review"
	DeleteTeam           Action = "team:delete"
	EditMembership       Action = "team:edit-membership"
	ListPendingTeams     Action = "team:list-pending"
	ViewAllTeams         Action = "team:view-all"
	ManageUsers          Action = "user:manage"
)

// Resource is the object an action targets. Only the fields an action needs
// must be set.
type Resource struct {
	Competition *model.Competition
	Team        *model.Team
}

// Authorize returns nil when actor may perform action on res,
// common.ErrUnauthorized when there is no actor and common.ErrForbidden otherwise.
func Authorize(actor *model.User, action Action, res Resource) error {
	if actor == nil {
		return common.ErrUnauthorized
	}
	if allowed(actor, action, res) {
		return nil
	}
	return fmt.Errorf("%s may not %s: %w", actor.Email, action, common.ErrForbidden)
}

// Allowed is Authorize as a predicate.
func Allowed(actor *model.User, action Action, res Resource) bool {
	return actor != nil && allowed(actor, action, res)
}

func allowed(actor *model.User, action Action, res Resource) bool {
	switch action {
	case CreateCompetition, ListPendingTeams:
		return actor.IsAdmin() || approvedOrganizer(actor)
	case ManageCompetition, ReviewTeam, DeleteTeam:
		return actor.IsAdmin() || ownsCompetition(actor, res.Competition)
	case SetCompetitionStatus, ManageUsers:
		return actor.IsAdmin()
	case EditMembership:
		return res.Team != nil && res.Team.Leader == actor.Email
	case ViewAllTeams:
		return actor.IsAdmin() || ownsCompetition(actor, res.Competition) ||
			(res.Competition != nil && res.Competition.IsJudge(actor.Email))
	}
	return false
}

func approvedOrganizer(actor *model.User) bool {
	return actor.Role == model.RoleOrganizer && actor.Status == model.UserStatusApproved
}

func ownsCompetition(actor *model.User, c *model.Competition) bool {
	return c != nil && c.OrganizerID == actor.Email
}
