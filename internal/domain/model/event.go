package model

import "time"

const (
	EventTeamRegistered    = "team.registered"
	EventTeamStatusChanged = "team.status_changed"
	EventTeamMemberJoined  = "team.member_joined"
	EventTeamMemberRemoved = "team.member_removed"
)

// Event is a committed state change announced to interested clients.
// Delivery is best-effort and at-most-once.
type Event struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	CompetitionID    string     `json:"competition_id"`
	CompetitionTitle string     `json:"competition_title,omitempty"`
	TeamID           string     `json:"team_id"`
	TeamName         string     `json:"team_name,omitempty"`
	Status           TeamStatus `json:"status,omitempty"`
	Actor            string     `json:"actor,omitempty"`
	Subject          string     `json:"subject,omitempty"` // member joined/removed
	Recipients       []string   `json:"recipients,omitempty"`
	OccurredAt       time.Time  `json:"occurred_at"`
}
