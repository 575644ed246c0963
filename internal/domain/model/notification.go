package model

import "time"

const (
	NotificationTeamRegistration  = "TEAM_REGISTRATION"
	NotificationTeamStatusChanged = "TEAM_STATUS_CHANGED"
	NotificationTeamMemberJoined  = "TEAM_MEMBER_JOINED"
	NotificationTeamMemberRemoved = "TEAM_MEMBER_REMOVED"
)

type Notification struct {
	ID             string     `json:"id"`
	RecipientEmail string     `json:"recipient_email"`
	Kind           string     `json:"kind"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	CompetitionID  *string    `json:"competition_id,omitempty"`
	TeamID         *string    `json:"team_id,omitempty"`
	Read           bool       `json:"read"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}
