package model

import "time"

// Activity actions written by the services.
const (
	ActivityCompetitionCreated = "competition.created"
	ActivityCompetitionUpdated = "competition.updated"
	ActivityCompetitionDeleted = "competition.deleted"
	ActivityCompetitionStatus  = "competition.status_changed"
	ActivityTeamRegistered     = "team.registered"
	ActivityTeamJoined         = "team.member_joined"
	ActivityTeamMemberRemoved  = "team.member_removed"
	ActivityTeamReviewed       = "team.reviewed"
	ActivityTeamDeleted        = "team.deleted"
	ActivityUserStatus         = "user.status_changed"
	ActivityUserRole           = "user.role_changed"
)

// Activity is one audit log entry. Anonymous entries carry the
// AnonymousEmail and AnonymousName placeholders.
type Activity struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	UserEmail string    `json:"user_email"`
	UserName  string    `json:"user_name"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	AnonymousEmail = "anonymous"
	AnonymousName  = "Anonymous"
)
