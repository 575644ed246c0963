package model

import (
	"time"
)

const (
	RoleAdmin       = "admin"
	RoleOrganizer   = "organizer"
	RoleParticipant = "participant"
	RoleJudge       = "judge"
	RoleSpectator   = "spectator"
)

const (
	UserStatusPending  = "pending"
	UserStatusApproved = "approved"
	UserStatusRejected = "rejected"
)

// User is keyed by email; the email is the identity used throughout teams and competitions.
type User struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	Image     *string   `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleOrganizer, RoleParticipant, RoleJudge, RoleSpectator:
		return true
	}
	return false
}

// InitialStatus is the approval status a freshly provisioned user starts with.
// Organizers wait for an admin; everyone else is approved immediately.
func InitialStatus(role string) string {
	if role == RoleOrganizer {
		return UserStatusPending
	}
	return UserStatusApproved
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
