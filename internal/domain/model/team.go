package model

import "time"

type TeamStatus string

const (
	TeamPending  TeamStatus = "pending"
	TeamApproved TeamStatus = "approved"
	TeamRejected TeamStatus = "rejected"
)

// JoinCodeLength is the length of generated team join codes.
const JoinCodeLength = 8

type Team struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	CompetitionID string     `json:"competition_id"`
	Leader        string     `json:"leader"`
	Members       []string   `json:"members"` // join order, leader first
	Code          string     `json:"code,omitempty"`
	Status        TeamStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Display fields resolved by listing queries.
	CompetitionTitle string   `json:"competition_title,omitempty"`
	LeaderName       string   `json:"leader_name,omitempty"`
	MemberNames      []string `json:"member_names,omitempty"`
}

// Redacted returns a copy that is safe to hand to any caller: the join code
// is only visible once the team is approved.
func (t Team) Redacted() Team {
	if t.Status != TeamApproved {
		t.Code = ""
	}
	t.Members = append([]string(nil), t.Members...)
	return t
}

func (t *Team) HasMember(email string) bool {
	for _, m := range t.Members {
		if m == email {
			return true
		}
	}
	return false
}

// IsActive reports whether the team still counts as a registration.
func (t *Team) IsActive() bool {
	return t.Status == TeamPending || t.Status == TeamApproved
}
