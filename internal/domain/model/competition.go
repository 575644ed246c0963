package model

import "time"

type CompetitionStatus string

const (
	CompetitionDraft     CompetitionStatus = "draft"
	CompetitionPublished CompetitionStatus = "published" // accepting registrations
	CompetitionOngoing   CompetitionStatus = "ongoing"
	CompetitionCompleted CompetitionStatus = "completed"
)

// DefaultMaxTeamSize applies when a competition does not configure a member cap.
const DefaultMaxTeamSize = 4

func IsValidCompetitionStatus(s CompetitionStatus) bool {
	switch s {
	case CompetitionDraft, CompetitionPublished, CompetitionOngoing, CompetitionCompleted:
		return true
	}
	return false
}

type Competition struct {
	ID                   string            `json:"id"`
	Slug                 string            `json:"slug"`
	Title                string            `json:"title"`
	Description          string            `json:"description"`
	Location             string            `json:"location"`
	StartDate            time.Time         `json:"start_date"`
	EndDate              time.Time         `json:"end_date"`
	RegistrationDeadline time.Time         `json:"registration_deadline"`
	OrganizerID          string            `json:"organizer_id"` // organizer email
	OrganizerName        string            `json:"organizer_name,omitempty"`
	Status               CompetitionStatus `json:"status"`
	MaxTeams             int               `json:"max_teams"`
	MaxTeamSize          int               `json:"max_team_size"`
	PrizePool            *string           `json:"prize_pool,omitempty"`
	Judges               []string          `json:"judges,omitempty"`
	PublishedAt          *time.Time        `json:"published_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// EffectiveStatus recomputes the lifecycle from the schedule. Only published
// competitions move forward on their own; drafts and explicit terminal states stay put.
func (c *Competition) EffectiveStatus(now time.Time) CompetitionStatus {
	switch c.Status {
	case CompetitionPublished, CompetitionOngoing:
		if !c.EndDate.IsZero() && now.After(c.EndDate) {
			return CompetitionCompleted
		}
		if !c.StartDate.IsZero() && !now.Before(c.StartDate) {
			return CompetitionOngoing
		}
	}
	return c.Status
}

// TeamSizeLimit returns the member cap. Competitions without one use
// fallback, or DefaultMaxTeamSize when fallback is not positive.
func (c *Competition) TeamSizeLimit(fallback int) int {
	if c.MaxTeamSize > 0 {
		return c.MaxTeamSize
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultMaxTeamSize
}

// RegistrationOpen reports whether now is on or before the registration
// deadline. The deadline instant itself is still open.
func (c *Competition) RegistrationOpen(now time.Time) bool {
	return !now.After(c.RegistrationDeadline)
}

func (c *Competition) IsJudge(email string) bool {
	for _, j := range c.Judges {
		if j == email {
			return true
		}
	}
	return false
}
