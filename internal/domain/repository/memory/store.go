// Package memory is an in-process implementation of the repository
// interfaces. A single mutex guards all state, so every operation is atomic
// with respect to the others.
package memory

import (
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"sort"
	"sync"
	"time"
)

type Store struct {
	mu            sync.Mutex
	users         map[string]model.User
	competitions  map[string]model.Competition
	teams         map[string]model.Team
	notifications map[string]model.Notification
	activities    []model.Activity
}

func New() *Store {
	return &Store{
		users:         make(map[string]model.User),
		competitions:  make(map[string]model.Competition),
		teams:         make(map[string]model.Team),
		notifications: make(map[string]model.Notification),
	}
}

func (s *Store) Users() repository.UserRepository                 { return &userRepo{s} }
func (s *Store) Competitions() repository.CompetitionRepository   { return &competitionRepo{s} }
func (s *Store) Teams() repository.TeamRepository                 { return &teamRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{s} }
func (s *Store) Activities() repository.ActivityRepository        { return &activityRepo{s} }

func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Users:         s.Users(),
		Competitions:  s.Competitions(),
		Teams:         s.Teams(),
		Notifications: s.Notifications(),
		Activities:    s.Activities(),
	}
}

func now() time.Time {
	return time.Now().UTC()
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func copyCompetition(c model.Competition) model.Competition {
	c.Judges = copyStrings(c.Judges)
	return c
}

// resolveTeam returns a copy of t with its display fields filled in.
// Caller holds s.mu.
func (s *Store) resolveTeam(t model.Team) model.Team {
	t.Members = copyStrings(t.Members)
	if c, ok := s.competitions[t.CompetitionID]; ok {
		t.CompetitionTitle = c.Title
	}
	t.LeaderName = s.users[t.Leader].Name
	t.MemberNames = make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		name := s.users[m].Name
		if name == "" {
			name = m
		}
		t.MemberNames = append(t.MemberNames, name)
	}
	return t
}

// activeTeamOf returns the pending or approved team email belongs to in
// competitionID. Caller holds s.mu.
func (s *Store) activeTeamOf(competitionID, email string) (model.Team, bool) {
	for _, t := range s.teams {
		if t.CompetitionID == competitionID && t.IsActive() && t.HasMember(email) {
			return t, true
		}
	}
	return model.Team{}, false
}

func sortTeams(teams []model.Team, newestFirst bool) {
	sort.Slice(teams, func(i, j int) bool {
		if !teams[i].CreatedAt.Equal(teams[j].CreatedAt) {
			if newestFirst {
				return teams[i].CreatedAt.After(teams[j].CreatedAt)
			}
			return teams[i].CreatedAt.Before(teams[j].CreatedAt)
		}
		return teams[i].ID < teams[j].ID
	})
}
