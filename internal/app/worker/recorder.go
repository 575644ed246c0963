package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Recorder turns an event into stored notifications for its recipients and,
// when Redis is available, republishes it on the competition and team
// channels consumed by the push gateway.
type Recorder struct {
	notifications repository.NotificationRepository
	rdb           *redis.Client // optional
	channelPrefix string
	now           func() time.Time
}

func NewRecorder(notifications repository.NotificationRepository, rdb *redis.Client, channelPrefix string) *Recorder {
	return &Recorder{
		notifications: notifications,
		rdb:           rdb,
		channelPrefix: channelPrefix,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func CompetitionChannel(prefix, competitionID string) string {
	return prefix + "competition:" + competitionID
}

func TeamChannel(prefix, teamID string) string {
	return prefix + "team:" + teamID
}

// Handle records ev. Every recipient is attempted; the joined error reports
// the ones that failed.
func (r *Recorder) Handle(ctx context.Context, ev model.Event) error {
	kind, title, message, ok := describe(ev)
	if !ok {
		slog.WarnContext(ctx, "ignoring unknown event type", "event_type", ev.Type, "event_id", ev.ID)
		return nil
	}

	var errs []error
	for _, recipient := range ev.Recipients {
		n := &model.Notification{
			ID:             uuid.NewString(),
			RecipientEmail: recipient,
			Kind:           kind,
			Title:          title,
			Message:        message,
			CreatedAt:      r.now(),
		}
		if ev.CompetitionID != "" {
			n.CompetitionID = &ev.CompetitionID
		}
		if ev.TeamID != "" {
			n.TeamID = &ev.TeamID
		}
		if err := r.notifications.Create(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", recipient, err))
		}
	}

	if r.rdb != nil {
		if err := r.publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandleEvent is Handle as a notify.Handler, for in-process delivery over a
// notify.Bus when no queue is configured.
func (r *Recorder) HandleEvent(ctx context.Context, ev model.Event) {
	if err := r.Handle(ctx, ev); err != nil {
		slog.WarnContext(ctx, "failed to record event", "event_type", ev.Type, "event_id", ev.ID, "error", err)
	}
}

func (r *Recorder) publish(ctx context.Context, ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}
	var channels []string
	if ev.CompetitionID != "" {
		channels = append(channels, CompetitionChannel(r.channelPrefix, ev.CompetitionID))
	}
	if ev.TeamID != "" {
		channels = append(channels, TeamChannel(r.channelPrefix, ev.TeamID))
	}
	for _, ch := range channels {
		if err := r.rdb.Publish(ctx, ch, payload).Err(); err != nil {
			return fmt.Errorf("publish event %s to %s: %w", ev.ID, ch, err)
		}
	}
	return nil
}

func describe(ev model.Event) (kind, title, message string, ok bool) {
	switch ev.Type {
	case model.EventTeamRegistered:
		return model.NotificationTeamRegistration, "New team registration",
			fmt.Sprintf("Team %q registered for %q and is awaiting review.", ev.TeamName, ev.CompetitionTitle), true
	case model.EventTeamStatusChanged:
		return model.NotificationTeamStatusChanged, "Team " + string(ev.Status),
			fmt.Sprintf("Your team %q has been %s for %q.", ev.TeamName, ev.Status, ev.CompetitionTitle), true
	case model.EventTeamMemberJoined:
		return model.NotificationTeamMemberJoined, "New team member",
			fmt.Sprintf("%s joined team %q.", ev.Subject, ev.TeamName), true
	case model.EventTeamMemberRemoved:
		return model.NotificationTeamMemberRemoved, "Team member removed",
			fmt.Sprintf("%s was removed from team %q.", ev.Subject, ev.TeamName), true
	}
	return "", "", "", false
}
