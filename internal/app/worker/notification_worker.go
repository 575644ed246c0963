package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"robocomp/internal/domain/model"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPollTimeout = 5 * time.Second

// NotificationWorker drains the event queue filled by notify.RedisQueue.
// Each event is claimed with SETNX before it is handled, so with several
// workers an event is recorded at most once.
type NotificationWorker struct {
	rdb         *redis.Client
	queueName   string
	dedupeTTL   time.Duration
	pollTimeout time.Duration
	recorder    *Recorder
}

func NewNotificationWorker(rdb *redis.Client, queueName string, dedupeTTL time.Duration, recorder *Recorder) *NotificationWorker {
	return &NotificationWorker{
		rdb:         rdb,
		queueName:   queueName,
		dedupeTTL:   dedupeTTL,
		pollTimeout: defaultPollTimeout,
		recorder:    recorder,
	}
}

func dedupeKey(eventID string) string {
	return "notification_event:" + eventID
}

// Start blocks until ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) {
	slog.Info("notification worker started", "queue", w.queueName)
	for {
		select {
		case <-ctx.Done():
			slog.Info("notification worker stopping")
			return
		default:
		}

		// Blocking pop with a bounded wait so cancellation is noticed.
		result, err := w.rdb.BRPop(ctx, w.pollTimeout, w.queueName).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			slog.Error("failed to BRPop from notification queue", "queue", w.queueName, "error", err)
			if !sleep(ctx, 5*time.Second) {
				return
			}
			continue
		}

		// result is [queueName, value]
		if len(result) < 2 || result[1] == "" {
			slog.Warn("BRPop returned an empty payload", "queue", w.queueName)
			continue
		}
		w.process(ctx, []byte(result[1]))
	}
}

func (w *NotificationWorker) process(ctx context.Context, payload []byte) {
	var ev model.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		slog.Error("dropping malformed event", "error", err)
		return
	}
	if ev.ID == "" {
		slog.Warn("dropping event without id", "event_type", ev.Type)
		return
	}

	claimed, err := w.rdb.SetNX(ctx, dedupeKey(ev.ID), "1", w.dedupeTTL).Result()
	if err != nil {
		slog.Error("failed to claim event", "event_id", ev.ID, "error", err)
		return
	}
	if !claimed {
		slog.Debug("event already handled", "event_id", ev.ID)
		return
	}

	if err := w.recorder.Handle(ctx, ev); err != nil {
		slog.Error("failed to record notifications", "event_id", ev.ID, "event_type", ev.Type, "team_id", ev.TeamID, "error", err)
		return
	}
	slog.Debug("event handled", "event_id", ev.ID, "event_type", ev.Type, "recipients", len(ev.Recipients))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
