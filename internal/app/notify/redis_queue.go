package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"robocomp/internal/domain/model"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue pushes events onto a Redis list drained by the notification
// worker. Failures are logged and the event is dropped.
type RedisQueue struct {
	rdb       *redis.Client
	queueName string
}

func NewRedisQueue(rdb *redis.Client, queueName string) *RedisQueue {
	return &RedisQueue{rdb: rdb, queueName: queueName}
}

func (q *RedisQueue) Emit(ctx context.Context, ev model.Event) {
	ev = Prepare(ev, time.Now().UTC())
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal event", "event_type", ev.Type, "error", err)
		return
	}
	// The triggering request may already be finishing; enqueue on a detached context.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := q.rdb.LPush(pushCtx, q.queueName, payload).Err(); err != nil {
		slog.WarnContext(ctx, "failed to enqueue event",
			"event_type", ev.Type, "event_id", ev.ID, "team_id", ev.TeamID, "error", err)
		return
	}
	slog.DebugContext(ctx, "event enqueued", "event_type", ev.Type, "event_id", ev.ID, "queue", q.queueName)
}
