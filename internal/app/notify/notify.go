// Package notify announces committed state changes. Delivery is best-effort:
// emitters never report failures back to the operation that triggered them.
package notify

import (
	"context"
	"robocomp/internal/domain/model"
	"time"

	"github.com/google/uuid"
)

// Emitter publishes events after the triggering change has been committed.
type Emitter interface {
	Emit(ctx context.Context, ev model.Event)
}

// Prepare stamps an id and timestamp on ev if they are missing.
func Prepare(ev model.Event, now time.Time) model.Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = now
	}
	return ev
}
