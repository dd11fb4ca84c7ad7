package notify

import (
	"context"

	"github.com/kailas-cloud/flagdex/internal/domain/event"
)

// Broadcaster delivers change events to room channels.
type Broadcaster interface {
	Rooms(ev event.Change) []string
	Publish(ctx context.Context, room string, ev event.Change) (int64, error)
}

// Hook runs after a committed flag change (plugin hook equivalent).
// Hooks must not block for long; they share the publish deadline.
type Hook func(ctx context.Context, ev event.Change)
