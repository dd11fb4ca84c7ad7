package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/flagdex/internal/domain/event"
)

// RoomPlaceholder is replaced by the scope id in room templates.
const RoomPlaceholder = "{id}"

// Default room templates of the forum platform.
const (
	DefaultParentRoom = "topic_" + RoomPlaceholder
	DefaultScopeRoom  = "category_" + RoomPlaceholder
)

// publisher is the consumer interface for pub/sub (ISP).
type publisher interface {
	Publish(ctx context.Context, channel string, message []byte) (int64, error)
}

// Repo publishes change events to room channels.
type Repo struct {
	pub        publisher
	parentRoom string
	scopeRoom  string
}

// New creates a broadcast repository. Empty templates fall back to the defaults.
func New(p publisher, parentRoom, scopeRoom string) *Repo {
	if parentRoom == "" {
		parentRoom = DefaultParentRoom
	}
	if scopeRoom == "" {
		scopeRoom = DefaultScopeRoom
	}
	return &Repo{pub: p, parentRoom: parentRoom, scopeRoom: scopeRoom}
}

// Rooms returns the channels an event goes to: the parent room, then the
// broader scope room when the event carries one.
func (r *Repo) Rooms(ev event.Change) []string {
	rooms := []string{strings.ReplaceAll(r.parentRoom, RoomPlaceholder, ev.ParentID)}
	if ev.ScopeID != "" {
		rooms = append(rooms, strings.ReplaceAll(r.scopeRoom, RoomPlaceholder, ev.ScopeID))
	}
	return rooms
}

// Publish sends one event to one room. Returns the number of receivers.
func (r *Repo) Publish(ctx context.Context, room string, ev event.Change) (int64, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}
	n, err := r.pub.Publish(ctx, room, raw)
	if err != nil {
		return 0, fmt.Errorf("publish %s: %w", room, err)
	}
	return n, nil
}
