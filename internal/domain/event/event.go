package event

import "time"

// DefaultName is the event name clients listen for.
const DefaultName = "event:post_answered"

// Change is the payload pushed to rooms after a committed flag change.
type Change struct {
	ID       string    `json:"id"`
	Name     string    `json:"event"`
	EntityID string    `json:"entity_id"`
	ParentID string    `json:"parent_id"`
	ScopeID  string    `json:"scope_id,omitempty"`
	Flagged  bool      `json:"flagged"`
	ActorID  string    `json:"actor_id"`
	At       time.Time `json:"at"`
}
