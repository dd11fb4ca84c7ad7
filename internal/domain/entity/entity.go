package entity

import "time"

// Entity is a flaggable entity (forum reply) as stored in its hash.
// Immutable value object; mutations go through the indexer.
type Entity struct {
	id        string
	parentID  string
	scopeID   string
	ownerID   string
	flagged   bool
	deleted   bool
	flaggedAt int64
}

// Reconstruct creates an Entity without validation (storage hydration).
func Reconstruct(id, parentID, scopeID, ownerID string, flagged, deleted bool, flaggedAt int64) Entity {
	return Entity{
		id:        id,
		parentID:  parentID,
		scopeID:   scopeID,
		ownerID:   ownerID,
		flagged:   flagged,
		deleted:   deleted,
		flaggedAt: flaggedAt,
	}
}

// ID returns the entity identifier.
func (e *Entity) ID() string { return e.id }

// ParentID returns the owning scope (topic) id. Keys the scoped index.
func (e *Entity) ParentID() string { return e.parentID }

// ScopeID returns the broader scope (category) id. May be empty.
func (e *Entity) ScopeID() string { return e.scopeID }

// OwnerID returns the author id.
func (e *Entity) OwnerID() string { return e.ownerID }

// Flagged reports the stored flag.
func (e *Entity) Flagged() bool { return e.flagged }

// Deleted reports the soft-delete marker.
func (e *Entity) Deleted() bool { return e.deleted }

// FlaggedAt returns the unix millis of the last set-to-true, zero if never set.
func (e *Entity) FlaggedAt() int64 { return e.flaggedAt }

// Indexed reports whether the entity must be a member of both indices.
func (e *Entity) Indexed() bool { return e.flagged && !e.deleted }

// Score returns the index score to use when (re)inserting the entity.
// Falls back to now when no score was preserved.
func (e *Entity) Score(now time.Time) int64 {
	if e.flaggedAt > 0 {
		return e.flaggedAt
	}
	return now.UnixMilli()
}

// Outcome is the result of a flag mutation or lifecycle hook.
type Outcome struct {
	EntityID string
	ParentID string
	ScopeID  string
	Flagged  bool
	// Changed is false when the stored state already matched.
	Changed bool
}

// Repair describes what reconciliation fixed for one entity.
type Repair struct {
	EntityID string
	// Vanished is set when the entity hash no longer exists.
	Vanished bool
	// Fixed lists applied fixes as "<index>:<action>", e.g. "scoped:add".
	Fixed []string
}

// Transition is what one atomic state change observed and did.
type Transition struct {
	// Found is false when the hash is gone or its parent no longer matches.
	Found   bool
	Changed bool
	// Flagged is the flag after the change.
	Flagged bool
}

// Membership is the state reconciliation found before fixing drift.
type Membership struct {
	Found    bool
	Indexed  bool
	InGlobal bool
	InScoped bool
}
