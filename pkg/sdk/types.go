package flagdex

import (
	"time"

	"github.com/kailas-cloud/flagdex/internal/domain"
)

// Keyspace names the keys and hash fields of the index. Zero fields keep
// the defaults of the forum layout (post:{id}, posts:answered, tid:{scope}:answered).
type Keyspace struct {
	EntityPrefix string
	ScopePrefix  string
	ParentField  string
	ScopeField   string
	OwnerField   string
	DeletedField string
	FlagField    string
	ScoreField   string
	GlobalIndex  string
	ScopedIndex  string // must contain {scope}
}

func (k Keyspace) resolve() domain.Keyspace {
	ks := domain.DefaultKeyspace()
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&ks.EntityPrefix, k.EntityPrefix)
	set(&ks.ScopePrefix, k.ScopePrefix)
	set(&ks.ParentField, k.ParentField)
	set(&ks.ScopeField, k.ScopeField)
	set(&ks.OwnerField, k.OwnerField)
	set(&ks.DeletedField, k.DeletedField)
	set(&ks.FlagField, k.FlagField)
	set(&ks.ScoreField, k.ScoreField)
	set(&ks.GlobalIndex, k.GlobalIndex)
	set(&ks.ScopedIndex, k.ScopedIndex)
	return ks
}

// Outcome is the result of a flag or lifecycle operation.
type Outcome struct {
	EntityID string
	ParentID string
	Flagged  bool
	Changed  bool // false when the call was a no-op
}

// Order controls index traversal.
type Order string

// Order constants.
const (
	Newest Order = "newest"
	Oldest Order = "oldest"
)

// ListOptions selects a page of flagged entities.
type ListOptions struct {
	Parent string // empty lists the global index
	Cursor string
	Limit  int
	Order  Order
}

// Item is one flagged entity.
type Item struct {
	EntityID  string
	FlaggedAt time.Time
}

// Page is a slice of an index.
type Page struct {
	Items      []Item
	NextCursor string // empty on the last page
	Total      int64
}

// ChangeEvent describes a committed flag change.
type ChangeEvent struct {
	ID       string
	Name     string
	EntityID string
	ParentID string
	ScopeID  string
	Flagged  bool
	ActorID  string
	At       time.Time
}

// RepairReport summarizes a repair sweep.
type RepairReport struct {
	Scanned int
	Fixed   int
	Failed  int
	Stale   int
}

// EntityRepair lists the index fixes applied to one entity.
type EntityRepair struct {
	EntityID string
	Vanished bool
	Fixed    []string
}
