package domain

import (
	"errors"
	"strings"
)

// ScopePlaceholder is replaced by the parent scope id in ScopedIndex templates.
const ScopePlaceholder = "{scope}"

// Keyspace describes where flag state and its indices live in the store.
// Defaults reproduce the forum layout: post:{pid} hashes, posts:answered, tid:{tid}:answered.
type Keyspace struct {
	EntityPrefix string
	ScopePrefix  string

	ParentField  string
	ScopeField   string
	OwnerField   string
	DeletedField string
	FlagField    string
	ScoreField   string

	GlobalIndex string
	ScopedIndex string
}

// DefaultKeyspace returns the "answered" keyspace of the forum platform.
func DefaultKeyspace() Keyspace {
	return Keyspace{
		EntityPrefix: "post:",
		ScopePrefix:  "topic:",
		ParentField:  "tid",
		ScopeField:   "cid",
		OwnerField:   "uid",
		DeletedField: "deleted",
		FlagField:    "answered",
		ScoreField:   "answeredAt",
		GlobalIndex:  "posts:answered",
		ScopedIndex:  "tid:" + ScopePlaceholder + ":answered",
	}
}

// Validate checks that every key and field name is set and the scoped template is usable.
func (k Keyspace) Validate() error {
	for name, v := range map[string]string{
		"entity_prefix": k.EntityPrefix,
		"scope_prefix":  k.ScopePrefix,
		"parent_field":  k.ParentField,
		"scope_field":   k.ScopeField,
		"owner_field":   k.OwnerField,
		"deleted_field": k.DeletedField,
		"flag_field":    k.FlagField,
		"score_field":   k.ScoreField,
		"global_index":  k.GlobalIndex,
		"scoped_index":  k.ScopedIndex,
	} {
		if strings.TrimSpace(v) == "" {
			return errors.New("keyspace." + name + " is required")
		}
	}
	if strings.Count(k.ScopedIndex, ScopePlaceholder) != 1 {
		return errors.New("keyspace.scoped_index must contain " + ScopePlaceholder + " exactly once")
	}
	if k.ScopedIndexKey("x") == k.GlobalIndex {
		return errors.New("keyspace.scoped_index collides with global_index")
	}
	return nil
}

// EntityKey returns the hash key of an entity.
func (k Keyspace) EntityKey(id string) string { return k.EntityPrefix + id }

// ScopeKey returns the hash key of a parent scope (topic).
func (k Keyspace) ScopeKey(scopeID string) string { return k.ScopePrefix + scopeID }

// ScopedIndexKey returns the per-parent index key.
func (k Keyspace) ScopedIndexKey(parentID string) string {
	return strings.Replace(k.ScopedIndex, ScopePlaceholder, parentID, 1)
}

// EntityPattern is the SCAN pattern over entity hashes.
func (k Keyspace) EntityPattern() string { return k.EntityPrefix + "*" }

// ScopedIndexPattern is the SCAN pattern over every scoped index.
func (k Keyspace) ScopedIndexPattern() string {
	return strings.Replace(k.ScopedIndex, ScopePlaceholder, "*", 1)
}

// EntityIDFromKey extracts the id from an entity hash key.
// Sub-keys such as post:42:editors are rejected.
func (k Keyspace) EntityIDFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, k.EntityPrefix)
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}

// ParentFromIndexKey extracts the parent id from a scoped index key.
func (k Keyspace) ParentFromIndexKey(key string) (string, bool) {
	before, after, _ := strings.Cut(k.ScopedIndex, ScopePlaceholder)
	if len(key) <= len(before)+len(after) ||
		!strings.HasPrefix(key, before) || !strings.HasSuffix(key, after) {
		return "", false
	}
	return key[len(before) : len(key)-len(after)], true
}
