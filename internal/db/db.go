package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	SortedSetStore
	Publisher
	Scripter
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// ZMember is a sorted set member with its score.
type ZMember struct {
	Member string
	Score  float64
}

// ZAddItem is a single ZADD of one member into one key, used for pipelined writes.
type ZAddItem struct {
	Key    string
	Score  float64
	Member string
}

// ZRemItem is a single ZREM of one member from one key, used for pipelined writes.
type ZRemItem struct {
	Key    string
	Member string
}

// SortedSetStore provides sorted set operations.
type SortedSetStore interface {
	ZAddMulti(ctx context.Context, items []ZAddItem) error
	ZRemMulti(ctx context.Context, items []ZRemItem) error
	// ZScoreMulti returns one score per key for member; nil marks absence.
	ZScoreMulti(ctx context.Context, keys []string, member string) ([]*float64, error)
	// ZRange returns members by rank [start, stop] inclusive. rev orders by descending score.
	ZRange(ctx context.Context, key string, start, stop int64, rev bool) ([]ZMember, error)
	ZCard(ctx context.Context, key string) (int64, error)
}

// Publisher sends messages to pub/sub channels.
type Publisher interface {
	Publish(ctx context.Context, channel string, message []byte) (int64, error)
}

// Script is a server-side Lua script. Stores cache whatever they need to run it.
type Script struct {
	src string
}

// NewScript wraps Lua source.
func NewScript(src string) *Script {
	return &Script{src: src}
}

// Source returns the Lua source.
func (s *Script) Source() string { return s.src }

// Scripter runs Lua scripts atomically on the server.
type Scripter interface {
	// Eval runs script and returns its reply, which must be a flat array of strings.
	Eval(ctx context.Context, script *Script, keys, args []string) ([]string, error)
}
