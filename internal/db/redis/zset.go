package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/flagdex/internal/db"
)

// ZAddMulti adds members to sorted sets in a single DoMulti round-trip.
func (s *Store) ZAddMulti(ctx context.Context, items []db.ZAddItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		cmds[i] = s.b().Zadd().Key(item.Key).ScoreMember().ScoreMember(item.Score, item.Member).Build()
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpZAdd, Err: fmt.Errorf("key %s: %w", items[i].Key, err)}
		}
	}
	return nil
}

// ZRemMulti removes members from sorted sets in a single DoMulti round-trip.
// Removing an absent member is not an error.
func (s *Store) ZRemMulti(ctx context.Context, items []db.ZRemItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		cmds[i] = s.b().Zrem().Key(item.Key).Member(item.Member).Build()
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpZRem, Err: fmt.Errorf("key %s: %w", items[i].Key, err)}
		}
	}
	return nil
}

// ZScoreMulti looks up member in each key with one pipelined ZSCORE per key.
func (s *Store) ZScoreMulti(ctx context.Context, keys []string, member string) ([]*float64, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Zscore().Key(key).Member(member).Build()
	}

	out := make([]*float64, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		score, err := res.AsFloat64()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				continue
			}
			return nil, &db.Error{Op: db.OpZScore, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = &score
	}
	return out, nil
}

// ZRange returns members with scores by rank.
func (s *Store) ZRange(ctx context.Context, key string, start, stop int64, rev bool) ([]db.ZMember, error) {
	rng := s.b().Zrange().Key(key).
		Min(strconv.FormatInt(start, 10)).
		Max(strconv.FormatInt(stop, 10))

	var cmd rueidis.Completed
	if rev {
		cmd = rng.Rev().Withscores().Build()
	} else {
		cmd = rng.Withscores().Build()
	}

	scores, err := s.do(ctx, cmd).AsZScores()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRange, Err: err}
	}

	out := make([]db.ZMember, len(scores))
	for i, z := range scores {
		out[i] = db.ZMember{Member: z.Member, Score: z.Score}
	}
	return out, nil
}

// ZCard returns the number of members in a sorted set.
func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Zcard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpZCard, Err: err}
	}
	return n, nil
}
