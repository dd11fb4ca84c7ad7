package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/kailas-cloud/flagdex/internal/db"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New()
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestHash_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.HSet(ctx, "post:1", map[string]string{"tid": "7", "answered": "0"}); err != nil {
		t.Fatalf("hset: %v", err)
	}
	if err := s.HSet(ctx, "post:1", map[string]string{"answered": "1"}); err != nil {
		t.Fatalf("hset: %v", err)
	}

	m, err := s.HGetAll(ctx, "post:1")
	if err != nil {
		t.Fatalf("hgetall: %v", err)
	}
	if m["tid"] != "7" || m["answered"] != "1" {
		t.Errorf("unexpected hash: %v", m)
	}

	if _, err := s.HGet(ctx, "post:1", "missing"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}

	empty, err := s.HGetAll(ctx, "post:404")
	if err != nil || len(empty) != 0 {
		t.Errorf("missing hash: got %v, %v", empty, err)
	}
}

func TestZSet_RangeOrderAndRemove(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.ZAddMulti(ctx, []db.ZAddItem{
		{Key: "z", Score: 3, Member: "c"},
		{Key: "z", Score: 1, Member: "a"},
		{Key: "z", Score: 2, Member: "b"},
	})
	if err != nil {
		t.Fatalf("zadd: %v", err)
	}

	asc, _ := s.ZRange(ctx, "z", 0, -1, false)
	if len(asc) != 3 || asc[0].Member != "a" || asc[2].Member != "c" {
		t.Errorf("asc = %v", asc)
	}
	desc, _ := s.ZRange(ctx, "z", 0, 1, true)
	if len(desc) != 2 || desc[0].Member != "c" || desc[1].Member != "b" {
		t.Errorf("desc = %v", desc)
	}
	past, _ := s.ZRange(ctx, "z", 10, 20, false)
	if len(past) != 0 {
		t.Errorf("out-of-range page = %v", past)
	}

	if err := s.ZRemMulti(ctx, []db.ZRemItem{{Key: "z", Member: "nope"}, {Key: "missing", Member: "a"}}); err != nil {
		t.Fatalf("removing absent members must not fail: %v", err)
	}
	if err := s.ZRemMulti(ctx, []db.ZRemItem{{Key: "z", Member: "a"}}); err != nil {
		t.Fatalf("zrem: %v", err)
	}
	n, _ := s.ZCard(ctx, "z")
	if n != 2 {
		t.Errorf("zcard = %d, want 2", n)
	}

	scores, _ := s.ZScoreMulti(ctx, []string{"z", "missing"}, "b")
	if scores[0] == nil || *scores[0] != 2 || scores[1] != nil {
		t.Errorf("scores = %v", scores)
	}
}

func TestScan_MatchesGlob(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_ = s.HSet(ctx, "post:1", map[string]string{"a": "1"})
	_ = s.HSet(ctx, "post:2", map[string]string{"a": "1"})
	_ = s.HSet(ctx, "post:imports/2024/7", map[string]string{"a": "1"})
	_ = s.HSet(ctx, "topic:1", map[string]string{"a": "1"})
	_ = s.ZAddMulti(ctx, []db.ZAddItem{{Key: "tid:1:answered", Score: 1, Member: "1"}})

	keys, err := s.Scan(ctx, "post:*")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	sort.Strings(keys)
	want := []string{"post:1", "post:2", "post:imports/2024/7"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("keys = %v, want %v", keys, want)
	}

	idx, _ := s.Scan(ctx, "tid:*:answered")
	if len(idx) != 1 {
		t.Errorf("index keys = %v", idx)
	}
}

func TestEval_RunsOnServer(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	script := db.NewScript(`
redis.call('HSET', KEYS[1], 'answered', ARGV[1])
redis.call('ZADD', KEYS[2], 5, ARGV[2])
return {redis.call('HGET', KEYS[1], 'answered'), tostring(redis.call('ZCARD', KEYS[2]))}
`)

	for range 2 {
		reply, err := s.Eval(ctx, script, []string{"post:1", "posts:answered"}, []string{"1", "1"})
		if err != nil {
			t.Fatalf("eval: %v", err)
		}
		if len(reply) != 2 || reply[0] != "1" || reply[1] != "1" {
			t.Errorf("reply = %v", reply)
		}
	}
}

func TestFailNext_OneShot(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	s.FailNext(db.OpZAdd, errors.New("READONLY injected"))

	err := s.ZAddMulti(ctx, []db.ZAddItem{{Key: "z", Score: 1, Member: "a"}})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || !strings.Contains(err.Error(), "READONLY injected") {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if err := s.ZAddMulti(ctx, []db.ZAddItem{{Key: "z", Score: 1, Member: "a"}}); err != nil {
		t.Fatalf("second call should succeed: %v", err)
	}
}

func TestPublish_Captured(t *testing.T) {
	s := newStore(t)
	if _, err := s.Publish(context.Background(), "topic_1", []byte("x")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msgs := s.Published()
	if len(msgs) != 1 || msgs[0].Channel != "topic_1" || string(msgs[0].Payload) != "x" {
		t.Errorf("published = %v", msgs)
	}
}
