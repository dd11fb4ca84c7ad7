package flag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/flagdex/internal/db"
	"github.com/kailas-cloud/flagdex/internal/db/memory"
	"github.com/kailas-cloud/flagdex/internal/domain"
	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
	"github.com/kailas-cloud/flagdex/internal/domain/event"
	"github.com/kailas-cloud/flagdex/internal/repository/broadcast"
	entityrepo "github.com/kailas-cloud/flagdex/internal/repository/entity"
	indexrepo "github.com/kailas-cloud/flagdex/internal/repository/index"
	staterepo "github.com/kailas-cloud/flagdex/internal/repository/state"
	"github.com/kailas-cloud/flagdex/internal/usecase/authz"
	"github.com/kailas-cloud/flagdex/internal/usecase/indexer"
	"github.com/kailas-cloud/flagdex/internal/usecase/notify"
)

// stack wires the real repositories over the in-memory store.
type stack struct {
	svc      *Service
	store    *memory.Store
	indexer  *indexer.Service
	notifier *notify.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()
	return newStackWith(t, nil)
}

// newStackWith lets a test wrap the state repository the indexer writes through.
func newStackWith(t *testing.T, wrap func(indexer.StateRepository) indexer.StateRepository) *stack {
	t.Helper()
	ks := domain.DefaultKeyspace()
	store, err := memory.New()
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	t.Cleanup(store.Close)

	ents := entityrepo.New(store, ks)
	idx := indexrepo.New(store, ks)
	var state indexer.StateRepository = staterepo.New(store, ks)
	if wrap != nil {
		state = wrap(state)
	}
	ixr := indexer.New(ents, state, zap.NewNop())
	ntf := notify.New(broadcast.New(store, "", ""), zap.NewNop())
	t.Cleanup(ntf.Wait)
	pol := authz.New(ents, []string{"admin"})
	return &stack{
		svc:      New(ents, ixr, idx, pol, ntf),
		store:    store,
		indexer:  ixr,
		notifier: ntf,
	}
}

func (s *stack) seed(t *testing.T, id, parent, owner string) {
	t.Helper()
	ctx := context.Background()
	if err := s.store.HSet(ctx, "post:"+id, map[string]string{"tid": parent, "cid": "C1", "uid": owner}); err != nil {
		t.Fatalf("seed entity: %v", err)
	}
	if err := s.store.HSet(ctx, "topic:"+parent, map[string]string{"uid": "topic-owner-" + parent}); err != nil {
		t.Fatalf("seed scope: %v", err)
	}
}

func (s *stack) inIndices(t *testing.T, id, parent string) (global, scoped bool) {
	t.Helper()
	scores, err := s.store.ZScoreMulti(context.Background(), []string{"posts:answered", "tid:" + parent + ":answered"}, id)
	if err != nil {
		t.Fatalf("zscore: %v", err)
	}
	return scores[0] != nil, scores[1] != nil
}

func (s *stack) hash(t *testing.T, id string) map[string]string {
	t.Helper()
	m, err := s.store.HGetAll(context.Background(), "post:"+id)
	if err != nil {
		t.Fatalf("hgetall: %v", err)
	}
	return m
}

func (s *stack) assertIndexed(t *testing.T, id, parent string, want bool) {
	t.Helper()
	g, sc := s.inIndices(t, id, parent)
	if g != want || sc != want {
		t.Errorf("%s: global=%v scoped=%v, want both %v", id, g, sc, want)
	}
}

func TestScenario_FlagToggleDeleteRestore(t *testing.T) {
	st := newStack(t)
	st.seed(t, "E1", "T1", "actorA")
	ctx := context.Background()

	out, err := st.svc.Set(ctx, "E1", true, "actorA")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !out.Flagged {
		t.Fatal("set: expected flagged")
	}
	st.assertIndexed(t, "E1", "T1", true)

	out, err = st.svc.Toggle(ctx, "E1", "actorA")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if out.Flagged {
		t.Fatal("toggle: expected unflagged")
	}
	st.assertIndexed(t, "E1", "T1", false)

	if _, err := st.svc.Set(ctx, "E1", true, "actorA"); err != nil {
		t.Fatalf("re-flag: %v", err)
	}
	if _, err := st.svc.Delete(ctx, "E1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	st.assertIndexed(t, "E1", "T1", false)

	if _, err := st.svc.Restore(ctx, "E1"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	st.assertIndexed(t, "E1", "T1", true)
}

func TestProperty_SetTwiceIsIdempotent(t *testing.T) {
	st := newStack(t)
	st.seed(t, "E1", "T1", "actorA")
	ctx := context.Background()

	if _, err := st.svc.Set(ctx, "E1", true, "actorA"); err != nil {
		t.Fatalf("first set: %v", err)
	}
	st.notifier.Wait()
	hashOnce := st.hash(t, "E1")
	globalOnce, _ := st.store.ZRange(ctx, "posts:answered", 0, -1, false)
	publishedOnce := len(st.store.Published())

	out, err := st.svc.Set(ctx, "E1", true, "actorA")
	if err != nil {
		t.Fatalf("second set: %v", err)
	}
	st.notifier.Wait()
	if out.Changed {
		t.Error("second set must be a no-op")
	}
	if !reflect.DeepEqual(hashOnce, st.hash(t, "E1")) {
		t.Error("stored fields changed on repeated set")
	}
	globalTwice, _ := st.store.ZRange(ctx, "posts:answered", 0, -1, false)
	if !reflect.DeepEqual(globalOnce, globalTwice) {
		t.Errorf("index changed: %v -> %v", globalOnce, globalTwice)
	}
	if got := len(st.store.Published()); got != publishedOnce {
		t.Errorf("no-op published %d extra messages", got-publishedOnce)
	}
}

func TestProperty_FlagMatchesIndexMembership(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()

	ids := []string{"1", "2", "3", "4", "5", "6"}
	for i, id := range ids {
		st.seed(t, id, fmt.Sprintf("T%d", i%2), "owner")
	}

	rng := rand.New(rand.NewPCG(42, 7))
	for range 200 {
		id := ids[rng.IntN(len(ids))]
		var err error
		if rng.IntN(2) == 0 {
			_, err = st.svc.Toggle(ctx, id, "admin")
		} else {
			_, err = st.svc.Set(ctx, id, rng.IntN(2) == 0, "admin")
		}
		if err != nil {
			t.Fatalf("op on %s: %v", id, err)
		}
	}

	for i, id := range ids {
		flagged := st.hash(t, id)["answered"] == "1"
		st.assertIndexed(t, id, fmt.Sprintf("T%d", i%2), flagged)
	}
}

func TestProperty_DeleteRestoreFollowsFlag(t *testing.T) {
	for _, flagged := range []bool{true, false} {
		t.Run(fmt.Sprintf("flagged=%v", flagged), func(t *testing.T) {
			st := newStack(t)
			st.seed(t, "E1", "T1", "actorA")
			ctx := context.Background()

			if flagged {
				if _, err := st.svc.Set(ctx, "E1", true, "actorA"); err != nil {
					t.Fatalf("set: %v", err)
				}
			}
			if _, err := st.svc.Delete(ctx, "E1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			st.assertIndexed(t, "E1", "T1", false)

			if _, err := st.svc.Restore(ctx, "E1"); err != nil {
				t.Fatalf("restore: %v", err)
			}
			st.assertIndexed(t, "E1", "T1", flagged)
		})
	}
}

func TestProperty_FlagWhileDeletedStaysOutOfIndex(t *testing.T) {
	st := newStack(t)
	st.seed(t, "E1", "T1", "actorA")
	ctx := context.Background()

	if _, err := st.svc.Delete(ctx, "E1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.svc.Set(ctx, "E1", true, "actorA"); err != nil {
		t.Fatalf("set: %v", err)
	}
	st.assertIndexed(t, "E1", "T1", false)

	if _, err := st.svc.Restore(ctx, "E1"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	st.assertIndexed(t, "E1", "T1", true)
}

func TestProperty_PurgeIsPermanent(t *testing.T) {
	st := newStack(t)
	st.seed(t, "E1", "T1", "actorA")
	ctx := context.Background()

	if _, err := st.svc.Set(ctx, "E1", true, "actorA"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := st.svc.Purge(ctx, "E1"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	st.assertIndexed(t, "E1", "T1", false)

	exists, err := st.store.Exists(ctx, "post:E1")
	if err != nil || exists {
		t.Fatalf("exists = %v, %v", exists, err)
	}
	if _, err := st.svc.Set(ctx, "E1", true, "actorA"); !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("set after purge: expected ErrEntityNotFound, got %v", err)
	}
	if _, err := st.svc.Restore(ctx, "E1"); !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("restore after purge: expected ErrEntityNotFound, got %v", err)
	}
}

func TestProperty_ForbiddenChangesNothing(t *testing.T) {
	st := newStack(t)
	st.seed(t, "E1", "T1", "actorA")
	ctx := context.Background()
	before := st.hash(t, "E1")

	if _, err := st.svc.Set(ctx, "E1", true, "stranger"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("set: expected ErrForbidden, got %v", err)
	}
	if _, err := st.svc.Toggle(ctx, "E1", "stranger"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("toggle: expected ErrForbidden, got %v", err)
	}
	st.notifier.Wait()

	if !reflect.DeepEqual(before, st.hash(t, "E1")) {
		t.Error("forbidden request changed stored fields")
	}
	st.assertIndexed(t, "E1", "T1", false)
	if n := len(st.store.Published()); n != 0 {
		t.Errorf("forbidden request published %d messages", n)
	}
}

func TestProperty_ScopeOwnerMayFlag(t *testing.T) {
	st := newStack(t)
	st.seed(t, "E1", "T1", "actorA")

	if _, err := st.svc.Set(context.Background(), "E1", true, "topic-owner-T1"); err != nil {
		t.Fatalf("scope owner set: %v", err)
	}
	st.assertIndexed(t, "E1", "T1", true)
}

func TestProperty_NoOpPublishesNothing(t *testing.T) {
	st := newStack(t)
	st.seed(t, "E1", "T1", "actorA")
	ctx := context.Background()

	if _, err := st.svc.Set(ctx, "E1", false, "actorA"); err != nil {
		t.Fatalf("set: %v", err)
	}
	st.notifier.Wait()
	if n := len(st.store.Published()); n != 0 {
		t.Errorf("no-op published %d messages", n)
	}

	if _, err := st.svc.Set(ctx, "E1", true, "actorA"); err != nil {
		t.Fatalf("set: %v", err)
	}
	st.notifier.Wait()

	msgs := st.store.Published()
	if len(msgs) != 2 || msgs[0].Channel != "topic_T1" || msgs[1].Channel != "category_C1" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	var ev event.Change
	if err := json.Unmarshal(msgs[0].Payload, &ev); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if ev.EntityID != "E1" || !ev.Flagged || ev.ActorID != "actorA" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestProperty_ReconcileRepairsDrift(t *testing.T) {
	st := newStack(t)
	st.seed(t, "E1", "T1", "actorA")
	st.seed(t, "E2", "T1", "actorA")
	ctx := context.Background()

	if _, err := st.svc.Set(ctx, "E1", true, "actorA"); err != nil {
		t.Fatalf("set: %v", err)
	}
	// drift: E1 lost from the scoped index, E2 present although unflagged
	if err := st.store.ZRemMulti(ctx, []db.ZRemItem{{Key: "tid:T1:answered", Member: "E1"}}); err != nil {
		t.Fatalf("inject: %v", err)
	}
	if err := st.store.ZAddMulti(ctx, []db.ZAddItem{{Key: "posts:answered", Score: 1, Member: "E2"}}); err != nil {
		t.Fatalf("inject: %v", err)
	}

	rep, err := st.indexer.Reconcile(ctx, "E1")
	if err != nil || len(rep.Fixed) != 1 {
		t.Fatalf("reconcile E1: %+v, %v", rep, err)
	}
	rep, err = st.indexer.Reconcile(ctx, "E2")
	if err != nil || len(rep.Fixed) != 1 {
		t.Fatalf("reconcile E2: %+v, %v", rep, err)
	}
	st.assertIndexed(t, "E1", "T1", true)
	st.assertIndexed(t, "E2", "T1", false)
}

func TestProperty_FailedWriteLeavesNothingBehind(t *testing.T) {
	st := newStack(t)
	st.seed(t, "E1", "T1", "actorA")
	ctx := context.Background()
	before := st.hash(t, "E1")

	st.store.FailNext(db.OpEval, errors.New("READONLY injected"))
	if _, err := st.svc.Set(ctx, "E1", true, "actorA"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if !reflect.DeepEqual(before, st.hash(t, "E1")) {
		t.Errorf("failed set wrote fields: %v", st.hash(t, "E1"))
	}
	st.assertIndexed(t, "E1", "T1", false)

	if _, err := st.svc.Set(ctx, "E1", true, "actorA"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	st.assertIndexed(t, "E1", "T1", true)
}

func TestProperty_OutsideWriteHealedByReconcile(t *testing.T) {
	st := newStack(t)
	st.seed(t, "E1", "T1", "actorA")
	ctx := context.Background()

	// a writer that bypasses the indexer sets the field only
	if err := st.store.HSet(ctx, "post:E1", map[string]string{"answered": "1", "answeredAt": "1700000000000"}); err != nil {
		t.Fatalf("inject: %v", err)
	}
	st.assertIndexed(t, "E1", "T1", false)

	rep, err := st.indexer.Reconcile(ctx, "E1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(rep.Fixed) != 2 {
		t.Errorf("fixed = %v, want both indices", rep.Fixed)
	}
	st.assertIndexed(t, "E1", "T1", true)

	members, _ := st.store.ZRange(ctx, "posts:answered", 0, -1, false)
	if len(members) != 1 || members[0].Score != 1700000000000 {
		t.Errorf("global = %v, want the stored score", members)
	}
}

// gatedState parks the first unflag between the entity read and the write
// until the test releases it.
type gatedState struct {
	indexer.StateRepository
	used    atomic.Bool
	parked  chan struct{}
	release chan struct{}
}

func (g *gatedState) SetFlag(ctx context.Context, id, parentID string, flagged bool, score int64) (domentity.Transition, error) {
	if !flagged && g.used.CompareAndSwap(false, true) {
		close(g.parked)
		<-g.release
	}
	return g.StateRepository.SetFlag(ctx, id, parentID, flagged, score)
}

func TestProperty_InterleavedSetsKeepFieldAndIndexInStep(t *testing.T) {
	gate := &gatedState{parked: make(chan struct{}), release: make(chan struct{})}
	st := newStackWith(t, func(s indexer.StateRepository) indexer.StateRepository {
		gate.StateRepository = s
		return gate
	})
	st.seed(t, "E1", "T1", "actorA")
	ctx := context.Background()

	if _, err := st.svc.Set(ctx, "E1", true, "actorA"); err != nil {
		t.Fatalf("set: %v", err)
	}

	type result struct {
		out domentity.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := st.svc.Set(ctx, "E1", false, "actorA")
		done <- result{out, err}
	}()
	<-gate.parked

	// while the unflag is parked, another request flips the entity back and forth
	for _, v := range []bool{false, true} {
		if _, err := st.svc.Set(ctx, "E1", v, "admin"); err != nil {
			t.Fatalf("concurrent set %v: %v", v, err)
		}
	}
	st.assertIndexed(t, "E1", "T1", true)

	close(gate.release)
	res := <-done
	if res.err != nil {
		t.Fatalf("parked set: %v", res.err)
	}
	if !res.out.Changed || res.out.Flagged {
		t.Errorf("parked set outcome = %+v, want changed to unflagged", res.out)
	}
	if st.hash(t, "E1")["answered"] != "0" {
		t.Errorf("answered = %q, want 0", st.hash(t, "E1")["answered"])
	}
	st.assertIndexed(t, "E1", "T1", false)
}

func TestProperty_ConcurrentSetsKeepFieldAndIndexInStep(t *testing.T) {
	st := newStack(t)
	ids := []string{"1", "2", "3"}
	for _, id := range ids {
		st.seed(t, id, "T"+id, "owner")
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for w := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(w), 99))
			for range 25 {
				id := ids[rng.IntN(len(ids))]
				var err error
				if rng.IntN(3) == 0 {
					_, err = st.svc.Toggle(context.Background(), id, "admin")
				} else {
					_, err = st.svc.Set(context.Background(), id, rng.IntN(2) == 0, "admin")
				}
				if err != nil {
					errs <- fmt.Errorf("op on %s: %w", id, err)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	st.notifier.Wait()

	for _, id := range ids {
		flagged := st.hash(t, id)["answered"] == "1"
		st.assertIndexed(t, id, "T"+id, flagged)
	}
}

func TestProperty_HooksRunAfterCommit(t *testing.T) {
	st := newStack(t)
	st.seed(t, "E1", "T1", "actorA")
	ctx := context.Background()

	var seen string
	st.notifier.OnChange(func(hctx context.Context, ev event.Change) {
		m, _ := st.store.HGetAll(hctx, "post:"+ev.EntityID)
		seen = m["answered"]
	})
	st.notifier.OnChange(func(context.Context, event.Change) { panic("plugin bug") })

	out, err := st.svc.Set(ctx, "E1", true, "actorA")
	if err != nil || !out.Flagged {
		t.Fatalf("set: %+v, %v", out, err)
	}
	st.notifier.Wait()

	if seen != "1" {
		t.Errorf("hook observed answered=%q, want committed 1", seen)
	}
	st.assertIndexed(t, "E1", "T1", true)
}
