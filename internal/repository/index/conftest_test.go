package index

import (
	"context"
	"testing"

	"github.com/kailas-cloud/flagdex/internal/db"
	"github.com/kailas-cloud/flagdex/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	zrangeFn func(ctx context.Context, key string, start, stop int64, rev bool) ([]db.ZMember, error)
	zcardFn  func(ctx context.Context, key string) (int64, error)
	scanFn   func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockStore) ZRange(ctx context.Context, key string, start, stop int64, rev bool) ([]db.ZMember, error) {
	if m.zrangeFn != nil {
		return m.zrangeFn(ctx, key, start, stop, rev)
	}
	return nil, nil
}

func (m *mockStore) ZCard(ctx context.Context, key string) (int64, error) {
	if m.zcardFn != nil {
		return m.zcardFn(ctx, key)
	}
	return 0, nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, domain.DefaultKeyspace()), ms
}
