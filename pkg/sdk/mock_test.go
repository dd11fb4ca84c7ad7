package flagdex

import (
	"context"

	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
	"github.com/kailas-cloud/flagdex/internal/domain/listing"
	repairuc "github.com/kailas-cloud/flagdex/internal/usecase/repair"
)

// --- flagUseCase mock ---

type mockFlagUC struct {
	setFn     func(ctx context.Context, id string, desired bool, actor string) (domentity.Outcome, error)
	toggleFn  func(ctx context.Context, id, actor string) (domentity.Outcome, error)
	statusFn  func(ctx context.Context, id string) (domentity.Outcome, error)
	listFn    func(ctx context.Context, q listing.Query) (listing.Page, error)
	deleteFn  func(ctx context.Context, id string) (domentity.Outcome, error)
	restoreFn func(ctx context.Context, id string) (domentity.Outcome, error)
	purgeFn   func(ctx context.Context, id string) (domentity.Outcome, error)
}

func (m *mockFlagUC) Set(ctx context.Context, id string, desired bool, actor string) (domentity.Outcome, error) {
	return m.setFn(ctx, id, desired, actor)
}

func (m *mockFlagUC) Toggle(ctx context.Context, id, actor string) (domentity.Outcome, error) {
	return m.toggleFn(ctx, id, actor)
}

func (m *mockFlagUC) Status(ctx context.Context, id string) (domentity.Outcome, error) {
	return m.statusFn(ctx, id)
}

func (m *mockFlagUC) List(ctx context.Context, q listing.Query) (listing.Page, error) {
	return m.listFn(ctx, q)
}

func (m *mockFlagUC) Delete(ctx context.Context, id string) (domentity.Outcome, error) {
	return m.deleteFn(ctx, id)
}

func (m *mockFlagUC) Restore(ctx context.Context, id string) (domentity.Outcome, error) {
	return m.restoreFn(ctx, id)
}

func (m *mockFlagUC) Purge(ctx context.Context, id string) (domentity.Outcome, error) {
	return m.purgeFn(ctx, id)
}

// --- repairUseCase mock ---

type mockRepairUC struct {
	runFn       func(ctx context.Context) (repairuc.Report, error)
	reconcileFn func(ctx context.Context, id string) (domentity.Repair, error)
}

func (m *mockRepairUC) Run(ctx context.Context) (repairuc.Report, error) {
	return m.runFn(ctx)
}

func (m *mockRepairUC) Reconcile(ctx context.Context, id string) (domentity.Repair, error) {
	return m.reconcileFn(ctx, id)
}
