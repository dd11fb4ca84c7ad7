package flagdex

import (
	"context"
	"fmt"
	"time"
)

// RepairService restores index consistency after crashes or manual edits.
type RepairService struct {
	svc repairUseCase
	obs *observer
}

// Run reconciles every entity and drops stale index members.
func (s *RepairService) Run(ctx context.Context) (_ RepairReport, err error) {
	start := time.Now()
	defer func() { s.obs.observe("repair.run", start, err) }()

	r, err := s.svc.Run(ctx)
	report := RepairReport{Scanned: r.Scanned, Fixed: r.Fixed, Failed: r.Failed, Stale: r.Stale}
	if err != nil {
		return report, fmt.Errorf("repair: %w", err)
	}
	return report, nil
}

// Entity reconciles a single entity.
func (s *RepairService) Entity(ctx context.Context, entityID string) (_ EntityRepair, err error) {
	start := time.Now()
	defer func() { s.obs.observe("repair.entity", start, err, "entity_id", entityID) }()

	rep, err := s.svc.Reconcile(ctx, entityID)
	if err != nil {
		return EntityRepair{}, fmt.Errorf("repair entity: %w", err)
	}
	return EntityRepair{EntityID: rep.EntityID, Vanished: rep.Vanished, Fixed: rep.Fixed}, nil
}
