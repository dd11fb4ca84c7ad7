package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db     DBPinger
	repair RepairChecker
}

// New creates a Service. repair can be nil when periodic repair is disabled.
func New(db DBPinger, repair RepairChecker) *Service {
	return &Service{db: db, repair: repair}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		checks["database"] = CheckOK
	}

	if s.repair != nil {
		if err := s.repair.LastError(); err != nil {
			checks["repair"] = CheckError
		} else {
			checks["repair"] = CheckOK
		}
	}

	// the store is the only hard dependency
	status := Healthy
	switch {
	case checks["database"] == CheckError:
		status = Unhealthy
	case checks["repair"] == CheckError:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
