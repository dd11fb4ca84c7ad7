package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// RepairChecker reports the outcome of the latest repair sweep.
type RepairChecker interface {
	LastError() error
}
