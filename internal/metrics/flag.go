package metrics

import "github.com/prometheus/client_golang/prometheus"

// Flag index Prometheus metrics.
var (
	FlagOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagdex",
			Name:      "flag_operations_total",
			Help:      "Total number of flag operations",
		},
		[]string{"op", "result"}, // result: "changed" / "noop" / "error"
	)

	FlagOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flagdex",
			Name:      "flag_operation_duration_seconds",
			Help:      "Flag operation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"op"},
	)

	IndexRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagdex",
			Name:      "index_repairs_total",
			Help:      "Index entries fixed by reconciliation",
		},
		[]string{"index", "action"}, // index: "global" / "scoped"; action: "add" / "remove"
	)

	NotifyPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagdex",
			Name:      "notify_publish_total",
			Help:      "Change event publishes per room",
		},
		[]string{"result"}, // "ok" / "error"
	)

	NotifyHookFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flagdex",
			Name:      "notify_hook_failures_total",
			Help:      "Post-commit hooks that panicked",
		},
	)

	RepairRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagdex",
			Name:      "repair_runs_total",
			Help:      "Full reconciliation sweeps",
		},
		[]string{"result"}, // "ok" / "error" / "canceled"
	)

	RepairLastRunEntities = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "flagdex",
			Name:      "repair_last_run_entities",
			Help:      "Entity counts of the last reconciliation sweep",
		},
		[]string{"kind"}, // "scanned" / "fixed" / "failed" / "stale"
	)
)

var flagMetricsRegistered bool

// RegisterFlagMetrics registers Prometheus flag index metrics. Must be called once from main.
func RegisterFlagMetrics() {
	if flagMetricsRegistered {
		return
	}
	prometheus.MustRegister(FlagOperationsTotal)
	prometheus.MustRegister(FlagOperationDuration)
	prometheus.MustRegister(IndexRepairsTotal)
	prometheus.MustRegister(NotifyPublishTotal)
	prometheus.MustRegister(NotifyHookFailuresTotal)
	prometheus.MustRegister(RepairRunsTotal)
	prometheus.MustRegister(RepairLastRunEntities)
	flagMetricsRegistered = true
}
