package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics tracks reconciliation cycles and their per-container outcomes.
type ReconcileMetrics struct {
	cycles      *prometheus.CounterVec
	checked     prometheus.Counter
	resolved    prometheus.Counter
	softErrors  prometheus.Counter
	lastSuccess prometheus.Gauge
	historyFail prometheus.Counter
}

// NewReconcileMetrics registers the reconciliation metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	m := &ReconcileMetrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_cycles_total",
			Help: "Reconciliation cycles by outcome (ok, degraded, skipped).",
		}, []string{"outcome"}),
		checked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_checked_total",
			Help: "Active requests looked up in the ERP.",
		}),
		resolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_resolved_total",
			Help: "Active requests moved to history.",
		}),
		softErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_soft_errors_total",
			Help: "Per-container lookup or transition failures.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reconcile_last_success_timestamp_seconds",
			Help: "Unix time of the last cycle that was not skipped.",
		}),
		historyFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "history_write_failures_total",
			Help: "History writes that failed and left the active request in place.",
		}),
	}
	reg.MustRegister(m.cycles, m.checked, m.resolved, m.softErrors, m.lastSuccess, m.historyFail)
	return m
}

// ObserveCycle records one finished cycle.
func (m *ReconcileMetrics) ObserveCycle(outcome string, checked, resolved, softErrors int, finishedAt time.Time) {
	if m == nil || m.cycles == nil {
		return
	}
	m.cycles.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.checked.Add(float64(checked))
	m.resolved.Add(float64(resolved))
	m.softErrors.Add(float64(softErrors))
	if outcome != "skipped" {
		m.lastSuccess.Set(float64(finishedAt.Unix()))
	}
}

// IncHistoryWriteFailure counts a history write that blocked a deletion.
func (m *ReconcileMetrics) IncHistoryWriteFailure() {
	if m == nil || m.historyFail == nil {
		return
	}
	m.historyFail.Inc()
}
