// Package metrics exposes Prometheus instrumentation for evolution sessions.
//
// A nil *SessionMetrics is valid and records nothing, so sessions built
// without a registry pay no instrumentation cost.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultNamespace = "polyevolve"

const sessionSubsystem = "session"

type SessionMetrics struct {
	// MutationsTotal counts mutation attempts. Labels: kind.
	MutationsTotal *prometheus.CounterVec

	// ImprovementsTotal counts accepted improvements. Labels: kind.
	ImprovementsTotal *prometheus.CounterVec

	// BestDivergence is the divergence of the current best match.
	BestDivergence prometheus.Gauge

	// StatsDiscardedTotal counts snapshot statistics entries dropped on load
	// because their mutation kind is unknown.
	StatsDiscardedTotal prometheus.Counter

	// SnapshotBytes observes the size of written snapshots.
	SnapshotBytes prometheus.Histogram
}

// NewSessionMetrics creates the session metrics and registers them on reg.
// An empty namespace falls back to DefaultNamespace.
func NewSessionMetrics(reg prometheus.Registerer, namespace string) (*SessionMetrics, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	m := &SessionMetrics{
		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: sessionSubsystem,
			Name:      "mutations_total",
			Help:      "Mutation attempts by kind",
		}, []string{"kind"}),
		ImprovementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: sessionSubsystem,
			Name:      "improvements_total",
			Help:      "Accepted best-match improvements by kind",
		}, []string{"kind"}),
		BestDivergence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: sessionSubsystem,
			Name:      "best_divergence",
			Help:      "Divergence of the current best match",
		}),
		StatsDiscardedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: sessionSubsystem,
			Name:      "stats_discarded_total",
			Help:      "Snapshot statistics entries discarded on load because the mutation kind is unknown",
		}),
		SnapshotBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: sessionSubsystem,
			Name:      "snapshot_bytes",
			Help:      "Size of written session snapshots",
			Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 8),
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.MutationsTotal,
			m.ImprovementsTotal,
			m.BestDivergence,
			m.StatsDiscardedTotal,
			m.SnapshotBytes,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *SessionMetrics) RecordMutation(kind string) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(kind).Inc()
}

func (m *SessionMetrics) RecordImprovement(kind string, divergence float64) {
	if m == nil {
		return
	}
	m.ImprovementsTotal.WithLabelValues(kind).Inc()
	m.BestDivergence.Set(divergence)
}

func (m *SessionMetrics) SetBestDivergence(divergence float64) {
	if m == nil {
		return
	}
	m.BestDivergence.Set(divergence)
}

func (m *SessionMetrics) RecordDiscardedStat() {
	if m == nil {
		return
	}
	m.StatsDiscardedTotal.Inc()
}

func (m *SessionMetrics) RecordSnapshot(bytes int64) {
	if m == nil {
		return
	}
	m.SnapshotBytes.Observe(float64(bytes))
}
