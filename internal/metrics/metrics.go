// Package metrics exposes Prometheus instrumentation for the turn
// pipeline. Metrics are observational only; nothing in the decision
// logic reads them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's instruments.
type Metrics struct {
	TurnsTotal      prometheus.Counter
	FindingsTotal   *prometheus.CounterVec
	PausesTotal     prometheus.Counter
	ShelvingsTotal  prometheus.Counter
	PromotionsTotal prometheus.Counter
	TurnDuration    prometheus.Histogram
}

// New registers the pipeline metrics on reg. Pass a fresh registry in
// tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TurnsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_turns_total",
			Help: "Turns processed end to end.",
		}),
		FindingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_findings_total",
			Help: "Pattern findings by type.",
		}, []string{"type"}),
		PausesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_session_pauses_total",
			Help: "Sessions paused by the integrity gate or shelving.",
		}),
		ShelvingsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_shelvings_total",
			Help: "Tensors shelved on severe fracture.",
		}),
		PromotionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_spine_promotions_total",
			Help: "Peer tensors promoted to the spine.",
		}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbiter_turn_duration_seconds",
			Help:    "End-to-end turn processing time.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
