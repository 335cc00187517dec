package resonance

import "arbiter/internal/tensor"

// Promotion thresholds. A peer tensor joins the spine only when it is
// salient, coherent, and low-drift all at once; no partial credit.
const (
	PromoteSalienceMin         = 0.7
	DefaultPromoteCoherenceMin = 0.8
	PromoteDriftMax            = 0.3
)

// PromotionGate decides whether a peer tensor qualifies to become a new
// spine tensor. Promotion is evaluated once per turn on the current
// peer tensor, independent of resonance status and pause decisions.
type PromotionGate struct {
	// CoherenceMin is configurable; observed deployments disagreed
	// between 0.7 and 0.8, and the stricter bound is the default.
	CoherenceMin float64
}

// NewPromotionGate returns a gate with the default coherence bound.
func NewPromotionGate() PromotionGate {
	return PromotionGate{CoherenceMin: DefaultPromoteCoherenceMin}
}

// Eligible is the pure promotion predicate.
func (g PromotionGate) Eligible(t *tensor.Tensor) bool {
	min := g.CoherenceMin
	if min == 0 {
		min = DefaultPromoteCoherenceMin
	}
	return t.Axes.SalienceWeight > PromoteSalienceMin &&
		t.Axes.CoherenceScore > min &&
		t.Axes.DriftRisk < PromoteDriftMax
}
