// Package resonance measures how far the current turn sits from the
// session's recent spine, and decides whether a peer tensor earns a
// place on that spine.
package resonance

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"arbiter/internal/tensor"
)

// Status classifies the equilibrium delta.
type Status string

const (
	StatusAligned    Status = "aligned"
	StatusMisaligned Status = "misaligned"
	StatusCritical   Status = "critical"
	// StatusFractured is the critical band after the turn has been
	// shelved out of the live path; the orchestrator applies it.
	StatusFractured Status = "fractured"
)

// Delta thresholds. A measurement utility, not a truth engine: the
// formula is deliberately simple and auditable.
const (
	ThresholdMisaligned = 0.4
	ThresholdCritical   = 0.7

	// DefaultSpineLimit is how many recent spine tensors feed the
	// spine coherence average.
	DefaultSpineLimit = 5

	// neutralSpineCoherence stands in when a session has no spine yet.
	neutralSpineCoherence = 0.8
)

// Drivers are the three inputs behind an equilibrium delta.
type Drivers struct {
	DriftRisk        float64 `json:"drift_risk"`
	SpineCoherence   float64 `json:"spine_coherence"`
	CurrentCoherence float64 `json:"current_coherence"`
}

// Snapshot is the derived result of one resonance measurement. It is
// never persisted standalone.
type Snapshot struct {
	EquilibriumDelta   float64  `json:"equilibrium_delta"`
	Status             Status   `json:"resonance_status"`
	Drivers            Drivers  `json:"drivers"`
	SuggestedAxiomTags []string `json:"suggested_axiom_tags"`
	BaselineUsed       bool     `json:"baseline_used"`
}

// SpineSource fetches recent spine tensors, newest first.
type SpineSource interface {
	RecentSpine(sessionID string, limit int) ([]*tensor.Tensor, error)
}

// Engine computes resonance snapshots against a spine source.
type Engine struct {
	spine  SpineSource
	limit  int
	logger *zap.Logger
}

// NewEngine builds an engine over the given spine source. A limit of
// zero or less falls back to DefaultSpineLimit.
func NewEngine(spine SpineSource, limit int, logger *zap.Logger) *Engine {
	if limit <= 0 {
		limit = DefaultSpineLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{spine: spine, limit: limit, logger: logger}
}

// Snapshot measures the current peer tensor against the session's
// recent spine:
//
//	delta = clamp(|current_coherence - spine_coherence| + drift_risk, 0, 1)
//
// Absolute coherence deviation plus additive drift, exactly. With no
// spine history the neutral baseline 0.8 is used and flagged as such.
// Suggested tags are only those already on the tensor; nothing new is
// invented here.
func (e *Engine) Snapshot(sessionID string, current *tensor.Tensor) (Snapshot, error) {
	spine, err := e.spine.RecentSpine(sessionID, e.limit)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to fetch recent spine: %w", err)
	}

	drift := tensor.Clamp01(current.Axes.DriftRisk)
	currentCoherence := tensor.Clamp01(current.Axes.CoherenceScore)

	spineCoherence := neutralSpineCoherence
	baselineUsed := true
	if len(spine) > 0 {
		sum := 0.0
		for _, st := range spine {
			sum += tensor.Clamp01(st.Axes.CoherenceScore)
		}
		spineCoherence = tensor.Clamp01(sum / float64(len(spine)))
		baselineUsed = false
	}

	delta := tensor.Clamp01(math.Abs(currentCoherence-spineCoherence) + drift)

	status := StatusAligned
	if delta > ThresholdCritical {
		status = StatusCritical
	} else if delta > ThresholdMisaligned {
		status = StatusMisaligned
	}

	e.logger.Debug("resonance snapshot",
		zap.String("session", sessionID),
		zap.Float64("delta", delta),
		zap.String("status", string(status)),
		zap.Bool("baseline_used", baselineUsed))

	return Snapshot{
		EquilibriumDelta: delta,
		Status:           status,
		Drivers: Drivers{
			DriftRisk:        drift,
			SpineCoherence:   spineCoherence,
			CurrentCoherence: currentCoherence,
		},
		SuggestedAxiomTags: append([]string(nil), current.Labels.AxiomTags...),
		BaselineUsed:       baselineUsed,
	}, nil
}
