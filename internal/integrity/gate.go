// Package integrity implements the multiplicative session gate over
// root stability flags. The gate is maximally sensitive by design:
// any violated root, or any flagged analysis, forces the resonance
// value to exactly zero rather than a graded penalty.
package integrity

import "arbiter/internal/analysis"

// Root names one stability flag of a session.
type Root string

const (
	RootHonesty       Root = "root.honesty"
	RootRespect       Root = "root.respect"
	RootAttention     Root = "root.attention"
	RootAffection     Root = "root.affection"
	RootLoyalty       Root = "root.loyalty"
	RootTrust         Root = "root.trust"
	RootCommunication Root = "root.communication"
)

// roots in canonical order, for deterministic reporting.
var roots = []Root{
	RootHonesty,
	RootRespect,
	RootAttention,
	RootAffection,
	RootLoyalty,
	RootTrust,
	RootCommunication,
}

// DefaultPauseThreshold pauses a session on effectively any violation.
const DefaultPauseThreshold = 0.999

// Result is one gate evaluation. Resonance is recomputed from the
// current turn alone: a point-in-time gate value, not a decaying
// average.
type Result struct {
	Resonance float64      `json:"integrity_resonance"`
	Roots     map[Root]int `json:"roots"`
	Violated  []Root       `json:"violated"`
}

// Evaluate maps marker buckets to binary root flags and multiplies
// them together with the flagged bit. The mapping is a fixed table of
// observable-marker proxies, never inferred intent:
//
//	tone pressure     -> root.affection unstable
//	coercive certainty-> root.trust unstable
//	hierarchy markers -> root.respect unstable
//
// 1 means stable, 0 means an issue was observed.
func Evaluate(markers analysis.MarkerCounts, flagged bool) Result {
	flags := map[Root]int{
		RootHonesty:       1,
		RootRespect:       boolFlag(markers.HierarchyMarkers == 0),
		RootAttention:     1,
		RootAffection:     boolFlag(markers.TonePressure == 0),
		RootLoyalty:       1,
		RootTrust:         boolFlag(markers.CoerciveCertainty == 0),
		RootCommunication: 1,
	}

	product := 1.0
	violated := []Root{}
	for _, r := range roots {
		product *= float64(flags[r])
		if flags[r] == 0 {
			violated = append(violated, r)
		}
	}

	if flagged {
		product = 0
	}

	return Result{Resonance: product, Roots: flags, Violated: violated}
}

// ShouldPause reports whether a gate result demands a session pause.
func (r Result) ShouldPause(threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultPauseThreshold
	}
	return r.Resonance < threshold
}

func boolFlag(stable bool) int {
	if stable {
		return 1
	}
	return 0
}
