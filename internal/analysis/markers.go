package analysis

import "strings"

// MarkerCounts buckets a turn's findings into the three marker families
// the integrity gate watches. The mapping is fixed and deterministic:
// it reports observable markers only, never inferred intent.
type MarkerCounts struct {
	TonePressure      int `json:"tone_pressure"`
	CoerciveCertainty int `json:"coercive_certainty"`
	HierarchyMarkers  int `json:"hierarchy_markers"`
}

// Total is the sum of all marker buckets.
func (m MarkerCounts) Total() int {
	return m.TonePressure + m.CoerciveCertainty + m.HierarchyMarkers
}

// CountMarkers buckets findings by type:
//   - tone pressure: force, urgency, moral leverage, identity attacks
//   - coercive certainty: certainty inflation, ultimatums
//   - hierarchy markers: hierarchy inference
//
// Drift findings are style signals and do not feed the integrity gate.
func CountMarkers(findings []Finding) MarkerCounts {
	var m MarkerCounts
	for _, f := range findings {
		switch f.Type {
		case FindingForceLanguage, FindingUrgencyCompression, FindingMoralLeverage, FindingIdentityAttractor:
			m.TonePressure++
		case FindingCertaintyInflation, FindingUltimatum:
			m.CoerciveCertainty++
		case FindingHierarchyInference:
			m.HierarchyMarkers++
		}
	}
	return m
}

// Excerpt returns a whitespace-normalized snippet of text around a
// match, for audit records. radius is measured in bytes on each side.
func Excerpt(text string, index, length, radius int) string {
	start := index - radius
	if start < 0 {
		start = 0
	}
	end := index + length + radius
	if end > len(text) {
		end = len(text)
	}
	return strings.Join(strings.Fields(text[start:end]), " ")
}
