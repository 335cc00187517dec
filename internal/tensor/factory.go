package tensor

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"arbiter/internal/analysis"
)

// AxisMapping is one row of the finding-to-axis translation table.
type AxisMapping struct {
	Axiom          string
	Risk           float64
	CoherenceDelta float64
}

// findingAxes maps finding types to their axiomatic contribution.
// Types without a row degrade to the conservative default below.
var findingAxes = map[analysis.FindingType]AxisMapping{
	analysis.FindingForceLanguage:      {Axiom: TagForce, Risk: 0.3, CoherenceDelta: -0.1},
	analysis.FindingUltimatum:          {Axiom: TagExtremes, Risk: 0.4, CoherenceDelta: -0.2},
	analysis.FindingCertaintyInflation: {Axiom: TagExtremes, Risk: 0.2, CoherenceDelta: -0.1},
	analysis.FindingHierarchyInference: {Axiom: TagForce, Risk: 0.3, CoherenceDelta: -0.2},
	analysis.FindingDirectiveDrift:     {Axiom: TagForce, Risk: 0.2, CoherenceDelta: -0.1},
}

// defaultMapping is the fallback for unknown finding types: low risk,
// a non-canon tag that the allowlist drops. Never an error.
var defaultMapping = AxisMapping{Axiom: "UNCERTAIN", Risk: 0.1, CoherenceDelta: 0}

// MappingFor returns the axis contribution for a finding type.
func MappingFor(t analysis.FindingType) AxisMapping {
	if m, ok := findingAxes[t]; ok {
		return m
	}
	return defaultMapping
}

// Meta carries source metadata for a new peer tensor.
type Meta struct {
	Channel  Channel
	ThreadID string
	TurnID   string
}

const (
	baselineCoherence = 0.5
	peerTTLSeconds    = 3600
	peerDecayRate     = 0.1

	// Salience is a deliberate step function: any finding at all marks
	// the turn as structurally interesting, no findings marks it quiet.
	// Coarse on purpose, so one weak signal cannot fake confidence.
	salienceWithFindings = 0.8
	salienceQuiet        = 0.2
)

// NewPeer builds a peer tensor from raw text and its findings. Pure
// construction: deterministic axes and tags for the same inputs, no
// persistence side effects. Axes are clamped into [0,1] and axiom tags
// are filtered through the canon allowlist.
func NewPeer(text string, findings []analysis.Finding, meta Meta) *Tensor {
	risk := 0.0
	coherence := baselineCoherence
	tags := make([]string, 0, len(findings))

	for _, f := range findings {
		m := MappingFor(f.Type)
		risk += m.Risk
		coherence += m.CoherenceDelta
		tags = append(tags, m.Axiom)
	}

	salience := salienceQuiet
	if len(findings) > 0 {
		salience = salienceWithFindings
	}

	channel := meta.Channel
	if channel == "" {
		channel = ChannelSystem
	}

	return &Tensor{
		ID:        uuid.NewString(),
		Type:      TypePeer,
		Version:   Version,
		CreatedAt: time.Now().UTC(),
		Source: Source{
			Channel:  channel,
			ThreadID: meta.ThreadID,
			TurnID:   meta.TurnID,
		},
		Payload: Payload{
			Text: text,
			Hash: ContentHash(text),
		},
		Axes: Axes{
			DriftRisk:         Clamp01(risk),
			CoherenceScore:    Clamp01(coherence),
			SalienceWeight:    salience,
			TemporalProximity: 1.0,
			ContextScope:      ScopeMoment,
		},
		Labels: Labels{
			AxiomTags:       FilterCanon(tags),
			OriginIntegrity: OriginObserved,
			Confidence:      0.95,
		},
		Lifecycle: Lifecycle{
			TTLSeconds: peerTTLSeconds,
			DecayRate:  peerDecayRate,
			Pinned:     false,
		},
	}
}

// ContentHash returns the first 16 hex characters of the sha256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}
