// Package tensor defines the unit of observed state: a peer tensor (PT)
// built once per turn, and spine tensors (ST) promoted from peer
// tensors into the durable belief state of a session.
package tensor

import (
	"time"

	"github.com/google/uuid"
)

// Version stamps the tensor schema carried in persisted payloads.
const Version = "1.0.0"

// Type distinguishes per-turn observations from durable spine beliefs.
type Type string

const (
	TypePeer  Type = "PEER"
	TypeSpine Type = "SPINE"
)

// Channel identifies where the observed text came from.
type Channel string

const (
	ChannelUser      Channel = "user"
	ChannelAssistant Channel = "assistant"
	ChannelSystem    Channel = "system"
	ChannelTool      Channel = "tool"
	ChannelExternal  Channel = "external"
)

// ContextScope bounds how widely the observation applies.
type ContextScope string

const (
	ScopeMoment       ContextScope = "moment"
	ScopeTask         ContextScope = "task"
	ScopeConversation ContextScope = "conversation"
	ScopeProject      ContextScope = "project"
)

// OriginIntegrity records how the observation was obtained.
type OriginIntegrity string

const (
	OriginObserved  OriginIntegrity = "observed"
	OriginDerived   OriginIntegrity = "derived"
	OriginCorrected OriginIntegrity = "corrected"
	OriginUncertain OriginIntegrity = "uncertain"
)

// Source carries channel and correlation identifiers.
type Source struct {
	Channel  Channel `json:"channel"`
	ThreadID string  `json:"thread_id,omitempty"`
	TurnID   string  `json:"turn_id,omitempty"`
}

// Payload is the original text plus a short content hash.
type Payload struct {
	Text string `json:"text"`
	Hash string `json:"hash"`
}

// Axes holds the bounded scoring axes. All float axes live in [0,1].
type Axes struct {
	DriftRisk         float64      `json:"drift_risk"`
	CoherenceScore    float64      `json:"coherence_score"`
	SalienceWeight    float64      `json:"salience_weight"`
	TemporalProximity float64      `json:"temporal_proximity"`
	ContextScope      ContextScope `json:"context_scope"`
}

// Labels holds canon-controlled tags and provenance.
type Labels struct {
	AxiomTags       []string        `json:"axiom_tags"`
	OriginIntegrity OriginIntegrity `json:"origin_integrity"`
	Confidence      float64         `json:"confidence"`
}

// Lifecycle controls retention. Spine tensors never expire.
type Lifecycle struct {
	TTLSeconds int     `json:"ttl_seconds"`
	DecayRate  float64 `json:"decay_rate"`
	Pinned     bool    `json:"pinned"`
}

// Tensor is one observed state. Peer tensors are immutable after
// construction except for the pinned flag; promotion copies, never
// mutates.
type Tensor struct {
	ID        string    `json:"tensor_id"`
	Type      Type      `json:"tensor_type"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Source    Source    `json:"source"`
	Payload   Payload   `json:"payload"`
	Axes      Axes      `json:"axes"`
	Labels    Labels    `json:"labels"`
	Lifecycle Lifecycle `json:"lifecycle"`
}

// Promote returns a new spine tensor copied from t. The spine copy gets
// its own identity and permanent lifecycle; t is left untouched.
func (t *Tensor) Promote() *Tensor {
	st := *t
	st.ID = uuid.NewString()
	st.Type = TypeSpine
	st.CreatedAt = time.Now().UTC()
	st.Labels.AxiomTags = append([]string(nil), t.Labels.AxiomTags...)
	st.Lifecycle = Lifecycle{TTLSeconds: 0, DecayRate: 0, Pinned: false}
	return &st
}

// Clamp01 caps v into [0,1]. Risk accumulators saturate at 1; they are
// never wrapped or left unbounded.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
