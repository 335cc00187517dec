// Package kernel sequences one turn through the full pipeline:
// analyze, build the peer tensor, run the integrity gate, measure
// resonance against the spine, decide promotion and shelving, and
// render the audited suggestion block.
package kernel

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"arbiter/internal/analysis"
	"arbiter/internal/integrity"
	"arbiter/internal/metrics"
	"arbiter/internal/resonance"
	"arbiter/internal/session"
	"arbiter/internal/store"
	"arbiter/internal/suggest"
	"arbiter/internal/tensor"
)

// Storage is the persistence collaborator. *store.Store satisfies it;
// tests may substitute lighter fakes.
type Storage interface {
	EnsureSession(id, orgID, userID string) (*session.Session, error)
	GetSession(id string) (*session.Session, error)
	SetSessionStatus(id string, to session.Status) error
	SetIntegrityResonance(id string, value float64) error
	SaveTensor(sessionID string, t *tensor.Tensor) error
	RecentSpine(sessionID string, limit int) ([]*tensor.Tensor, error)
	Shelve(sessionID string, t *tensor.Tensor, reason string) (string, error)
	Integrate(shelfID, note string) (bool, error)
	ResetSession(sessionID string) (int64, error)
}

// AuditSink receives trail events. Fire-and-forget: write failures are
// logged and never alter a turn result.
type AuditSink interface {
	WriteAudit(ev store.AuditEvent) error
}

// Options tune the pipeline thresholds. Zero values fall back to the
// documented defaults.
type Options struct {
	Mode                analysis.Mode
	SpineLimit          int
	PauseThreshold      float64
	ShelveThreshold     float64
	PromoteCoherenceMin float64
}

// TurnResult is the externally visible outcome of one processed turn.
type TurnResult struct {
	SessionID          string             `json:"session_id"`
	TurnID             string             `json:"turn_id"`
	TensorID           string             `json:"tensor_id"`
	Status             resonance.Status   `json:"status"`
	Delta              float64            `json:"delta"`
	IDS                suggest.IDS        `json:"ids"`
	Findings           []analysis.Finding `json:"findings"`
	Flagged            bool               `json:"flagged"`
	Score              analysis.Score     `json:"score"`
	IntegrityResonance float64            `json:"integrity_resonance"`
	ViolatedRoots      []integrity.Root   `json:"violated_roots,omitempty"`
	Promoted           bool               `json:"promoted"`
	SpineTensorID      string             `json:"spine_tensor_id,omitempty"`
	ShelfID            string             `json:"shelf_id,omitempty"`
	PauseTriggered     bool               `json:"pause_triggered"`
	GateSkipped        string             `json:"gate_skipped,omitempty"`
}

// Orchestrator wires the pipeline components together.
type Orchestrator struct {
	store     Storage
	audit     AuditSink
	engine    *resonance.Engine
	gate      resonance.PromotionGate
	witness   *Witness
	metrics   *metrics.Metrics
	logger    *zap.Logger
	rules     atomic.Pointer[analysis.Ruleset]
	suggester atomic.Pointer[suggest.Engine]

	mode            analysis.Mode
	pauseThreshold  float64
	shelveThreshold float64

	// One in-flight turn per session; cross-session turns run freely.
	sessionLocks sync.Map
}

// New builds an orchestrator over a storage backend. audit may be nil
// to disable the trail; witness and m may be nil.
func New(st Storage, audit AuditSink, witness *Witness, m *metrics.Metrics, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if witness == nil {
		witness = NewWitness()
	}
	mode := opts.Mode
	if mode == "" {
		mode = analysis.ModeTolerant
	}
	pauseThreshold := opts.PauseThreshold
	if pauseThreshold <= 0 {
		pauseThreshold = integrity.DefaultPauseThreshold
	}
	shelveThreshold := opts.ShelveThreshold
	if shelveThreshold <= 0 {
		shelveThreshold = resonance.ThresholdCritical
	}
	gate := resonance.NewPromotionGate()
	if opts.PromoteCoherenceMin > 0 {
		gate.CoherenceMin = opts.PromoteCoherenceMin
	}

	o := &Orchestrator{
		store:           st,
		audit:           audit,
		engine:          resonance.NewEngine(st, opts.SpineLimit, logger),
		gate:            gate,
		witness:         witness,
		metrics:         m,
		logger:          logger,
		mode:            mode,
		pauseThreshold:  pauseThreshold,
		shelveThreshold: shelveThreshold,
	}
	o.SetRuleset(analysis.DefaultRuleset())
	return o
}

// SetRuleset swaps the active pattern ruleset. Safe to call while
// turns are in flight; used by the overlay watcher.
func (o *Orchestrator) SetRuleset(rs *analysis.Ruleset) {
	o.rules.Store(rs)
	o.suggester.Store(suggest.NewEngine(rs))
}

// Ruleset returns the active pattern ruleset.
func (o *Orchestrator) Ruleset() *analysis.Ruleset {
	return o.rules.Load()
}

// Witness exposes the turn event stream for observers.
func (o *Orchestrator) Witness() *Witness {
	return o.witness
}

// Mode returns the configured strictness mode.
func (o *Orchestrator) Mode() analysis.Mode {
	return o.mode
}

// ProcessTurn runs one turn of text through the full pipeline. Empty
// input is a valid no-op turn that yields zero findings. A store
// failure on the tensor path fails the turn; integrity bookkeeping
// failures degrade to a gate-skipped annotation so analysis always
// completes.
func (o *Orchestrator) ProcessTurn(sessionID, text string) (*TurnResult, error) {
	start := time.Now()
	lock := o.lockSession(sessionID)
	lock.Lock()
	defer lock.Unlock()

	turnID := uuid.NewString()
	res := o.Ruleset().Analyze(text, o.mode)

	pt := tensor.NewPeer(text, res.Findings, tensor.Meta{
		Channel:  tensor.ChannelUser,
		ThreadID: sessionID,
		TurnID:   turnID,
	})

	result := &TurnResult{
		SessionID: sessionID,
		TurnID:    turnID,
		TensorID:  pt.ID,
		Findings:  res.Findings,
		Flagged:   res.Flagged,
		Score:     res.Score,
	}

	sess, err := o.store.EnsureSession(sessionID, "", "")
	if err != nil {
		result.GateSkipped = fmt.Sprintf("integrity gate skipped: %v", err)
		o.logger.Warn("session unavailable, integrity gate skipped",
			zap.String("session", sessionID), zap.Error(err))
	}

	if err := o.store.SaveTensor(sessionID, pt); err != nil {
		return nil, fmt.Errorf("failed to persist peer tensor: %w", err)
	}

	if sess != nil {
		o.applyIntegrityGate(sess, res, result)
	}

	snap, err := o.engine.Snapshot(sessionID, pt)
	if err != nil {
		return nil, err
	}
	result.Delta = snap.EquilibriumDelta
	result.Status = snap.Status

	if snap.EquilibriumDelta > o.shelveThreshold {
		o.shelveFracture(sessionID, pt, snap, result)
		snap.Status = resonance.StatusFractured
		result.Status = resonance.StatusFractured
	}

	// Promotion is independent of resonance status and pause state.
	if o.gate.Eligible(pt) {
		st := pt.Promote()
		if err := o.store.SaveTensor(sessionID, st); err != nil {
			return nil, fmt.Errorf("failed to persist spine tensor: %w", err)
		}
		result.Promoted = true
		result.SpineTensorID = st.ID
		if o.metrics != nil {
			o.metrics.PromotionsTotal.Inc()
		}
		o.writeAudit(store.AuditEvent{
			SessionID: sessionID,
			EventType: store.AuditPromotion,
			TensorID:  st.ID,
			Summary:   "peer tensor promoted to spine",
		})
	}

	result.IDS = o.suggester.Load().Generate(pt, snap)

	details := map[string]any{
		"score":   res.Score.Total,
		"flagged": res.Flagged,
		"mode":    string(res.Mode),
	}
	if top := topFinding(res.Findings); top != nil {
		details["excerpt"] = analysis.Excerpt(text, top.Index, len(top.Evidence), 70)
	}
	o.writeAudit(store.AuditEvent{
		SessionID:   sessionID,
		EventType:   store.AuditTurnProcessed,
		TensorID:    pt.ID,
		Fingerprint: topFingerprint(res.Findings),
		Summary: fmt.Sprintf("turn processed: status=%s delta=%.3f findings=%d",
			result.Status, result.Delta, len(res.Findings)),
		Details: details,
	})

	if o.metrics != nil {
		o.metrics.TurnsTotal.Inc()
		for _, f := range res.Findings {
			o.metrics.FindingsTotal.WithLabelValues(string(f.Type)).Inc()
		}
		o.metrics.TurnDuration.Observe(time.Since(start).Seconds())
	}

	o.witness.Publish(TurnEvent{
		SessionID:          sessionID,
		TensorID:           pt.ID,
		Status:             string(result.Status),
		Delta:              result.Delta,
		Findings:           len(res.Findings),
		IntegrityResonance: result.IntegrityResonance,
		PauseTriggered:     result.PauseTriggered,
		ShelfID:            result.ShelfID,
		At:                 time.Now().UTC(),
	})

	return result, nil
}

// applyIntegrityGate recomputes the session's integrity resonance from
// the current turn and pauses the session on any violation. Failures
// here degrade to a gate-skipped annotation.
func (o *Orchestrator) applyIntegrityGate(sess *session.Session, res analysis.Result, result *TurnResult) {
	markers := analysis.CountMarkers(res.Findings)
	ig := integrity.Evaluate(markers, res.Flagged)
	result.IntegrityResonance = ig.Resonance
	result.ViolatedRoots = ig.Violated

	if err := o.store.SetIntegrityResonance(sess.ID, ig.Resonance); err != nil {
		result.GateSkipped = fmt.Sprintf("integrity gate skipped: %v", err)
		o.logger.Warn("failed to persist integrity resonance",
			zap.String("session", sess.ID), zap.Error(err))
		return
	}

	if !ig.ShouldPause(o.pauseThreshold) || sess.Status != session.StatusActive {
		return
	}

	if err := o.store.SetSessionStatus(sess.ID, session.StatusPaused); err != nil {
		result.GateSkipped = fmt.Sprintf("pause transition skipped: %v", err)
		o.logger.Warn("failed to pause session",
			zap.String("session", sess.ID), zap.Error(err))
		return
	}
	sess.Status = session.StatusPaused
	result.PauseTriggered = true
	if o.metrics != nil {
		o.metrics.PausesTotal.Inc()
	}

	violated := make([]string, len(ig.Violated))
	for i, r := range ig.Violated {
		violated[i] = string(r)
	}
	o.writeAudit(store.AuditEvent{
		SessionID:   sess.ID,
		EventType:   store.AuditArbiterIntervention,
		TensorID:    result.TensorID,
		Fingerprint: topFingerprint(res.Findings),
		Summary: fmt.Sprintf("session paused: %d marker(s) (tone=%d, certainty=%d, hierarchy=%d)",
			markers.Total(), markers.TonePressure, markers.CoerciveCertainty, markers.HierarchyMarkers),
		Details: map[string]any{
			"violated_roots": violated,
			"threshold":      o.pauseThreshold,
		},
	})
}

// shelveFracture archives the tensor out of the live path and pauses
// the session. Shelving itself never touches session status; the pause
// is this orchestrator's decision.
func (o *Orchestrator) shelveFracture(sessionID string, pt *tensor.Tensor, snap resonance.Snapshot, result *TurnResult) {
	reason := fmt.Sprintf("equilibrium delta %.3f exceeds %.2f", snap.EquilibriumDelta, o.shelveThreshold)
	shelfID, err := o.store.Shelve(sessionID, pt, reason)
	if err != nil {
		o.logger.Warn("failed to shelve fractured tensor",
			zap.String("session", sessionID), zap.Error(err))
		return
	}
	result.ShelfID = shelfID
	if o.metrics != nil {
		o.metrics.ShelvingsTotal.Inc()
	}

	if sess, err := o.store.GetSession(sessionID); err == nil && sess.Status == session.StatusActive {
		if err := o.store.SetSessionStatus(sessionID, session.StatusPaused); err != nil {
			o.logger.Warn("failed to pause session after shelving",
				zap.String("session", sessionID), zap.Error(err))
		} else {
			result.PauseTriggered = true
			if o.metrics != nil {
				o.metrics.PausesTotal.Inc()
			}
		}
	}

	o.writeAudit(store.AuditEvent{
		SessionID: sessionID,
		EventType: store.AuditShelved,
		TensorID:  pt.ID,
		Summary:   reason,
		Details:   map[string]any{"shelf_id": shelfID},
	})
}

// Recover integrates a shelf entry with an explicit justification and,
// on success, returns the session to active. ok=false means the entry
// was not currently SHELVED; nothing was mutated.
func (o *Orchestrator) Recover(sessionID, shelfID, note string) (bool, error) {
	ok, err := o.store.Integrate(shelfID, note)
	if err != nil || !ok {
		return ok, err
	}

	sess, err := o.store.GetSession(sessionID)
	if err != nil {
		return true, err
	}
	if sess.Status == session.StatusPaused {
		if err := o.store.SetSessionStatus(sessionID, session.StatusActive); err != nil {
			return true, err
		}
	}

	o.writeAudit(store.AuditEvent{
		SessionID: sessionID,
		EventType: store.AuditRecovery,
		Summary:   fmt.Sprintf("shelf %s integrated", shelfID),
		Details:   map[string]any{"note": note},
	})
	return true, nil
}

// Resume returns a paused session to active via an explicit recovery
// action. The justification is recorded in the audit trail.
func (o *Orchestrator) Resume(sessionID, note string) error {
	if note == "" {
		return fmt.Errorf("resume requires a justification note")
	}
	if err := o.store.SetSessionStatus(sessionID, session.StatusActive); err != nil {
		return err
	}
	o.writeAudit(store.AuditEvent{
		SessionID: sessionID,
		EventType: store.AuditRecovery,
		Summary:   "session resumed",
		Details:   map[string]any{"note": note},
	})
	return nil
}

// Reset purges the session's un-pinned peer tensors, preserving the
// spine.
func (o *Orchestrator) Reset(sessionID string) (int64, error) {
	purged, err := o.store.ResetSession(sessionID)
	if err != nil {
		return 0, err
	}
	o.writeAudit(store.AuditEvent{
		SessionID: sessionID,
		EventType: store.AuditSessionReset,
		Summary:   fmt.Sprintf("%d peer tensor(s) purged", purged),
	})
	return purged, nil
}

// CloseSession moves a session to its terminal state.
func (o *Orchestrator) CloseSession(sessionID string) error {
	return o.store.SetSessionStatus(sessionID, session.StatusClosed)
}

func (o *Orchestrator) lockSession(sessionID string) *sync.Mutex {
	v, _ := o.sessionLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (o *Orchestrator) writeAudit(ev store.AuditEvent) {
	if o.audit == nil {
		return
	}
	if err := o.audit.WriteAudit(ev); err != nil {
		o.logger.Warn("audit write failed", zap.Error(err))
	}
}

// topFinding returns the most severe finding, earliest wins a tie.
func topFinding(findings []analysis.Finding) *analysis.Finding {
	best := -1
	var top *analysis.Finding
	for i := range findings {
		if findings[i].Severity > best {
			best = findings[i].Severity
			top = &findings[i]
		}
	}
	return top
}

// topFingerprint derives the catalog fingerprint from the most severe
// finding, so recurring friction phrases can be counted across turns.
func topFingerprint(findings []analysis.Finding) string {
	top := topFinding(findings)
	if top == nil {
		return ""
	}
	return store.Fingerprint(top.Evidence)
}
