// Package suggest renders the identify/define/suggest response block
// from a resonance snapshot, then audits its own output: the generated
// text is re-run through the pattern analyzer and reframed if the
// system's own phrasing would have been flagged.
package suggest

import (
	"fmt"
	"strings"

	"arbiter/internal/analysis"
	"arbiter/internal/resonance"
	"arbiter/internal/tensor"
)

// IDS is one identify/define/suggest response block.
type IDS struct {
	Identify string   `json:"identify"`
	Define   string   `json:"define"`
	Suggest  []string `json:"suggest"`
}

// SelfCorrectionNote is appended exactly once when the self-audit loop
// replaced the generated suggestions.
const SelfCorrectionNote = "Note: self-correction applied; suggested phrasing was reframed to reduce friction."

// disqualifying are the finding types the system refuses in its own
// generated text.
var disqualifying = map[analysis.FindingType]bool{
	analysis.FindingForceLanguage:      true,
	analysis.FindingHierarchyInference: true,
}

// Engine generates audited IDS blocks. It shares the analyzer ruleset
// with the rest of the pipeline so the self-check sees exactly what a
// peer would be scored against.
type Engine struct {
	rules *analysis.Ruleset
}

// NewEngine builds an engine over the given ruleset; nil falls back to
// the default ruleset.
func NewEngine(rules *analysis.Ruleset) *Engine {
	if rules == nil {
		rules = analysis.DefaultRuleset()
	}
	return &Engine{rules: rules}
}

// Generate renders the IDS block for a snapshot and runs the self-audit
// loop on it exactly once. No recursive re-audit of reframed text; the
// reframer's output is constructed to be clean by construction.
func (e *Engine) Generate(current *tensor.Tensor, snap resonance.Snapshot) IDS {
	ids := e.draft(current, snap)
	return e.selfAudit(ids)
}

// draft renders the raw template output before self-audit.
func (e *Engine) draft(current *tensor.Tensor, snap resonance.Snapshot) IDS {
	tags := snap.SuggestedAxiomTags
	tagText := "uncertain"
	if len(tags) > 0 {
		tagText = strings.Join(tags, ", ")
	}

	prefix := fmt.Sprintf("Observed alignment shift: %s", snap.Status)
	if snap.Status == resonance.StatusAligned {
		prefix = "Observed alignment: stable"
	}
	baseline := ""
	if snap.BaselineUsed {
		baseline = " [baseline_used]"
	}
	// Numeric drivers carry three decimals for auditability.
	identify := fmt.Sprintf("%s. Delta=%.3f (drift=%.3f, spine=%.3f, current=%.3f)%s.",
		prefix,
		snap.EquilibriumDelta,
		snap.Drivers.DriftRisk,
		snap.Drivers.SpineCoherence,
		snap.Drivers.CurrentCoherence,
		baseline)

	var define string
	switch snap.Status {
	case resonance.StatusAligned:
		define = fmt.Sprintf(
			"The peer signal is tracking with the recent spine (%s). Maintain awareness (%s) and choice framing (%s) to keep flow steady. Current tags: %s.",
			tensor.TagBalance, tensor.TagAwareness, tensor.TagChoice, tagText)
	case resonance.StatusMisaligned:
		define = fmt.Sprintf(
			"This pattern suggests reduced equilibrium relative to the recent spine (%s). When delta rises, perspective can narrow (%s) and forceful phrasing can add resistance (%s). Current tags: %s.",
			tensor.TagBalance, tensor.TagExtremes, tensor.TagForce, tagText)
	default:
		// Critical band. The blunt phrasing here is intentionally
		// caught and corrected by the self-audit pass below.
		define = fmt.Sprintf(
			"Equilibrium has broken against the recent spine (%s); you must pause before pressing further (%s). Current tags: %s.",
			tensor.TagBalance, tensor.TagForce, tagText)
	}

	suggest := []string{
		fmt.Sprintf("Option: Restate your intent in one sentence, then add one neutral observation (%s).", tensor.TagAwareness),
		fmt.Sprintf("Option: Offer two choices for the next step to widen agency (%s).", tensor.TagChoice),
		fmt.Sprintf("Option: Replace pressure phrases with observation language to invite flow (%s).", tensor.TagFlow),
	}

	return IDS{Identify: identify, Define: define, Suggest: suggest}
}

// selfAudit re-analyzes the concatenated block. If a disqualifying
// pattern appears in the system's own text, the generated suggestions
// are discarded and replaced with reframer pivots plus exactly one
// self-correction note.
func (e *Engine) selfAudit(ids IDS) IDS {
	combined := ids.Identify + "\n" + ids.Define + "\n" + strings.Join(ids.Suggest, "\n")
	res := e.rules.Analyze(combined, analysis.ModeStrict)

	offending := []analysis.Finding{}
	for _, f := range res.Findings {
		if disqualifying[f.Type] {
			offending = append(offending, f)
		}
	}
	if len(offending) == 0 {
		return ids
	}

	suggest := Reframe(offending)
	if len(suggest) == 0 {
		suggest = []string{"Option: Restate the guidance as a neutral observation."}
	}
	ids.Suggest = append(suggest, SelfCorrectionNote)
	return ids
}
