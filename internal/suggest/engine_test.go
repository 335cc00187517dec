package suggest

import (
	"strings"
	"testing"

	"arbiter/internal/analysis"
	"arbiter/internal/resonance"
	"arbiter/internal/tensor"
)

func snapshotWith(status resonance.Status, baseline bool, tags ...string) resonance.Snapshot {
	return resonance.Snapshot{
		EquilibriumDelta: 0.42,
		Status:           status,
		Drivers: resonance.Drivers{
			DriftRisk:        0.1,
			SpineCoherence:   0.8,
			CurrentCoherence: 0.5,
		},
		SuggestedAxiomTags: tags,
		BaselineUsed:       baseline,
	}
}

func countNotes(suggest []string) int {
	n := 0
	for _, s := range suggest {
		if s == SelfCorrectionNote {
			n++
		}
	}
	return n
}

func TestGenerate_AlignedPassesAuditUnchanged(t *testing.T) {
	e := NewEngine(nil)
	pt := &tensor.Tensor{}

	ids := e.Generate(pt, snapshotWith(resonance.StatusAligned, true, tensor.TagBalance))

	if !strings.Contains(ids.Identify, "stable") {
		t.Fatalf("Identify = %q, want stability phrasing", ids.Identify)
	}
	if !strings.Contains(ids.Identify, "[baseline_used]") {
		t.Fatalf("Identify = %q, want baseline marker", ids.Identify)
	}
	if !strings.Contains(ids.Identify, "Delta=0.420") {
		t.Fatalf("Identify = %q, want three-decimal delta", ids.Identify)
	}
	if len(ids.Suggest) != 3 {
		t.Fatalf("Suggest = %v, want 3 options", ids.Suggest)
	}
	if countNotes(ids.Suggest) != 0 {
		t.Fatalf("aligned output must not carry a self-correction note: %v", ids.Suggest)
	}
}

func TestGenerate_CriticalTriggersSelfCorrection(t *testing.T) {
	e := NewEngine(nil)
	pt := &tensor.Tensor{}

	ids := e.Generate(pt, snapshotWith(resonance.StatusCritical, false, tensor.TagForce))

	if countNotes(ids.Suggest) != 1 {
		t.Fatalf("self-correction note count = %d, want exactly 1 (%v)",
			countNotes(ids.Suggest), ids.Suggest)
	}
	if ids.Suggest[len(ids.Suggest)-1] != SelfCorrectionNote {
		t.Fatalf("note must come last: %v", ids.Suggest)
	}

	// The corrected suggestions must survive their own audit.
	res := analysis.Analyze(strings.Join(ids.Suggest, "\n"), analysis.ModeStrict)
	for _, f := range res.Findings {
		if disqualifying[f.Type] {
			t.Fatalf("corrected output still carries %s (%q)", f.Type, f.Evidence)
		}
	}
}

func TestGenerate_CriticalReframesForceLanguage(t *testing.T) {
	e := NewEngine(nil)
	pt := &tensor.Tensor{}

	ids := e.Generate(pt, snapshotWith(resonance.StatusFractured, false))

	found := false
	for _, s := range ids.Suggest {
		if strings.Contains(s, "observe a path to") {
			found = true
		}
	}
	if !found {
		t.Fatalf("Suggest = %v, want a pivot for the force phrasing", ids.Suggest)
	}
}

func TestGenerate_NoTagsFallsBackToUncertain(t *testing.T) {
	e := NewEngine(nil)
	pt := &tensor.Tensor{}

	ids := e.Generate(pt, snapshotWith(resonance.StatusMisaligned, false))
	if !strings.Contains(ids.Define, "uncertain") {
		t.Fatalf("Define = %q, want uncertain tag text", ids.Define)
	}
	if countNotes(ids.Suggest) != 0 {
		t.Fatalf("misaligned output must not trigger correction: %v", ids.Suggest)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	e := NewEngine(nil)
	pt := &tensor.Tensor{}
	snap := snapshotWith(resonance.StatusCritical, false, tensor.TagForce)

	a := e.Generate(pt, snap)
	b := e.Generate(pt, snap)
	if a.Identify != b.Identify || a.Define != b.Define || len(a.Suggest) != len(b.Suggest) {
		t.Fatalf("generation diverged:\n%+v\nvs\n%+v", a, b)
	}
}
