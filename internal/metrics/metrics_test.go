package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TurnsTotal.Inc()
	m.TurnsTotal.Inc()
	m.FindingsTotal.WithLabelValues("force_language").Inc()
	m.PausesTotal.Inc()
	m.TurnDuration.Observe(0.01)

	if got := testutil.ToFloat64(m.TurnsTotal); got != 2 {
		t.Fatalf("arbiter_turns_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FindingsTotal.WithLabelValues("force_language")); got != 1 {
		t.Fatalf("arbiter_findings_total{type=force_language} = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"arbiter_turns_total",
		"arbiter_findings_total",
		"arbiter_session_pauses_total",
		"arbiter_turn_duration_seconds",
	} {
		if !names[want] {
			t.Fatalf("metric %s not registered (have %v)", want, names)
		}
	}
}
