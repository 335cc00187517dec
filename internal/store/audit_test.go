package store

import "testing"

func TestWriteAudit_AndRecentAudit(t *testing.T) {
	s := openTestStore(t)

	for _, ev := range []AuditEvent{
		{SessionID: "s1", EventType: AuditTurnProcessed, Summary: "turn one"},
		{SessionID: "s1", EventType: AuditArbiterIntervention, Summary: "paused",
			Details: map[string]any{"threshold": 0.999}},
		{SessionID: "s2", EventType: AuditTurnProcessed, Summary: "other session"},
	} {
		if err := s.WriteAudit(ev); err != nil {
			t.Fatalf("WriteAudit() error = %v", err)
		}
	}

	events, err := s.RecentAudit("s1", 10)
	if err != nil {
		t.Fatalf("RecentAudit() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	// Newest first.
	if events[0].EventType != AuditArbiterIntervention {
		t.Fatalf("events[0] = %+v, want the intervention", events[0])
	}
	if events[0].Details["threshold"] != 0.999 {
		t.Fatalf("Details = %v", events[0].Details)
	}
	if events[0].CreatedAt.IsZero() {
		t.Fatal("CreatedAt not populated")
	}
}

func TestFingerprint_NormalizesCaseAndSpace(t *testing.T) {
	a := Fingerprint("You Must")
	b := Fingerprint("  you must ")
	c := Fingerprint("you mustn't")

	if a != b {
		t.Fatalf("fingerprints differ: %q vs %q", a, b)
	}
	if a == c {
		t.Fatal("distinct evidence collides")
	}
	if len(a) != 16 {
		t.Fatalf("fingerprint length = %d, want 16", len(a))
	}
}

func TestLookupPattern(t *testing.T) {
	s := openTestStore(t)

	fp := Fingerprint("you must")
	for i, summary := range []string{"first sighting", "second sighting"} {
		ev := AuditEvent{SessionID: "s1", EventType: AuditTurnProcessed, Fingerprint: fp, Summary: summary}
		if err := s.WriteAudit(ev); err != nil {
			t.Fatalf("WriteAudit(%d) error = %v", i, err)
		}
	}

	rec, err := s.LookupPattern(fp)
	if err != nil {
		t.Fatalf("LookupPattern() error = %v", err)
	}
	if rec == nil || rec.Occurrences != 2 {
		t.Fatalf("record = %+v, want 2 occurrences", rec)
	}
	if rec.LastSummary != "second sighting" {
		t.Fatalf("LastSummary = %q", rec.LastSummary)
	}

	// A never-seen fingerprint is nil, not an error.
	rec, err = s.LookupPattern(Fingerprint("never seen"))
	if err != nil {
		t.Fatalf("LookupPattern() error = %v", err)
	}
	if rec != nil {
		t.Fatalf("record = %+v, want nil", rec)
	}
}
