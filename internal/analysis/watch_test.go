package analysis

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("rules: []\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	reloaded := make(chan *Ruleset, 4)
	w, err := NewWatcher(path, nil, func(rs *Ruleset) { reloaded <- rs })
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	overlay := `
rules:
  - type: force_language
    severity: 2
    pattern: '(?i)\bcomply\b'
`
	if err := os.WriteFile(path, []byte(overlay), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case rs := <-reloaded:
		if got, want := len(rs.Rules()), len(DefaultRuleset().Rules())+1; got != want {
			t.Fatalf("reloaded rules = %d, want %d", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_KeepsPreviousRulesetOnBadOverlay(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("rules: []\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	reloaded := make(chan *Ruleset, 4)
	w, err := NewWatcher(path, nil, func(rs *Ruleset) { reloaded <- rs })
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	bad := `
rules:
  - type: nonsense
    severity: 1
    pattern: 'x'
`
	if err := os.WriteFile(path, []byte(bad), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case <-reloaded:
		t.Fatal("bad overlay must not trigger a reload")
	case <-time.After(500 * time.Millisecond):
	}
}
