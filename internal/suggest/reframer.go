package suggest

import (
	"fmt"
	"strings"

	"arbiter/internal/analysis"
)

// frictionLexicon maps high-friction markers to low-friction pivots.
// Static substitution only; no generation happens here.
var frictionLexicon = map[string]string{
	"must":        "observe a path to",
	"you must":    "observe a path to",
	"should":      "is a potential for",
	"need to":     "could enable",
	"you need to": "could enable",
	"restricted":  "bounded",
	"forbidden":   "non-resonant",
	"stop":        "pause",
	"incorrect":   "unaligned",
	"command":     "suggest",
	"enforce":     "define the channel",
}

// Pivot looks up the low-friction replacement for a marker, matching
// case-insensitively.
func Pivot(evidence string) (string, bool) {
	p, ok := frictionLexicon[strings.ToLower(evidence)]
	return p, ok
}

// Reframe turns offending findings into substitution suggestions. The
// offending token itself is not echoed back, so reframed output cannot
// re-trigger the same detection. One suggestion per distinct pivot.
func Reframe(findings []analysis.Finding) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, f := range findings {
		pivot, ok := Pivot(f.Evidence)
		if !ok {
			continue
		}
		if _, dup := seen[pivot]; dup {
			continue
		}
		seen[pivot] = struct{}{}
		out = append(out, fmt.Sprintf("Pivot: prefer '%s' where the flagged phrasing appeared.", pivot))
	}
	return out
}
