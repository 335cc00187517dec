// Package analysis implements the deterministic pattern analyzer.
// It scans free-text input against a fixed rule table of linguistic
// pressure patterns (force language, coercive certainty, hierarchy
// markers, etc.) and produces ordered, typed findings. The analyzer
// holds no state: the same input always yields the same findings.
package analysis

import (
	"regexp"
	"sort"
)

// FindingType identifies one pressure pattern family.
type FindingType string

const (
	FindingDirectiveDrift     FindingType = "directive_drift"
	FindingHierarchyInference FindingType = "hierarchy_inference"
	FindingUrgencyCompression FindingType = "urgency_compression"
	FindingMoralLeverage      FindingType = "moral_leverage"
	FindingIdentityAttractor  FindingType = "identity_attractor"
	FindingCertaintyInflation FindingType = "certainty_inflation"
	FindingTopicDrift         FindingType = "topic_drift"
	FindingForceLanguage      FindingType = "force_language"
	FindingUltimatum          FindingType = "ultimatum"
)

// FindingTypes lists all known types in canonical order.
var FindingTypes = []FindingType{
	FindingDirectiveDrift,
	FindingHierarchyInference,
	FindingUrgencyCompression,
	FindingMoralLeverage,
	FindingIdentityAttractor,
	FindingCertaintyInflation,
	FindingTopicDrift,
	FindingForceLanguage,
	FindingUltimatum,
}

// Finding is a single pattern hit. Ephemeral: findings are embedded in
// tensors and audit records, never persisted standalone.
type Finding struct {
	Type     FindingType `json:"type"`
	Severity int         `json:"severity"` // 1..5
	Evidence string      `json:"evidence"`
	Index    int         `json:"index"`
}

// Mode selects how findings are weighted into a flag decision.
// Detection itself is identical in every mode.
type Mode string

const (
	// ModeTolerant tolerates some charge and only flags escalations.
	ModeTolerant Mode = "rbc"
	// ModeStrict flags force and ultimatum language fast.
	ModeStrict Mode = "arbiter"
	// ModeStyle surfaces content/style warnings for drift and certainty.
	ModeStyle Mode = "lint"
)

// ParseMode maps a mode string to a Mode, defaulting to tolerant.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeStrict:
		return ModeStrict
	case ModeStyle:
		return ModeStyle
	default:
		return ModeTolerant
	}
}

// Score is the mode-weighted accumulation of findings.
type Score struct {
	Total  int                 `json:"total"`
	ByType map[FindingType]int `json:"by_type"`
}

// Result is one full analysis of a piece of text.
type Result struct {
	Mode     Mode                `json:"mode"`
	Flagged  bool                `json:"flagged"`
	Length   int                 `json:"length"`
	Counts   map[FindingType]int `json:"counts"`
	Score    Score               `json:"score"`
	Findings []Finding           `json:"findings"`
	Notes    []string            `json:"notes"`
}

// Rule pairs a finding type and severity with its detection pattern.
type Rule struct {
	Type     FindingType
	Severity int
	Pattern  *regexp.Regexp
}

// defaultRules is the fixed core pattern library. Order matters only for
// scan cost; findings are sorted before they leave the analyzer.
var defaultRules = []Rule{
	{FindingForceLanguage, 3, regexp.MustCompile(`(?i)\b(must|you must|do it now|do this now|don['’]t|stop|listen closely|follow my lead|you need to)\b`)},
	{FindingUltimatum, 4, regexp.MustCompile(`(?i)\b(if you don['’]t|unless you|or else|i will (?:pull|remove|end|cancel)|i['’]m pulling|i['’]ll end)\b`)},
	{FindingCertaintyInflation, 2, regexp.MustCompile(`(?i)\b(always|never|the only|obviously|clearly|everyone knows|no doubt|guaranteed)\b`)},
	{FindingHierarchyInference, 3, regexp.MustCompile(`(?i)\b(let me educate you|you don['’]t understand|you clearly don['’]t|get it through your head|as i said)\b`)},
	{FindingUrgencyCompression, 2, regexp.MustCompile(`(?i)\b(now|today|right away|immediately|by tomorrow|asap|urgent)\b`)},
	{FindingMoralLeverage, 4, regexp.MustCompile(`(?i)\b(if you cared|if you respected|you should be ashamed|how could you|you owe me)\b`)},
	{FindingIdentityAttractor, 5, regexp.MustCompile(`(?i)\b(you are (?:lazy|stupid|incompetent|a liar)|that['’]s who you are)\b`)},
	{FindingDirectiveDrift, 1, regexp.MustCompile(`(?i)\b(anyway|back to the main point|forget that|doesn['’]t matter|ignore previous|new instruction)\b`)},
	{FindingTopicDrift, 1, regexp.MustCompile(`(?i)\b(unrelated|off topic|different subject)\b`)},
}

// Ruleset is an immutable rule table. The default set can be extended
// with an overlay loaded from disk (see LoadRuleset).
type Ruleset struct {
	rules []Rule
}

// DefaultRuleset returns the built-in core pattern library.
func DefaultRuleset() *Ruleset {
	return &Ruleset{rules: defaultRules}
}

// Rules returns a copy of the rule table.
func (rs *Ruleset) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Analyze runs the default ruleset over text.
func Analyze(text string, mode Mode) Result {
	return DefaultRuleset().Analyze(text, mode)
}

// Analyze scans text with every rule and weights the hits by mode.
// Empty input is a valid no-op: zero findings, not an error.
func (rs *Ruleset) Analyze(text string, mode Mode) Result {
	findings := rs.scan(text)

	counts := emptyCounts()
	for _, f := range findings {
		counts[f.Type]++
	}

	weights := modeWeights(mode)
	byType := emptyCounts()
	total := 0
	for _, f := range findings {
		w, ok := weights[f.Type]
		if !ok {
			w = 1
		}
		byType[f.Type] += w
		total += w
	}

	res := Result{
		Mode:     mode,
		Flagged:  total >= flagThreshold(mode),
		Length:   len(text),
		Counts:   counts,
		Score:    Score{Total: total, ByType: byType},
		Findings: findings,
	}

	switch mode {
	case ModeStrict:
		res.Notes = append(res.Notes, "strict mode: flags force/ultimatum fast")
	case ModeStyle:
		res.Notes = append(res.Notes, "style mode: content warnings for drift and certainty")
	default:
		res.Notes = append(res.Notes, "tolerant mode: seeks de-escalation signals")
	}
	if len(findings) == 0 {
		res.Notes = append(res.Notes, "no heuristic triggers detected")
	}
	return res
}

// scan finds all non-overlapping matches for every rule. Output is
// sorted by index, then evidence, then type, so two scans of the same
// text are always identical.
func (rs *Ruleset) scan(text string) []Finding {
	findings := []Finding{}
	for _, r := range rs.rules {
		for _, loc := range r.Pattern.FindAllStringIndex(text, -1) {
			findings = append(findings, Finding{
				Type:     r.Type,
				Severity: r.Severity,
				Evidence: text[loc[0]:loc[1]],
				Index:    loc[0],
			})
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Index != findings[j].Index {
			return findings[i].Index < findings[j].Index
		}
		if findings[i].Evidence != findings[j].Evidence {
			return findings[i].Evidence < findings[j].Evidence
		}
		return findings[i].Type < findings[j].Type
	})
	return findings
}

// modeWeights returns the per-type weight table for a mode. Style-only
// findings score zero outside style mode; pressure findings score
// higher under strict mode.
func modeWeights(mode Mode) map[FindingType]int {
	style := 0
	if mode == ModeStyle {
		style = 1
	}
	tolerant := mode == ModeTolerant
	pick := func(t, other int) int {
		if tolerant {
			return t
		}
		return other
	}
	return map[FindingType]int{
		FindingDirectiveDrift:     style,
		FindingTopicDrift:         style,
		FindingCertaintyInflation: pick(1, 2),
		FindingUrgencyCompression: pick(1, 2),
		FindingHierarchyInference: pick(2, 3),
		FindingMoralLeverage:      pick(3, 4),
		FindingIdentityAttractor:  5,
		FindingForceLanguage:      pick(2, 3),
		FindingUltimatum:          5,
	}
}

func flagThreshold(mode Mode) int {
	switch mode {
	case ModeStrict:
		return 4
	case ModeStyle:
		return 6
	default:
		return 7
	}
}

func emptyCounts() map[FindingType]int {
	out := make(map[FindingType]int, len(FindingTypes))
	for _, t := range FindingTypes {
		out[t] = 0
	}
	return out
}
