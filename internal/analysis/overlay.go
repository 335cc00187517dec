package analysis

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// overlayFile is the on-disk shape of a rule overlay. Overlay rules are
// appended to the built-in library; they can widen detection for a
// deployment but never remove a core rule.
type overlayFile struct {
	Rules []overlayRule `yaml:"rules"`
}

type overlayRule struct {
	Type     string `yaml:"type"`
	Severity int    `yaml:"severity"`
	Pattern  string `yaml:"pattern"`
}

// LoadRuleset builds a ruleset from the core library plus the overlay
// at path. Overlay rules must use a known finding type and a severity
// in 1..5; a bad entry fails the whole load so a partial catalog is
// never silently active.
func LoadRuleset(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule overlay: %w", err)
	}

	var file overlayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rule overlay: %w", err)
	}

	rules := make([]Rule, 0, len(defaultRules)+len(file.Rules))
	rules = append(rules, defaultRules...)

	for i, or := range file.Rules {
		typ := FindingType(or.Type)
		if !knownFindingType(typ) {
			return nil, fmt.Errorf("overlay rule %d: unknown finding type %q", i, or.Type)
		}
		if or.Severity < 1 || or.Severity > 5 {
			return nil, fmt.Errorf("overlay rule %d: severity %d out of range 1..5", i, or.Severity)
		}
		re, err := regexp.Compile(or.Pattern)
		if err != nil {
			return nil, fmt.Errorf("overlay rule %d: invalid pattern: %w", i, err)
		}
		rules = append(rules, Rule{Type: typ, Severity: or.Severity, Pattern: re})
	}

	return &Ruleset{rules: rules}, nil
}

func knownFindingType(t FindingType) bool {
	for _, k := range FindingTypes {
		if k == t {
			return true
		}
	}
	return false
}
