package screen

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule is one screening pattern. Patterns are authored as configuration, not
// code, so the set can be revised without touching pipeline logic.
type Rule struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Pattern  string `yaml:"pattern"`

	re *regexp.Regexp
}

type ruleFile struct {
	Version int    `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// RuleSet is an ordered, compiled set of screening rules.
type RuleSet struct {
	Version int
	Rules   []Rule
}

// DefaultRuleSet compiles the embedded rule document.
func DefaultRuleSet() (*RuleSet, error) {
	return parseRules(defaultRulesYAML)
}

// LoadRuleSet reads a rule document from path, falling back to the embedded
// default when path is empty.
func LoadRuleSet(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRuleSet()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	rs, err := parseRules(data)
	if err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return rs, nil
}

func parseRules(data []byte) (*RuleSet, error) {
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rules yaml: %w", err)
	}
	if len(rf.Rules) == 0 {
		return nil, fmt.Errorf("rule set contains no rules")
	}

	for i := range rf.Rules {
		r := &rf.Rules[i]
		if r.Name == "" || r.Pattern == "" {
			return nil, fmt.Errorf("rule %d is missing a name or pattern", i)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s has an invalid pattern: %w", r.Name, err)
		}
		r.re = re
	}

	return &RuleSet{Version: rf.Version, Rules: rf.Rules}, nil
}
