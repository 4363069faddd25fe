// Package screen is the regex stage of the safety pipeline. It is pure and
// deterministic: no external calls, identical input always yields an
// identical verdict. It runs before the semantic evaluator so obviously
// hostile messages never cost an oracle call.
package screen

// Screener scans message text against an ordered rule set.
type Screener struct {
	rules *RuleSet
}

func NewScreener(rules *RuleSet) *Screener {
	return &Screener{rules: rules}
}

// Classify reports whether text matches any screening rule. Matching is
// short-circuiting: the first matching rule wins and is returned. Empty text
// never matches.
func (s *Screener) Classify(text string) (bool, *Rule) {
	if text == "" {
		return false, nil
	}
	for i := range s.rules.Rules {
		r := &s.rules.Rules[i]
		if r.re.MatchString(text) {
			return true, r
		}
	}
	return false, nil
}
