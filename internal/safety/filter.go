// Package safety screens child input and generated narration against a block-list.
//
// The filter is a heuristic. It matches whole words case-insensitively and does not
// stem, normalize spelling variants or look at meaning, so it will miss unsafe text
// phrased around the list and it should not be treated as a guarantee.
package safety

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultBlockList is used when no content file overrides it.
var DefaultBlockList = []string{
	"kill", "killing", "hate", "hell", "die", "dead", "death", "blood", "bloody",
	"gun", "knife", "weapon", "murder", "stupid", "idiot", "dumb", "shut up",
	"damn", "sex", "drugs", "suicide",
}

// Filter classifies text as safe or unsafe. It is immutable and safe for concurrent use.
type Filter struct {
	pattern *regexp.Regexp
}

// NewFilter compiles terms into a single case-insensitive whole-word pattern.
// Blank terms are ignored; a filter without terms flags nothing.
func NewFilter(terms []string) *Filter {
	quoted := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		quoted = append(quoted, regexp.QuoteMeta(term))
	}
	if len(quoted) == 0 {
		return &Filter{}
	}
	// Longer terms first so "killing" wins over "kill" in MatchedTerms.
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return &Filter{
		pattern: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
	}
}

// NewDefaultFilter returns a filter over DefaultBlockList.
func NewDefaultFilter() *Filter {
	return NewFilter(DefaultBlockList)
}

// Classify reports whether text contains a blocked word.
func (f *Filter) Classify(text string) (unsafe bool) {
	if f.pattern == nil || text == "" {
		return false
	}
	return f.pattern.MatchString(text)
}

// MatchedTerms returns the distinct blocked words found in text, lower-cased.
// Used for logging and metrics only.
func (f *Filter) MatchedTerms(text string) []string {
	if f.pattern == nil || text == "" {
		return nil
	}
	var terms []string
	seen := make(map[string]struct{})
	for _, m := range f.pattern.FindAllString(text, -1) {
		m = strings.ToLower(m)
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		terms = append(terms, m)
	}
	return terms
}
