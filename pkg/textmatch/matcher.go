// Package textmatch implements the text-search modes of the canvas query
// layer: plain case-insensitive substring and a fuzzy mode that requires
// every significant query term to occur somewhere in the haystack.
package textmatch

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"
)

// Mode selects the matching strategy.
type Mode string

const (
	ModeFullText Mode = "full-text"
	ModeFuzzy    Mode = "fuzzy"
)

var english = stopwords.MustGet("en")

// The library's English list is aggressive and swallows content words
// ("numbers", "part"). A term is dropped only when this core list of
// function words agrees, so real search terms always stay required.
var coreStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "is": true,
	"it": true, "and": true, "or": true, "with": true, "from": true,
	"by": true, "this": true, "that": true, "as": true, "be": true,
}

// Matcher evaluates one query against arbitrary haystacks.
type Matcher struct {
	mode  Mode
	query string

	// Fuzzy mode: one automaton over all significant terms, O(n) per scan.
	ac    *ahocorasick.Automaton
	terms int
}

// New compiles a matcher. An empty query matches everything.
func New(query string, mode Mode) (*Matcher, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	m := &Matcher{mode: mode, query: query}

	switch mode {
	case ModeFullText:
		return m, nil
	case ModeFuzzy:
	default:
		return nil, fmt.Errorf("textmatch: unknown mode %q", mode)
	}

	terms := tokenize(query)
	kept := terms[:0]
	for _, t := range terms {
		if coreStopwords[t] && english.Contains(t) {
			continue
		}
		kept = append(kept, t)
	}
	// A query made entirely of stopwords still has to mean something.
	if len(kept) == 0 {
		kept = tokenize(query)
	}
	kept = dedupe(kept)
	if len(kept) == 0 {
		return m, nil
	}

	ac, err := ahocorasick.NewBuilder().
		AddStrings(kept).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, fmt.Errorf("textmatch: compiling terms: %w", err)
	}
	m.ac = ac
	m.terms = len(kept)
	return m, nil
}

// Match reports whether the haystack satisfies the query.
func (m *Matcher) Match(haystack string) bool {
	if m.query == "" {
		return true
	}
	lower := strings.ToLower(haystack)

	if m.mode == ModeFullText {
		return strings.Contains(lower, m.query)
	}

	if m.ac == nil {
		return true
	}
	seen := make(map[int]struct{}, m.terms)
	for _, hit := range m.ac.FindAllOverlapping([]byte(lower)) {
		seen[hit.PatternID] = struct{}{}
		if len(seen) == m.terms {
			return true
		}
	}
	return false
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
