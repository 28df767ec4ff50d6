package search

import "strings"

// minTermLen is the shortest query token kept as a meaningful search term.
const minTermLen = 3

// stopWords are dropped from extracted query terms. Intentionally a small
// English list — keyword matching here exists to complement vector search
// and support degradation, not to be a full-text engine.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "his": true, "how": true, "its": true, "may": true,
	"who": true, "did": true, "get": true, "this": true, "that": true,
	"with": true, "from": true, "what": true, "when": true, "where": true,
	"which": true, "will": true, "would": true, "could": true, "should": true,
	"about": true, "into": true, "over": true, "than": true, "then": true,
	"them": true, "they": true, "there": true, "their": true, "have": true,
	"does": true, "been": true, "were": true, "your": true,
}

// NormalizeQuery canonicalizes query text for cache keys and matching:
// lower-cased, trimmed, with runs of whitespace collapsed to single spaces.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// ExtractTerms splits a query on whitespace and returns the lower-cased
// tokens that are long enough and not stop words, preserving order and
// dropping duplicates. An empty result means the query carries no usable
// lexical signal.
func ExtractTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		f = strings.Trim(f, `.,;:!?"'()[]{}`)
		if len(f) < minTermLen || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// TermOverlap scores content by the fraction of terms present as
// case-insensitive substrings, in [0, 1]. Zero terms score zero.
func TermOverlap(content string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	matched := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
