package search

import (
	"sort"
	"strings"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/lang"
)

// DefaultMaxExpansions is the number of synonyms added per matched key.
const DefaultMaxExpansions = 2

// QueryExpander adds domain synonyms to a single-question query.
// This bridges vocabulary mismatch where users ask about "hutan" while the
// documents talk about "tutupan hutan" or "rimba".
//
// Example:
//
//	Input:  "dampak gambut"
//	Output: "dampak gambut pengaruh akibat lahan gambut rawa gambut"
//
// A token matches a key when either contains the other, so "gambutnya"
// still picks up the synonyms of "gambut".
type QueryExpander struct {
	dictionaries  map[lang.Code]map[string][]string
	keys          map[lang.Code][]string // sorted keys per dictionary
	maxExpansions int
}

// QueryExpanderOption configures the query expander.
type QueryExpanderOption func(*QueryExpander)

// WithMaxExpansions sets the maximum synonyms added per matched key.
func WithMaxExpansions(n int) QueryExpanderOption {
	return func(e *QueryExpander) {
		if n >= 0 {
			e.maxExpansions = n
		}
	}
}

// WithDictionary replaces the dictionary used for language.
func WithDictionary(language lang.Code, dict map[string][]string) QueryExpanderOption {
	return func(e *QueryExpander) {
		e.dictionaries[language] = dict
	}
}

// NewQueryExpander creates a query expander over the built-in dictionaries.
func NewQueryExpander(opts ...QueryExpanderOption) *QueryExpander {
	e := &QueryExpander{
		dictionaries:  defaultDictionaries(),
		maxExpansions: DefaultMaxExpansions,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.keys = make(map[lang.Code][]string, len(e.dictionaries))
	for code, dict := range e.dictionaries {
		keys := make([]string, 0, len(dict))
		for k := range dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.keys[code] = keys
	}

	return e
}

// Expand returns the query tokens followed by matching synonyms.
//
// The expansion strategy:
// 1. Keep original lowercased tokens (for exact matches)
// 2. Add up to maxExpansions synonyms of every key matching a token
// 3. Deduplicate, keeping first occurrence
func (e *QueryExpander) Expand(query string, language lang.Code) string {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return ""
	}

	dict, keys := e.dictionaryFor(language)

	seen := make(map[string]bool, len(tokens))
	expanded := make([]string, 0, len(tokens))
	add := func(term string) {
		if !seen[term] {
			seen[term] = true
			expanded = append(expanded, term)
		}
	}

	for _, tok := range tokens {
		add(tok)
	}

	for _, tok := range tokens {
		for _, key := range keys {
			if !strings.Contains(tok, key) && !strings.Contains(key, tok) {
				continue
			}
			syns := dict[key]
			if len(syns) > e.maxExpansions {
				syns = syns[:e.maxExpansions]
			}
			for _, syn := range syns {
				add(syn)
			}
		}
	}

	return strings.Join(expanded, " ")
}

// dictionaryFor returns the dictionary for language, falling back to English.
func (e *QueryExpander) dictionaryFor(language lang.Code) (map[string][]string, []string) {
	if dict, ok := e.dictionaries[language]; ok {
		return dict, e.keys[language]
	}
	return e.dictionaries[lang.English], e.keys[lang.English]
}
