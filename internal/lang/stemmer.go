package lang

import (
	"strings"
	"unicode"
	"unicode/utf8"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
	"golang.org/x/text/unicode/norm"
)

// StemResult holds the tokens of a query before and after stemming.
// Terms[i] is the source token of StemmedTerms[i].
type StemResult struct {
	Terms        []string
	StemmedTerms []string
}

// Joined returns the stemmed terms separated by single spaces.
func (r StemResult) Joined() string {
	return strings.Join(r.StemmedTerms, " ")
}

// Token length floors for each stemming strategy, in runes.
const (
	minAffixToken    = 3
	minPassToken     = 2
	minPorterToken   = 3
	minStemRemainder = 3
)

// Indonesian and Malay affixes. Suffixes are tried in order and at most one
// is removed; prefixes likewise.
var (
	indonesianSuffixes = []string{"ku", "mu", "nya", "lah", "kan", "an", "i"}
	indonesianPrefixes = []string{"meng", "meny", "men", "peng", "peny", "pen", "pe", "ber", "ter", "ke"}
)

// invalidConfixes lists prefixes that keep a suffix attached to the root.
// Only ber-...-i is blocked ("berlari" is ber+lari); every other word loses
// its first matching suffix.
var invalidConfixes = map[string][]string{
	"i": {"ber"},
}

func confixBlocked(word, suffix string) bool {
	for _, prefix := range invalidConfixes[suffix] {
		if strings.HasPrefix(word, prefix) {
			return true
		}
	}
	return false
}

// noStemmer lists languages that are tokenized but never stemmed.
var noStemmer = map[Code]bool{
	Thai:       true,
	Vietnamese: true,
	Myanmar:    true,
	Khmer:      true,
	Lao:        true,
}

// Stem reduces query to stems using the strategy for language.
// It never fails; unsupported morphology passes through as plain tokens.
func Stem(query string, language Code) StemResult {
	query = norm.NFC.String(query)

	switch {
	case language == Indonesian || language == Malay:
		return stemAffixes(query)
	case noStemmer[language]:
		return passThrough(query)
	default:
		return stemPorter(query)
	}
}

// StemQuery detects the language of query and stems it accordingly.
func StemQuery(query string) (StemResult, Code) {
	language := Detect(query)
	return Stem(query, language), language
}

// StemIndonesianWord strips at most one suffix and then at most one prefix
// from word. Words shorter than three runes are returned unchanged.
func StemIndonesianWord(word string) string {
	if utf8.RuneCountInString(word) < minAffixToken {
		return word
	}

	stem := word
	for _, suffix := range indonesianSuffixes {
		if strings.HasSuffix(stem, suffix) {
			if !confixBlocked(stem, suffix) {
				stem = strings.TrimSuffix(stem, suffix)
			}
			break
		}
	}

	for _, prefix := range indonesianPrefixes {
		if !strings.HasPrefix(stem, prefix) {
			continue
		}
		rest := strings.TrimPrefix(stem, prefix)
		if utf8.RuneCountInString(rest) >= minStemRemainder {
			stem = rest
			break
		}
	}

	if stem == "" {
		return word
	}
	return stem
}

func stemAffixes(query string) StemResult {
	var res StemResult
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(tok) < minAffixToken {
			continue
		}
		res.Terms = append(res.Terms, tok)
		res.StemmedTerms = append(res.StemmedTerms, StemIndonesianWord(tok))
	}
	return res
}

func passThrough(query string) StemResult {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, strings.ToLower(query))

	var res StemResult
	for _, tok := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(tok) < minPassToken {
			continue
		}
		res.Terms = append(res.Terms, tok)
		res.StemmedTerms = append(res.StemmedTerms, tok)
	}
	return res
}

func stemPorter(query string) StemResult {
	var res StemResult
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(tok) < minPorterToken {
			continue
		}
		res.Terms = append(res.Terms, tok)
		res.StemmedTerms = append(res.StemmedTerms, porterstemmer.StemString(tok))
	}
	return res
}
