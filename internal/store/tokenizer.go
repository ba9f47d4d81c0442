package store

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/lang"
)

// DefaultStopWords are Indonesian, Malay and English function words dropped
// from lexical queries and from the bleve analyzer.
var DefaultStopWords = []string{
	// Indonesian / Malay
	"yang", "dan", "di", "ke", "dari", "untuk", "dengan", "ini", "itu",
	"atau", "pada", "adalah", "juga", "oleh", "dalam", "apa", "bagaimana",
	// English
	"the", "and", "of", "to", "in", "is", "are", "for", "on", "with",
	"a", "an", "or", "by", "at", "what", "how",
}

var defaultStopWords = BuildStopWordMap(DefaultStopWords)

// TokenizeText lowercases text (NFC-normalized) and splits it on anything
// that is not a letter, digit or combining mark.
func TokenizeText(text string) []string {
	text = norm.NFC.String(strings.ToLower(text))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})
}

// LexicalDocument returns the text the lexical indexes hold for content: the
// content followed by the stems of its words that differ from the words.
// Lexical queries arrive stemmed, so the stems have to be searchable next to
// the surface forms.
func LexicalDocument(content string) string {
	stems := DocumentStems(content)
	if len(stems) == 0 {
		return content
	}
	return content + "\n" + strings.Join(stems, " ")
}

// DocumentStems stems content in its detected language and returns the
// distinct stems that are not already words of content. English text also
// gets the Indonesian affix stems, since mixed-language reports are common.
func DocumentStems(content string) []string {
	tokens := TokenizeText(content)
	if len(tokens) == 0 {
		return nil
	}
	words := strings.Join(tokens, " ")

	surface := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		surface[t] = struct{}{}
	}

	var stems []string
	add := func(res lang.StemResult) {
		for _, stem := range res.StemmedTerms {
			if _, ok := surface[stem]; ok {
				continue
			}
			surface[stem] = struct{}{}
			stems = append(stems, stem)
		}
	}

	language := lang.Detect(words)
	add(lang.Stem(words, language))
	if language == lang.English {
		add(lang.Stem(words, lang.Indonesian))
	}
	return stems
}

// LexicalTerms returns the distinct, non-stop-word terms of query in order
// of first appearance. The result never contains query syntax characters,
// so it is safe to splice into tsquery and FTS5 expressions.
func LexicalTerms(query string) []string {
	tokens := FilterStopWords(TokenizeText(query), defaultStopWords)
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

// TSQuery builds a to_tsquery('simple', ...) expression matching any term.
// An empty string means the query has no usable terms.
func TSQuery(query string) string {
	return strings.Join(LexicalTerms(query), " | ")
}

// FTS5Query builds an FTS5 MATCH expression matching any term.
func FTS5Query(query string) string {
	terms := LexicalTerms(query)
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// FilterStopWords removes stop words from tokens.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[token]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap creates a lookup map from a stop word slice.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
