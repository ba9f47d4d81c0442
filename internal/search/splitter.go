package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/lang"
)

// MinFragmentLength is the shortest sub-question kept after splitting, in runes.
const MinFragmentLength = 10

// QuestionWordRule detects interrogatives of one language group.
// Rules with WholeWord set only match between non-letter runes; Thai has no
// word separators so its rule matches substrings.
// CaseSensitive rules accept a word as written or with its first letter
// capitalized, which keeps acronyms such as "AI" from matching "ai".
type QuestionWordRule struct {
	Language      lang.Code
	Words         []string
	WholeWord     bool
	CaseSensitive bool

	pattern *regexp.Regexp
}

func newQuestionWordRule(language lang.Code, wholeWord bool, words ...string) QuestionWordRule {
	return QuestionWordRule{
		Language:  language,
		Words:     words,
		WholeWord: wholeWord,
		pattern:   compileWords(`(?i)`, words),
	}
}

func newCaseSensitiveRule(language lang.Code, words ...string) QuestionWordRule {
	variants := make([]string, 0, 2*len(words))
	for _, w := range words {
		variants = append(variants, w)
		if c := capitalize(w); c != w {
			variants = append(variants, c)
		}
	}
	return QuestionWordRule{
		Language:      language,
		Words:         words,
		WholeWord:     true,
		CaseSensitive: true,
		pattern:       compileWords("", variants),
	}
}

func compileWords(flags string, words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(flags + `(?:` + strings.Join(quoted, "|") + `)`)
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}

// Matches reports whether the rule finds a question word in s.
func (r QuestionWordRule) Matches(s string) bool {
	return len(r.find(s, 1)) > 0
}

// find returns up to n match spans that satisfy the boundary policy.
// n < 0 returns all of them.
func (r QuestionWordRule) find(s string, n int) [][]int {
	var spans [][]int
	for _, loc := range r.pattern.FindAllStringIndex(s, -1) {
		if r.WholeWord && !atWordBoundary(s, loc[0], loc[1]) {
			continue
		}
		spans = append(spans, loc)
		if n > 0 && len(spans) == n {
			break
		}
	}
	return spans
}

// startsWith reports whether s begins with one of the rule's words.
func (r QuestionWordRule) startsWith(s string) bool {
	loc := r.pattern.FindStringIndex(s)
	if loc == nil || loc[0] != 0 {
		return false
	}
	return !r.WholeWord || atWordBoundary(s, loc[0], loc[1])
}

// QuestionWordRules are the interrogative tables, one per language group.
var QuestionWordRules = []QuestionWordRule{
	newQuestionWordRule(lang.English, true,
		"what", "where", "when", "why", "how", "which", "whom", "whose", "who",
		"is", "are", "can", "could", "does", "do", "should", "would"),
	newQuestionWordRule(lang.Indonesian, true,
		"apakah", "apa", "bagaimana", "mengapa", "kenapa", "kapan", "dimana", "di mana",
		"siapa", "berapa", "manakah"),
	newQuestionWordRule(lang.Thai, false,
		"อะไร", "ที่ไหน", "เมื่อไหร่", "เมื่อไร", "ทำไม", "อย่างไร", "ยังไง", "ใคร", "เท่าไหร่", "เท่าไร"),
	newCaseSensitiveRule(lang.Vietnamese,
		"như thế nào", "thế nào", "khi nào", "tại sao", "vì sao", "bao nhiêu", "gì", "đâu", "ai"),
}

var (
	terminatorRe  = regexp.MustCompile(`[?!](\s+)`)
	semicolonRe   = regexp.MustCompile(`;`)
	conjunctionRe = regexp.MustCompile(`(?i)\b(?:dan|and|also)\b`)
	commaRe       = regexp.MustCompile(`,\s*`)
)

// MultiQuestionSplitter detects and segments queries that embed several
// questions, e.g. "Apa dampak deforestasi? Bagaimana kondisi karbon?".
type MultiQuestionSplitter struct {
	rules       []QuestionWordRule
	minFragment int
}

// NewMultiQuestionSplitter returns a splitter over QuestionWordRules.
func NewMultiQuestionSplitter() *MultiQuestionSplitter {
	return &MultiQuestionSplitter{
		rules:       QuestionWordRules,
		minFragment: MinFragmentLength,
	}
}

// TerminatorCount counts '?' and '!' in query.
func TerminatorCount(query string) int {
	return strings.Count(query, "?") + strings.Count(query, "!")
}

// QuestionWordCount sums, over the language groups, whether the group's
// interrogatives occur in query. Each group contributes at most one.
func (s *MultiQuestionSplitter) QuestionWordCount(query string) int {
	count := 0
	for _, rule := range s.rules {
		if rule.Matches(query) {
			count++
		}
	}
	return count
}

// IsMultiQuestion reports whether query holds more than one question.
func (s *MultiQuestionSplitter) IsMultiQuestion(query string) bool {
	return TerminatorCount(query) > 1 || s.QuestionWordCount(query) > 1
}

// Split segments a multi-question query into sub-questions.
//
// A single-question query is returned unchanged as the sole element.
// Otherwise the query is cut after sentence terminators followed by
// whitespace, at semicolons, at the conjunctions dan/and/also and at commas
// that precede a question word. Fragments shorter than MinFragmentLength
// runes are dropped; if none survive the original query is returned.
func (s *MultiQuestionSplitter) Split(query string) []string {
	if !s.IsMultiQuestion(query) {
		return []string{query}
	}

	cuts := s.separatorSpans(query)

	var fragments []string
	prev := 0
	for _, c := range cuts {
		if c[0] < prev {
			// Overlapping separator; skip the covered part.
			if c[1] > prev {
				prev = c[1]
			}
			continue
		}
		fragments = s.appendFragment(fragments, query[prev:c[0]])
		prev = c[1]
	}
	fragments = s.appendFragment(fragments, query[prev:])

	if len(fragments) == 0 {
		return []string{query}
	}
	return fragments
}

func (s *MultiQuestionSplitter) appendFragment(fragments []string, frag string) []string {
	frag = strings.TrimSpace(frag)
	if utf8.RuneCountInString(frag) < s.minFragment {
		return fragments
	}
	return append(fragments, frag)
}

// separatorSpans returns the byte ranges removed by splitting, sorted by start.
// A terminator stays with its sentence; only the whitespace after it is cut.
func (s *MultiQuestionSplitter) separatorSpans(query string) [][]int {
	var spans [][]int

	for _, m := range terminatorRe.FindAllStringSubmatchIndex(query, -1) {
		spans = append(spans, []int{m[2], m[3]})
	}
	spans = append(spans, semicolonRe.FindAllStringIndex(query, -1)...)
	spans = append(spans, conjunctionRe.FindAllStringIndex(query, -1)...)

	// RE2 has no lookahead: find ",\s*" and keep those followed by a question word.
	for _, loc := range commaRe.FindAllStringIndex(query, -1) {
		if s.questionWordAt(query[loc[1]:]) {
			spans = append(spans, loc)
		}
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	return spans
}

func (s *MultiQuestionSplitter) questionWordAt(rest string) bool {
	for _, rule := range s.rules {
		if rule.startsWith(rest) {
			return true
		}
	}
	return false
}

// atWordBoundary reports whether s[start:end] is delimited by non-word runes.
func atWordBoundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
