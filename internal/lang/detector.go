// Package lang detects the dominant language of a query and reduces its
// tokens to stems for the supported Southeast Asian languages.
package lang

import (
	"strings"
	"unicode"
)

// Code is a short language identifier as used throughout the retrieval engine.
type Code string

// Supported language codes.
const (
	Indonesian Code = "id"
	Malay      Code = "ms"
	Vietnamese Code = "vi"
	English    Code = "en"
	Thai       Code = "th"
	Myanmar    Code = "my"
	Khmer      Code = "kh"
	Lao        Code = "lo"
)

// Default is returned when no rule produces a signal.
const Default = Indonesian

// String returns the language code as a plain string.
func (c Code) String() string {
	return string(c)
}

// ScriptRule maps a Unicode block without Latin overlap to a language.
type ScriptRule struct {
	Language Code
	Table    *unicode.RangeTable
}

// Matches reports whether any rune of s falls inside the rule's ranges.
func (r ScriptRule) Matches(s string) bool {
	for _, ch := range s {
		if unicode.Is(r.Table, ch) {
			return true
		}
	}
	return false
}

// ScriptRules are evaluated in order; the first match wins.
var ScriptRules = []ScriptRule{
	{Language: Khmer, Table: &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x1780, Hi: 0x17FF, Stride: 1},
		{Lo: 0x19E0, Hi: 0x19FF, Stride: 1},
	}}},
	{Language: Myanmar, Table: &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x1000, Hi: 0x109F, Stride: 1},
	}}},
	{Language: Thai, Table: &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x0E00, Hi: 0x0E7F, Stride: 1},
	}}},
	{Language: Lao, Table: &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x0E80, Hi: 0x0EFF, Stride: 1},
	}}},
}

// KeywordRule scores a Latin-script language by keyword occurrences.
type KeywordRule struct {
	Language Code
	Keywords []string
}

// Score counts how many keywords occur in the already lowercased query.
func (r KeywordRule) Score(lowered string) int {
	score := 0
	for _, kw := range r.Keywords {
		if strings.Contains(lowered, kw) {
			score++
		}
	}
	return score
}

// KeywordRules are scored in order; on equal scores the earlier rule wins.
var KeywordRules = []KeywordRule{
	{Language: Indonesian, Keywords: []string{
		"yang", "dan", "di", "ke", "dari", "untuk", "dengan", "adalah", "ini", "itu",
		"apa", "bagaimana", "mengapa", "berapa", "saya", "kami", "tidak", "punya",
		"proyek", "hutan", "lahan", "gambut", "restorasi", "wilayah", "kondisi", "dampak",
	}},
	{Language: Malay, Keywords: []string{
		"boleh", "tak", "kerana", "sahaja", "projek", "hutan paya", "bagaimanakah",
		"kawasan", "negeri", "daripada", "ialah", "mereka", "anda",
	}},
	{Language: Vietnamese, Keywords: []string{
		"của", "và", "là", "có", "không", "những", "rừng", "được", "trong", "cho",
		"như thế nào", "tại sao", "bao nhiêu", "dự án", "phục hồi",
	}},
	{Language: English, Keywords: []string{
		"the", "and", "what", "how", "why", "where", "which", "forest", "project",
		"restoration", "carbon", "is", "are", "of",
	}},
}

// Detect classifies the dominant language of query.
//
// Script rules run first because their blocks have no Latin overlap. Latin
// queries are then scored against each keyword table. Empty or unknown input
// returns Default.
func Detect(query string) Code {
	if strings.TrimSpace(query) == "" {
		return Default
	}

	for _, rule := range ScriptRules {
		if rule.Matches(query) {
			return rule.Language
		}
	}

	lowered := strings.ToLower(query)
	best, bestScore := Default, 0
	for _, rule := range KeywordRules {
		if s := rule.Score(lowered); s > bestScore {
			best, bestScore = rule.Language, s
		}
	}
	return best
}

// DetectLanguageQuick is an alias of Detect kept for callers that only need
// the cheap rule-based classification.
func DetectLanguageQuick(query string) Code {
	return Detect(query)
}
