package llm

import (
	"fmt"
	"strings"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/lang"
)

// MaxQueryWords caps the length of a fused query.
const MaxQueryWords = 30

// PromptTemplate is the system/user prompt pair for one language.
type PromptTemplate struct {
	System     string
	UserHeader string
}

var indonesianPrompt = PromptTemplate{
	System: fmt.Sprintf(`Anda adalah asisten pencarian untuk basis pengetahuan solusi berbasis alam (NbS).
Gabungkan semua pertanyaan pengguna menjadi SATU kueri pencarian.
Aturan:
- Maksimal %d kata.
- Cakup setiap pertanyaan.
- Gunakan istilah lingkungan dan restorasi (hutan, gambut, mangrove, karbon, deforestasi).
- Jawab hanya dengan kueri, tanpa penjelasan, tanpa tanda kutip.`, MaxQueryWords),
	UserHeader: "Pertanyaan:",
}

var englishPrompt = PromptTemplate{
	System: fmt.Sprintf(`You are a search assistant for a nature-based solutions (NbS) knowledge base.
Merge all of the user's questions into ONE search query.
Rules:
- At most %d words.
- Cover every question.
- Use environmental and restoration terminology (forest, peatland, mangrove, carbon, deforestation).
- Reply with the query only, no explanation, no quotes.`, MaxQueryWords),
	UserHeader: "Questions:",
}

// PromptFor returns the template for language. Only Indonesian has its own
// template; every other language uses English.
func PromptFor(language lang.Code) PromptTemplate {
	if language == lang.Indonesian {
		return indonesianPrompt
	}
	return englishPrompt
}

// UserPrompt enumerates questions as "1. ...", "2. ...".
func (p PromptTemplate) UserPrompt(questions []string) string {
	var b strings.Builder
	b.WriteString(p.UserHeader)
	for i, q := range questions {
		fmt.Fprintf(&b, "\n%d. %s", i+1, strings.TrimSpace(q))
	}
	return b.String()
}

// CleanResponse trims the model output, removes wrapping quotes and keeps
// at most MaxQueryWords words.
func CleanResponse(text string) string {
	text = strings.TrimSpace(text)
	for _, pair := range [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}, {"`", "`"}} {
		if len(text) >= len(pair[0])+len(pair[1]) &&
			strings.HasPrefix(text, pair[0]) && strings.HasSuffix(text, pair[1]) {
			text = strings.TrimSpace(text[len(pair[0]) : len(text)-len(pair[1])])
		}
	}

	words := strings.Fields(text)
	if len(words) > MaxQueryWords {
		words = words[:MaxQueryWords]
	}
	return strings.Join(words, " ")
}
