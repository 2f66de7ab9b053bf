package extract

import (
	"strings"

	"github.com/secmon-lab/mnemo/pkg/domain/types"
)

// fallbackImportance is assigned to keyword-derived concepts. Low enough
// that LLM-extracted concepts rank above them.
const fallbackImportance = 0.3

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"i": true, "you": true, "he": true, "she": true, "it": true, "we": true,
	"they": true, "me": true, "my": true, "your": true, "is": true, "am": true,
	"are": true, "was": true, "were": true, "be": true, "been": true,
	"do": true, "does": true, "did": true, "have": true, "has": true, "had": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "for": true,
	"with": true, "about": true, "that": true, "this": true, "what": true,
	"can": true, "could": true, "would": true, "should": true, "will": true,
	"not": true, "no": true, "yes": true, "so": true, "if": true, "as": true,
	"please": true, "thanks": true, "thank": true, "hi": true, "hello": true,
}

// fallbackConcepts derives a single context concept from the user message
// by keeping its salient words. Used when structured extraction fails so
// the exchange still leaves a trace in memory.
func fallbackConcepts(userMessage string) []Concept {
	var keywords []string
	for _, word := range strings.Fields(userMessage) {
		cleaned := strings.Trim(strings.ToLower(word), ".,!?;:\"'()[]{}")
		if cleaned == "" || len(cleaned) < 3 || stopwords[cleaned] {
			continue
		}
		keywords = append(keywords, cleaned)
	}

	if len(keywords) == 0 {
		return nil
	}

	return []Concept{{
		Content:    "User mentioned: " + strings.Join(keywords, ", "),
		Kind:       types.MemoryKindContext,
		Importance: fallbackImportance,
	}}
}
