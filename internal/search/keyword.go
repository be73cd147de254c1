package search

import (
	"strings"

	"github.com/kamusis/skillbase/internal/corpus"
)

// keywordBlob is the normalized text a partial keyword match runs against.
func keywordBlob(d *corpus.Document) string {
	parts := make([]string, 0, len(d.Tags)+3)
	parts = append(parts, d.Tags...)
	parts = append(parts, corpus.Normalize(d.Title), corpus.Normalize(d.Description), corpus.Normalize(d.ID))
	return strings.Join(parts, "\n")
}

// tokenize splits an already normalized query into tokens, trimming the
// punctuation around each word.
func tokenize(q string) []string {
	parts := strings.Fields(q)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = corpus.TrimPunctuation(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// matchesAll reports whether every token occurs in blob (AND semantics).
func matchesAll(blob string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if !strings.Contains(blob, tok) {
			return false
		}
	}
	return true
}
