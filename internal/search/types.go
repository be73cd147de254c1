// Package search routes free-text queries to corpus documents: exact tag
// matches through the topic index first, then partial keyword matches, plus an
// optional full-text search over document bodies.
package search

import "github.com/kamusis/skillbase/internal/corpus"

// Match reasons reported in Result.Why.
const (
	WhyTag      = "tag"
	WhyKeyword  = "keyword"
	WhyFullText = "fulltext"
)

const (
	scoreTag     = 2
	scoreKeyword = 1
)

// Result is one matched document.
type Result struct {
	Document corpus.Document `json:"document"`
	Score    float64         `json:"score"`
	Why      string          `json:"why"`
	// Position is the document's place in corpus load order.
	Position int `json:"position"`
}
