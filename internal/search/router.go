package search

import (
	"github.com/kamusis/skillbase/internal/corpus"
)

// Router answers free-text queries against an immutable store. It holds no
// mutable state and may be shared between goroutines.
type Router struct {
	store *corpus.Store
	index *TopicIndex
	blobs []string
}

// NewRouter precomputes the keyword blobs of every document in store.
func NewRouter(store *corpus.Store, index *TopicIndex) *Router {
	r := &Router{
		store: store,
		index: index,
		blobs: make([]string, store.Len()),
	}
	store.Each(func(pos int, d *corpus.Document) bool {
		r.blobs[pos] = keywordBlob(d)
		return true
	})
	return r
}

// Route returns every matching document, most relevant first. Exact tag
// matches rank above partial keyword matches; ties keep corpus order. An
// empty or unmatched query yields an empty slice.
func (r *Router) Route(query string) []Result {
	return r.RouteN(query, 0)
}

// RouteN is Route truncated to limit results; limit <= 0 means no limit.
func (r *Router) RouteN(query string, limit int) []Result {
	out := []Result{}
	q := corpus.Normalize(query)
	if q == "" {
		return out
	}

	seen := make(map[int]bool)
	for _, id := range r.index.lookupNormalized(q) {
		pos, ok := r.store.Position(id)
		if !ok {
			continue
		}
		d, err := r.store.Get(id)
		if err != nil {
			continue
		}
		seen[pos] = true
		out = append(out, Result{Document: d, Score: scoreTag, Why: WhyTag, Position: pos})
	}

	tokens := tokenize(q)
	r.store.Each(func(pos int, d *corpus.Document) bool {
		if seen[pos] || !matchesAll(r.blobs[pos], tokens) {
			return true
		}
		out = append(out, Result{Document: d.Clone(), Score: scoreKeyword, Why: WhyKeyword, Position: pos})
		return true
	})

	SortResults(out)
	return truncate(out, limit)
}
