package search

import (
	"strings"

	"github.com/blevesearch/bleve"
	"github.com/pkg/errors"

	"github.com/kamusis/skillbase/internal/corpus"
)

// FullText is an in-memory bleve index over document bodies.
type FullText struct {
	index bleve.Index
	store *corpus.Store
}

type fullTextDoc struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Body        string `json:"body"`
}

// NewFullText indexes every document of store.
func NewFullText(store *corpus.Store) (*FullText, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create full-text index")
	}

	batch := idx.NewBatch()
	var indexErr error
	store.Each(func(_ int, d *corpus.Document) bool {
		indexErr = batch.Index(d.ID, fullTextDoc{
			Title:       d.Title,
			Description: d.Description,
			Tags:        strings.Join(d.Tags, " "),
			Body:        d.Body,
		})
		return indexErr == nil
	})
	if indexErr != nil {
		_ = idx.Close()
		return nil, errors.Wrap(indexErr, "failed to index document")
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, errors.Wrap(err, "failed to build full-text index")
	}
	return &FullText{index: idx, store: store}, nil
}

// Search runs a match query over titles, descriptions, tags and bodies.
// limit <= 0 returns every hit.
func (f *FullText) Search(query string, limit int) ([]Result, error) {
	out := []Result{}
	query = strings.TrimSpace(query)
	if query == "" || f.store.Len() == 0 {
		return out, nil
	}
	size := limit
	if size <= 0 || size > f.store.Len() {
		size = f.store.Len()
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), size, 0, false)
	res, err := f.index.Search(req)
	if err != nil {
		return nil, errors.Wrapf(err, "full-text search for %q failed", query)
	}
	for _, h := range res.Hits {
		d, err := f.store.Get(h.ID)
		if err != nil {
			continue
		}
		pos, _ := f.store.Position(h.ID)
		out = append(out, Result{Document: d, Score: h.Score, Why: WhyFullText, Position: pos})
	}
	SortResults(out)
	return out, nil
}

// Close releases the index.
func (f *FullText) Close() error {
	return f.index.Close()
}
