package search

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/kamusis/skillbase/internal/corpus"
)

// TopicIndex maps each normalized tag to the ids of the documents declaring
// it, in corpus order. Every id it holds exists in the store it was built from.
type TopicIndex struct {
	byTag map[string][]string
	tags  []string
}

// NewTopicIndex builds the index from the tags of every document in store.
func NewTopicIndex(store *corpus.Store) (*TopicIndex, error) {
	ix := &TopicIndex{byTag: make(map[string][]string)}
	store.Each(func(_ int, d *corpus.Document) bool {
		for _, t := range d.Tags {
			ix.byTag[t] = append(ix.byTag[t], d.ID)
		}
		return true
	})
	ix.tags = make([]string, 0, len(ix.byTag))
	for t := range ix.byTag {
		ix.tags = append(ix.tags, t)
	}
	sort.Strings(ix.tags)

	if err := ix.Validate(store); err != nil {
		return nil, err
	}
	return ix, nil
}

// Validate checks that every referenced id exists in store and that each
// tag's ids are listed in corpus order.
func (ix *TopicIndex) Validate(store *corpus.Store) error {
	for _, t := range ix.tags {
		last := -1
		for _, id := range ix.byTag[t] {
			pos, ok := store.Position(id)
			if !ok {
				return errors.Errorf("tag %q refers to unknown document %q", t, id)
			}
			if pos <= last {
				return errors.Errorf("tag %q lists %q out of corpus order", t, id)
			}
			last = pos
		}
	}
	return nil
}

// Lookup returns the ids declaring tag. The tag is normalized first.
func (ix *TopicIndex) Lookup(tag string) []string {
	return ix.lookupNormalized(corpus.Normalize(tag))
}

// lookupNormalized is Lookup for a tag that is already normalized. Case
// folding is not idempotent for every script, so a normalized query must not
// be normalized again.
func (ix *TopicIndex) lookupNormalized(tag string) []string {
	return append([]string(nil), ix.byTag[tag]...)
}

// Tags returns every tag in lexical order.
func (ix *TopicIndex) Tags() []string {
	return append([]string(nil), ix.tags...)
}

// Map returns a copy of the whole tag to ids mapping.
func (ix *TopicIndex) Map() map[string][]string {
	out := make(map[string][]string, len(ix.byTag))
	for t, ids := range ix.byTag {
		out[t] = append([]string(nil), ids...)
	}
	return out
}

// Len returns the number of distinct tags.
func (ix *TopicIndex) Len() int { return len(ix.tags) }
