package corpus

import (
	"github.com/pkg/errors"
)

// Store is an immutable, ordered set of documents. It is safe for concurrent
// use because nothing is mutated after NewStore returns.
type Store struct {
	docs []Document
	byID map[string]int
}

// NewStore builds a store from docs, preserving their order. Ids must be
// non-empty and unique.
func NewStore(docs []Document) (*Store, error) {
	s := &Store{
		docs: make([]Document, 0, len(docs)),
		byID: make(map[string]int, len(docs)),
	}
	for _, d := range docs {
		if d.ID == "" {
			return nil, errors.New("document with empty id")
		}
		if _, dup := s.byID[d.ID]; dup {
			return nil, errors.Errorf("duplicate document id %q", d.ID)
		}
		s.byID[d.ID] = len(s.docs)
		s.docs = append(s.docs, d.Clone())
	}
	return s, nil
}

// Get returns the document with the given id or a *NotFoundError.
func (s *Store) Get(id string) (Document, error) {
	i, ok := s.byID[id]
	if !ok {
		return Document{}, &NotFoundError{ID: id}
	}
	return s.docs[i].Clone(), nil
}

// List returns every document in load order.
func (s *Store) List() []Document {
	out := make([]Document, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.Clone()
	}
	return out
}

// IDs returns every document id in load order.
func (s *Store) IDs() []string {
	out := make([]string, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.ID
	}
	return out
}

// Len returns the number of documents.
func (s *Store) Len() int { return len(s.docs) }

// Contains reports whether id is known.
func (s *Store) Contains(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Position returns the load-order index of id.
func (s *Store) Position(id string) (int, bool) {
	i, ok := s.byID[id]
	return i, ok
}

// at returns the stored document without copying; callers must not mutate it.
func (s *Store) at(i int) *Document { return &s.docs[i] }

// Each calls fn for every document in load order until fn returns false.
// The document passed to fn is shared with the store and must not be
// modified.
func (s *Store) Each(fn func(pos int, d *Document) bool) {
	for i := range s.docs {
		if !fn(i, s.at(i)) {
			return
		}
	}
}
