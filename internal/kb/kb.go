// Package kb bundles everything built from one corpus load: the document
// store, its topic index, the router and the full-text index.
package kb

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/kamusis/skillbase/internal/corpus"
	"github.com/kamusis/skillbase/internal/logger"
	"github.com/kamusis/skillbase/internal/search"
	"github.com/kamusis/skillbase/internal/snapshot"
)

// Options selects where a Base is loaded from.
type Options struct {
	Load corpus.LoadOptions
	// SnapshotDir, when FromSnapshot is set, is read instead of the roots.
	SnapshotDir  string
	FromSnapshot bool
}

// Source values reported by Base.Source.
const (
	SourceCorpus   = "corpus"
	SourceSnapshot = "snapshot"
)

// Base is an immutable knowledge base. A reload builds a new Base rather
// than modifying an existing one.
type Base struct {
	Store    *corpus.Store
	Topics   *search.TopicIndex
	Router   *search.Router
	FullText *search.FullText

	Source   string
	LoadedAt time.Time
}

// Open loads documents per opts and builds the indexes over them.
func Open(ctx context.Context, opts Options) (*Base, error) {
	log := logger.G(ctx)

	var (
		store  *corpus.Store
		source string
	)
	if opts.FromSnapshot {
		if opts.SnapshotDir == "" {
			return nil, errors.New("snapshot dir is required")
		}
		snap, err := snapshot.Load(opts.SnapshotDir)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load snapshot")
		}
		store, source = snap.Store, SourceSnapshot
	} else {
		s, err := corpus.Load(ctx, opts.Load)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load corpus")
		}
		store, source = s, SourceCorpus
	}

	b, err := New(store)
	if err != nil {
		return nil, err
	}
	b.Source = source
	log.WithField("source", source).
		WithField("documents", store.Len()).
		WithField("tags", b.Topics.Len()).
		Info("knowledge base ready")
	return b, nil
}

// New builds a Base over an already loaded store.
func New(store *corpus.Store) (*Base, error) {
	topics, err := search.NewTopicIndex(store)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build topic index")
	}
	ft, err := search.NewFullText(store)
	if err != nil {
		return nil, err
	}
	return &Base{
		Store:    store,
		Topics:   topics,
		Router:   search.NewRouter(store, topics),
		FullText: ft,
		Source:   SourceCorpus,
		LoadedAt: time.Now(),
	}, nil
}

// Get returns the document with id, or a *corpus.NotFoundError.
func (b *Base) Get(id string) (corpus.Document, error) {
	return b.Store.Get(id)
}

// Route forwards to the router.
func (b *Base) Route(query string, limit int) []search.Result {
	return b.Router.RouteN(query, limit)
}

// Search runs a full-text query.
func (b *Base) Search(query string, limit int) ([]search.Result, error) {
	return b.FullText.Search(query, limit)
}

// Close releases the full-text index.
func (b *Base) Close() error {
	if b == nil || b.FullText == nil {
		return nil
	}
	return b.FullText.Close()
}
