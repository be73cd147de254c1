package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kamusis/skillbase/internal/config"
	"github.com/kamusis/skillbase/internal/kb"
	"github.com/kamusis/skillbase/internal/reload"
	"github.com/kamusis/skillbase/internal/server"
)

var (
	flagServeHost  string
	flagServePort  int
	flagServeWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the knowledge base over HTTP",
	Long: `Start a read-only JSON API over the knowledge base:

  GET /health
  GET /api/documents?offset=&limit=
  GET /api/documents/{id}
  GET /api/route?q=&limit=
  GET /api/search?q=&limit=
  GET /api/tags

With --watch, the corpus roots are watched and the knowledge base is rebuilt
after every change. Requests in flight keep the version they started with.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeHost, "host", "", "Listen address (default: server.listen from config)")
	serveCmd.Flags().IntVarP(&flagServePort, "port", "p", 0, "Listen port (default: server.port from config)")
	serveCmd.Flags().BoolVarP(&flagServeWatch, "watch", "w", false, "Rebuild when files under the corpus roots change")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, holder, err := openHolder(ctx, flagServeWatch)
	if err != nil {
		return err
	}
	defer holder.Current().Close()

	sc := &server.Config{Host: cfg.Server.Listen, Port: cfg.Server.Port}
	if flagServeHost != "" {
		sc.Host = flagServeHost
	}
	if flagServePort != 0 {
		sc.Port = flagServePort
	}
	srv, err := server.New(holder, sc)
	if err != nil {
		return err
	}

	printInfo("", fmt.Sprintf("serving %d document(s) on http://%s", holder.Current().Store.Len(), sc.Addr()))
	return runWithWatcher(ctx, cfg, holder, flagServeWatch, srv.Start)
}

// openHolder opens the knowledge base and wraps it for hot swapping.
func openHolder(ctx context.Context, watch bool) (*config.Config, *reload.Holder, error) {
	if watch && flagSnapshot {
		return nil, nil, fmt.Errorf("--watch rebuilds from the corpus roots and cannot be combined with --snapshot")
	}
	cfg, b, err := openBase(ctx)
	if err != nil {
		return nil, nil, err
	}
	return cfg, reload.NewHolder(b), nil
}

// runWithWatcher runs fn and, when watch is set, a corpus watcher next to it.
// Both stop when ctx is done, when fn returns or when either fails.
func runWithWatcher(ctx context.Context, cfg *config.Config, holder *reload.Holder, watch bool, fn func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	if watch {
		w := reload.NewWatcher(holder, corpusBuilder(cfg), reload.WatcherOptions{Roots: cfg.CorpusRoots})
		g.Go(func() error { return w.Run(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return fn(gctx)
	})
	return g.Wait()
}

// corpusBuilder rebuilds the knowledge base from the corpus roots. A corpus
// that has become empty is a failed rebuild, so the previous base stays.
func corpusBuilder(cfg *config.Config) reload.BuildFunc {
	opts := baseOptions(cfg, false)
	return func(ctx context.Context) (*kb.Base, error) {
		b, err := kb.Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		if err := requireDocuments(cfg, b.Store.Len()); err != nil {
			b.Close()
			return nil, err
		}
		return b, nil
	}
}
