package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillbase/internal/config"
	"github.com/kamusis/skillbase/internal/corpus"
	"github.com/kamusis/skillbase/internal/kb"
	"github.com/kamusis/skillbase/internal/logger"
)

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
	flagRoots     []string
	flagSnapshot  bool
)

var rootCmd = &cobra.Command{
	Use:          "skillbase",
	Short:        "skillbase — a searchable knowledge base of skill guides",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `skillbase loads SKILL.md guides and their reference documents from one or
more corpus roots and answers topic queries over them, on the command line,
over HTTP or as an MCP server.`,
	PersistentPreRunE: setupLogging,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default ~/.skillbase/skillbase.yaml)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: text or json")
	pf.StringArrayVar(&flagRoots, "root", nil, "Corpus root (repeatable; overrides corpus_roots)")
	pf.BoolVar(&flagSnapshot, "snapshot", false, "Load documents from the snapshot instead of the corpus roots")
}

// Execute is called by main.go.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// setupLogging applies --log-level/--log-format, falling back to the config
// file. A config that fails to load is reported later by the command itself.
func setupLogging(_ *cobra.Command, _ []string) error {
	level, format := flagLogLevel, flagLogFormat
	if cfg, err := config.Load(flagConfig); err == nil {
		if level == "" {
			level = cfg.Log.Level
		}
		if format == "" {
			format = cfg.Log.Format
		}
	}
	if level != "" {
		if err := logger.SetLevel(level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	if format != "" {
		logger.SetFormat(format)
	}
	return nil
}

// loadConfig loads the config and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w\nRun 'skillbase init' first.", err)
	}
	applyFlagOverrides(cfg, flagRoots)
	return cfg, nil
}

func applyFlagOverrides(cfg *config.Config, roots []string) {
	if len(roots) == 0 {
		return
	}
	cfg.CorpusRoots = make([]string, 0, len(roots))
	for _, r := range roots {
		if p, err := config.ExpandPath(r); err == nil {
			r = p
		}
		cfg.CorpusRoots = append(cfg.CorpusRoots, r)
	}
}

// baseOptions translates the config into knowledge-base load options.
func baseOptions(cfg *config.Config, fromSnapshot bool) kb.Options {
	return kb.Options{
		Load: corpus.LoadOptions{
			Roots:         cfg.CorpusRoots,
			Excludes:      cfg.Excludes,
			IncludeAssets: cfg.IncludeAssets,
			Parallelism:   cfg.Parallelism,
		},
		SnapshotDir:  cfg.SnapshotDir,
		FromSnapshot: fromSnapshot,
	}
}

// openBase loads the knowledge base the way the global flags ask for.
func openBase(ctx context.Context) (*config.Config, *kb.Base, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	b, err := kb.Open(ctx, baseOptions(cfg, flagSnapshot))
	if err != nil {
		return nil, nil, err
	}
	if err := requireDocuments(cfg, b.Store.Len()); err != nil {
		b.Close()
		return nil, nil, err
	}
	return cfg, b, nil
}

// requireDocuments fails when a load produced no documents at all.
func requireDocuments(cfg *config.Config, n int) error {
	if n > 0 {
		return nil
	}
	return fmt.Errorf("no documents found in %s\nRun 'skillbase init' or 'skillbase import <dir>' to add skills.",
		strings.Join(cfg.CorpusRoots, ", "))
}
