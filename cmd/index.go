package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillbase/internal/corpus"
	"github.com/kamusis/skillbase/internal/snapshot"
)

var (
	flagIndexCheck   bool
	flagIndexOut     string
	flagIndexTimeout time.Duration
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build a snapshot of the corpus",
	Long: `Load every corpus root and write the documents to the snapshot directory.

The snapshot is written to a temporary directory and swapped into place, so a
reader never observes a half-written snapshot. Commands started with
--snapshot load it instead of re-parsing the corpus.

With --check, nothing is written: the command reports whether the snapshot
still matches the corpus and fails when it is stale.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagIndexCheck, "check", false, "Only report whether the snapshot is up to date")
	indexCmd.Flags().StringVarP(&flagIndexOut, "out", "o", "", "Snapshot directory (default: snapshot_dir from config)")
	indexCmd.Flags().DurationVar(&flagIndexTimeout, "lock-timeout", 30*time.Second, "How long to wait for a concurrent build")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cfg.SnapshotDir
	if flagIndexOut != "" {
		out = flagIndexOut
	}

	opts := baseOptions(cfg, false)
	store, err := corpus.Load(cmd.Context(), opts.Load)
	if err != nil {
		return err
	}
	if err := requireDocuments(cfg, store.Len()); err != nil {
		return err
	}

	if flagIndexCheck {
		fresh, err := snapshot.Fresh(out, store)
		if err != nil {
			return err
		}
		if !fresh {
			printWarn("", fmt.Sprintf("snapshot at %s is stale or missing — run 'skillbase index'", out))
			return fmt.Errorf("snapshot is not up to date")
		}
		printOK("", fmt.Sprintf("snapshot at %s is up to date (%d document(s))", out, store.Len()))
		return nil
	}

	m, err := snapshot.Build(cmd.Context(), store, snapshot.BuildOptions{
		OutDir:      out,
		Roots:       cfg.CorpusRoots,
		LockTimeout: flagIndexTimeout,
	})
	if err != nil {
		return err
	}
	printOK("", fmt.Sprintf("snapshot written: %s", out))
	printInfo("", fmt.Sprintf("%d document(s), checksum %s", m.DocumentCount, shortChecksum(m.CorpusChecksum)))
	return nil
}

func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
