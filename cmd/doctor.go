package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillbase/internal/config"
	"github.com/kamusis/skillbase/internal/corpus"
	"github.com/kamusis/skillbase/internal/kb"
	"github.com/kamusis/skillbase/internal/snapshot"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the configuration, corpus and snapshot",
	Long: `Check that skillbase is configured correctly and that the corpus loads.
Run this command when a query returns nothing you expected, or before filing a
bug report.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.AddCommand(doctorFixCmd)
	rootCmd.AddCommand(doctorCmd)
}

var doctorFixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Automatically fix detected issues",
	Long: `Fix detected issues in the corpus.

Currently fixes:
  - Unresolved import conflicts: deletes all .conflict-* files from every corpus root

Run 'skillbase doctor' first to see what will be fixed.`,
	Args: cobra.NoArgs,
	RunE: runDoctorFix,
}

func runDoctorFix(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	printSection("skillbase doctor fix")

	// ── Fix: delete all .conflict-* files ─────────────────────────────────────
	fmt.Println("\n[ Unresolved conflicts ]")
	var total, failed int
	for _, root := range cfg.CorpusRoots {
		for _, rel := range findConflictFiles(root) {
			total++
			full := filepath.Join(root, rel)
			if err := os.Remove(full); err != nil {
				printErr("", fmt.Sprintf("cannot delete %s: %v", full, err))
				failed++
			} else {
				printOK("", fmt.Sprintf("deleted %s", full))
			}
		}
	}
	if total == 0 {
		printOK("", "no conflict files found — nothing to fix")
		return nil
	}

	fmt.Println()
	if failed > 0 {
		return fmt.Errorf("%d file(s) could not be deleted", failed)
	}
	fmt.Printf("  %s  %d conflict file(s) removed. Run 'skillbase index' to refresh the snapshot.\n", iconOK, total)
	return nil
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	allOK := true
	failD := func(format string, args ...any) {
		printErr("", fmt.Sprintf(format, args...))
		allOK = false
	}

	printSection("skillbase doctor")
	fmt.Println()

	// ── Check 1: config file exists ───────────────────────────────────────────
	fmt.Println("[ Config file ]")
	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath, _ = config.ConfigPath()
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		printWarn("", fmt.Sprintf("%s not found — using defaults (run 'skillbase init' to create it)", cfgPath))
	} else {
		printOK("", fmt.Sprintf("found: %s", cfgPath))
	}
	fmt.Println()

	// ── Check 2: config is valid ──────────────────────────────────────────────
	fmt.Println("[ skillbase.yaml ]")
	cfg, loadErr := loadConfig()
	if loadErr != nil {
		failD("cannot load config: %v", loadErr)
	} else {
		printOK("", fmt.Sprintf("valid — %d corpus root(s), %d exclude pattern(s)", len(cfg.CorpusRoots), len(cfg.Excludes)))
	}
	fmt.Println()

	if loadErr != nil {
		for _, section := range []string{"Corpus roots", "Corpus", "Unresolved conflicts", "Snapshot"} {
			fmt.Printf("[ %s ]\n", section)
			printSkip("", "skipped (skillbase.yaml not loaded)")
			fmt.Println()
		}
		return doctorSummary(false)
	}

	// ── Check 3: corpus roots exist ───────────────────────────────────────────
	fmt.Println("[ Corpus roots ]")
	for _, root := range cfg.CorpusRoots {
		st, err := os.Stat(root)
		switch {
		case os.IsNotExist(err):
			printMiss("", fmt.Sprintf("%s does not exist", root))
			allOK = false
		case err != nil:
			failD("%s: %v", root, err)
		case !st.IsDir():
			failD("%s is not a directory", root)
		default:
			printOK("", root)
		}
	}
	fmt.Println()

	// ── Check 4: corpus loads ─────────────────────────────────────────────────
	fmt.Println("[ Corpus ]")
	opts := baseOptions(cfg, false)
	store, err := corpus.Load(cmd.Context(), opts.Load)
	if err != nil {
		failD("cannot load corpus: %v", err)
	} else if b, err := kb.New(store); err != nil {
		failD("cannot index corpus: %v", err)
	} else {
		skills := countSkills(store.List())
		if store.Len() == 0 {
			printWarn("", "no documents found — add skills with 'skillbase import <dir>'")
			allOK = false
		} else {
			printOK("", fmt.Sprintf("%d document(s) across %d skill(s), %d tag(s)", store.Len(), skills, b.Topics.Len()))
		}
		b.Close()
	}
	fmt.Println()

	// ── Check 5: unresolved import conflicts ──────────────────────────────────
	fmt.Println("[ Unresolved conflicts ]")
	var conflicts []string
	for _, root := range cfg.CorpusRoots {
		for _, rel := range findConflictFiles(root) {
			conflicts = append(conflicts, filepath.Join(root, rel))
		}
	}
	if len(conflicts) == 0 {
		printOK("", "no unresolved conflict files found")
	} else {
		for _, c := range conflicts {
			printWarn("", c)
		}
		fmt.Printf("\n  %s  %d unresolved conflict file(s) found.\n", iconWarn, len(conflicts))
		fmt.Println("     Review and delete the .conflict-* files you no longer need,")
		fmt.Println("     or run 'skillbase doctor fix' to delete all of them.")
		allOK = false
	}
	fmt.Println()

	// ── Check 6: snapshot freshness ───────────────────────────────────────────
	fmt.Println("[ Snapshot ]")
	if store == nil {
		printSkip("", "skipped (corpus not loaded)")
	} else if fresh, err := snapshot.Fresh(cfg.SnapshotDir, store); err != nil {
		printWarn("", fmt.Sprintf("cannot read snapshot: %v", err))
	} else if !fresh {
		printSkip("", fmt.Sprintf("stale or missing at %s (run 'skillbase index' before using --snapshot)", cfg.SnapshotDir))
	} else {
		printOK("", fmt.Sprintf("up to date: %s", cfg.SnapshotDir))
	}
	fmt.Println()

	return doctorSummary(allOK)
}

func doctorSummary(allOK bool) error {
	fmt.Println("===================")
	if allOK {
		fmt.Printf("%s  All checks passed. skillbase is ready to use.\n", iconOK)
		return nil
	}
	fmt.Fprintf(os.Stderr, "%s  One or more checks failed. See details above.\n", iconErr)
	return fmt.Errorf("doctor found issues")
}

func countSkills(docs []corpus.Document) int {
	seen := make(map[string]struct{})
	for _, d := range docs {
		seen[d.Skill] = struct{}{}
	}
	return len(seen)
}

// findConflictFiles walks root and returns relative paths of all files
// whose name contains ".conflict-" — these are leftover from skillbase import.
func findConflictFiles(root string) []string {
	var found []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		// Match files like: guide.conflict-claude-skills.md
		if strings.Contains(d.Name(), ".conflict-") {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			found = append(found, rel)
		}
		return nil
	})
	return found
}
