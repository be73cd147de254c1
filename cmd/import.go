package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillbase/internal/config"
	"github.com/kamusis/skillbase/internal/importer"
)

var flagImportSource string

var importCmd = &cobra.Command{
	Use:   "import <dir>...",
	Short: "Copy existing skill directories into the first corpus root",
	Long: `Copy skills into the first configured corpus root.

Each <dir> is either a single skill (it contains SKILL.md) or a directory of
skills. Files that already exist with different content are kept side by side
as <name>.conflict-<source><ext>; run 'skillbase doctor' to list them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return importSkills(cmd.Context(), cfg, args, flagImportSource)
	},
}

func init() {
	importCmd.Flags().StringVar(&flagImportSource, "source", "", "Label used in conflict file names (default: base name of <dir>)")
	rootCmd.AddCommand(importCmd)
}

// importSkills imports every dir into the first corpus root and prints a
// grouped report.
func importSkills(ctx context.Context, cfg *config.Config, dirs []string, source string) error {
	dst := cfg.CorpusRoots[0]
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("cannot create corpus root %s: %w", dst, err)
	}

	type importedEntry struct {
		name   string
		result *importer.Result
	}
	var (
		imported       []importedEntry
		notFound       []string
		ignored        []string
		totalConflicts []importer.ConflictPair
	)

	for _, dir := range dirs {
		src, err := config.ExpandPath(dir)
		if err != nil {
			return err
		}
		if st, err := os.Stat(src); err != nil || !st.IsDir() {
			notFound = append(notFound, dir)
			continue
		}
		result, err := importer.Import(ctx, importer.Options{
			Src:      src,
			Dst:      dst,
			Source:   source,
			Excludes: cfg.Excludes,
		})
		if err != nil {
			return fmt.Errorf("import [%s]: %w", dir, err)
		}
		imported = append(imported, importedEntry{name: filepath.Base(filepath.Clean(src)), result: result})
		totalConflicts = append(totalConflicts, result.Conflicts...)
		for _, name := range result.Ignored {
			ignored = append(ignored, filepath.Join(dir, name))
		}
	}

	// ── Print grouped output ───────────────────────────────────────────────────
	printSection("Import Skills")

	if len(imported) > 0 {
		fmt.Println("\n● Imported:")
		for _, e := range imported {
			r := e.result
			printOK(e.name, fmt.Sprintf("%d skill(s) imported, %d skipped, %d conflict(s)  (%d file(s))",
				r.SkillsImported,
				r.SkillsSkipped,
				r.SkillsConflicts,
				r.Imported+r.Skipped))
		}
	}

	if len(ignored) > 0 {
		fmt.Println("\n● No SKILL.md (ignored):")
		for _, p := range ignored {
			printSkip("", p)
		}
	}

	if len(notFound) > 0 {
		fmt.Println("\n● Directory not found:")
		for _, p := range notFound {
			printMiss("", p)
		}
	}

	// ── Post-import conflict report ────────────────────────────────────────────
	if len(totalConflicts) > 0 {
		fmt.Printf("\n%s  %d conflict(s) detected during import.\n", iconWarn, len(totalConflicts))
		fmt.Printf("   All versions have been preserved in %s.\n", dst)
		fmt.Println("   Please review and resolve the following files manually:")
		for _, c := range totalConflicts {
			fmt.Printf("     - %s  ← conflicts with %s\n", c.Conflict, c.Original)
		}
	}

	return nil
}
