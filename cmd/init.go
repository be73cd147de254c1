package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillbase/internal/config"
)

var flagInitImport []string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create ~/.skillbase with a default config and corpus root",
	Long: `Initialize skillbase at ~/.skillbase/ (or $SKILLBASE_HOME).

Writes skillbase.yaml and a commented .env template when they are missing,
creates every configured corpus root, and optionally imports existing skill
directories:

  skillbase init
  skillbase init --import ~/.claude/skills --import ./team-skills`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringArrayVar(&flagInitImport, "import", nil, "Skill directory to import into the first corpus root (repeatable)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	// ── 1. Resolve ~/.skillbase directory ─────────────────────────────────────
	baseDir, err := config.BaseDir()
	if err != nil {
		return err
	}
	cfgPath := flagConfig
	if cfgPath == "" {
		if cfgPath, err = config.ConfigPath(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", baseDir, err)
	}
	printOK("", fmt.Sprintf("skillbase directory ready: %s", baseDir))

	// ── 2. Write skillbase.yaml if missing ────────────────────────────────────
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		applyFlagOverrides(cfg, flagRoots)
		if err := config.Save(cfg, cfgPath); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("Config written: %s", cfgPath))
	} else {
		printSkip("", fmt.Sprintf("Config already exists: %s", cfgPath))
	}

	// ── 3. .env template ──────────────────────────────────────────────────────
	if err := config.EnsureDotEnvTemplate(); err != nil {
		return err
	}
	printOK("", "Environment template ready: .env")

	// ── 4. Corpus roots ───────────────────────────────────────────────────────
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	for _, root := range cfg.CorpusRoots {
		if _, err := os.Stat(root); err == nil {
			printSkip("", fmt.Sprintf("Corpus root exists: %s", root))
			continue
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return fmt.Errorf("cannot create corpus root %s: %w", root, err)
		}
		printOK("", fmt.Sprintf("Corpus root created: %s", root))
	}

	// ── 5. Import existing skills ─────────────────────────────────────────────
	if len(flagInitImport) > 0 {
		if err := importSkills(cmd.Context(), cfg, flagInitImport, ""); err != nil {
			return err
		}
	}

	fmt.Println("\n✓  skillbase init complete. Run 'skillbase doctor' to verify your corpus.")
	return nil
}
