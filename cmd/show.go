package cmd

import (
	"github.com/spf13/cobra"
)

var (
	flagShowJSON bool
	flagShowMeta bool
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a document by id",
	Example: `  skillbase show fastapi-guide/SKILL.md
  skillbase show fastapi-guide/references/routing.md --meta`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&flagShowJSON, "json", false, "Print JSON")
	showCmd.Flags().BoolVar(&flagShowMeta, "meta", false, "Print only the metadata header")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	_, b, err := openBase(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	d, err := b.Get(args[0])
	if err != nil {
		return err
	}
	if flagShowJSON {
		return writeJSON(cmd.OutOrStdout(), d)
	}
	renderDocument(cmd.OutOrStdout(), d, !flagShowMeta)
	return nil
}
