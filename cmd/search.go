package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagSearchK    int
	flagSearchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over document bodies",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&flagSearchK, "k", 5, "Number of results to show")
	searchCmd.Flags().BoolVar(&flagSearchJSON, "json", false, "Print JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	_, b, err := openBase(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	query := strings.Join(args, " ")
	results, err := b.Search(query, flagSearchK)
	if err != nil {
		return err
	}
	if flagSearchJSON {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	renderResults(cmd.OutOrStdout(), "skillbase search", query, results)
	return nil
}
