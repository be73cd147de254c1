package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagRouteLimit int
	flagRouteJSON  bool
)

var routeCmd = &cobra.Command{
	Use:   "route <query>",
	Short: "Find the documents for a topic",
	Long: `Route a topic query to documents. Documents tagged with exactly the query
come first, followed by documents whose tags, title, description or id
contain every query word. Ties keep corpus order.`,
	Example: `  skillbase route testing
  skillbase route path params -n 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoute,
}

func init() {
	routeCmd.Flags().IntVarP(&flagRouteLimit, "limit", "n", 0, "Maximum number of results (0 = all)")
	routeCmd.Flags().BoolVar(&flagRouteJSON, "json", false, "Print JSON")
	rootCmd.AddCommand(routeCmd)
}

func runRoute(cmd *cobra.Command, args []string) error {
	_, b, err := openBase(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	query := strings.Join(args, " ")
	results := b.Route(query, flagRouteLimit)
	if flagRouteJSON {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	renderResults(cmd.OutOrStdout(), "skillbase route", query, results)
	return nil
}
