package cmd

import (
	"github.com/spf13/cobra"
)

var flagTagsJSON bool

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List every topic tag and how many documents declare it",
	Args:  cobra.NoArgs,
	RunE:  runTags,
}

func init() {
	tagsCmd.Flags().BoolVar(&flagTagsJSON, "json", false, "Print the tag → ids map as JSON")
	rootCmd.AddCommand(tagsCmd)
}

func runTags(cmd *cobra.Command, _ []string) error {
	_, b, err := openBase(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	if flagTagsJSON {
		return writeJSON(cmd.OutOrStdout(), b.Topics.Map())
	}
	renderTags(cmd.OutOrStdout(), b.Topics.Map())
	return nil
}
