package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillbase/internal/corpus"
)

var (
	flagListKind  string
	flagListSkill string
	flagListJSON  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents in corpus order",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&flagListKind, "kind", "", "Only list documents of this kind (skill, reference, asset)")
	listCmd.Flags().StringVar(&flagListSkill, "skill", "", "Only list documents of this skill")
	listCmd.Flags().BoolVar(&flagListJSON, "json", false, "Print JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	switch flagListKind {
	case "", corpus.KindSkill, corpus.KindReference, corpus.KindAsset:
	default:
		return fmt.Errorf("unknown kind %q (want skill, reference or asset)", flagListKind)
	}

	_, b, err := openBase(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	docs := filterDocuments(b.Store.List(), flagListKind, flagListSkill)
	if flagListJSON {
		return writeJSON(cmd.OutOrStdout(), docs)
	}
	renderDocumentList(cmd.OutOrStdout(), docs)
	return nil
}

func filterDocuments(docs []corpus.Document, kind, skill string) []corpus.Document {
	out := make([]corpus.Document, 0, len(docs))
	for _, d := range docs {
		if kind != "" && d.Kind != kind {
			continue
		}
		if skill != "" && d.Skill != skill {
			continue
		}
		out = append(out, d)
	}
	return out
}
