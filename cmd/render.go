package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/kamusis/skillbase/internal/corpus"
	"github.com/kamusis/skillbase/internal/search"
)

const maxDescriptionRunes = 80

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// renderResults prints ranked results grouped by skill, keeping rank order
// inside each group and ordering groups by their best hit.
func renderResults(w io.Writer, title, query string, results []search.Result) {
	fmt.Fprintf(w, "\n%s %q\n\n", title, query)
	fmt.Fprintf(w, "Results (%d found):\n", len(results))
	if len(results) == 0 {
		return
	}

	grouped := make(map[string][]search.Result)
	var groupOrder []string
	for _, r := range results {
		g := r.Document.Skill
		if g == "" {
			g = "(unknown)"
		}
		if _, ok := grouped[g]; !ok {
			groupOrder = append(groupOrder, g)
		}
		grouped[g] = append(grouped[g], r)
	}

	rank := 0
	for _, g := range groupOrder {
		items := grouped[g]
		fmt.Fprintf(w, "\n%s (%d):\n", g, len(items))

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, r := range items {
			rank++
			score := fmt.Sprintf("[%s]", r.Why)
			if r.Why == search.WhyFullText {
				score = fmt.Sprintf("[%.3f]", r.Score)
			}
			fmt.Fprintf(tw, "  %d.\t%s\t%s\n", rank, score, r.Document.ID)
			if desc := describe(r.Document); desc != "" {
				fmt.Fprintf(tw, "  - %s\n", desc)
			}
		}
		_ = tw.Flush()
	}
}

// renderDocumentList prints one line per document.
func renderDocumentList(w io.Writer, docs []corpus.Document) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tTITLE")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Kind, d.Title)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d document(s)\n", len(docs))
}

// renderDocument prints a document header followed by its body.
func renderDocument(w io.Writer, d corpus.Document, withBody bool) {
	fmt.Fprintf(w, "ID:          %s\n", d.ID)
	fmt.Fprintf(w, "Kind:        %s\n", d.Kind)
	fmt.Fprintf(w, "Skill:       %s\n", d.Skill)
	fmt.Fprintf(w, "Title:       %s\n", d.Title)
	if d.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", d.Description)
	}
	fmt.Fprintf(w, "Tags:        %s\n", strings.Join(d.Tags, ", "))
	fmt.Fprintf(w, "Path:        %s\n", d.Path)
	if withBody {
		fmt.Fprintln(w)
		fmt.Fprint(w, d.Body)
		if !strings.HasSuffix(d.Body, "\n") {
			fmt.Fprintln(w)
		}
	}
}

// renderTags prints every tag with the number of documents declaring it,
// most used first.
func renderTags(w io.Writer, tags map[string][]string) {
	names := make([]string, 0, len(tags))
	for t := range tags {
		names = append(names, t)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(tags[names[i]]) != len(tags[names[j]]) {
			return len(tags[names[i]]) > len(tags[names[j]])
		}
		return names[i] < names[j]
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tDOCS")
	for _, t := range names {
		fmt.Fprintf(tw, "%s\t%d\n", t, len(tags[t]))
	}
	_ = tw.Flush()
}

func describe(d corpus.Document) string {
	s := strings.TrimSpace(d.Description)
	if utf8.RuneCountInString(s) <= maxDescriptionRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxDescriptionRunes-1]) + "…"
}
