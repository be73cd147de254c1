package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kamusis/skillbase/internal/corpus"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <skill-name>",
	Short: "Show metadata and documents of a skill",
	Long: `Display a formatted summary of a skill in the corpus, including its
description, triggers, declared dependencies and every document it contributes
with the tags routing will match.

If no skill has exactly that name, every skill whose name contains it is shown.

Example:
  skillbase inspect pytest-guide
  skillbase inspect docker`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

// skillMeta holds the SKILL.md frontmatter fields shown by inspect.
// Unknown fields are ignored.
type skillMeta struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	License      string   `yaml:"license"`
	AllowedTools []string `yaml:"allowed-tools"`

	// Triggers: list of {pattern, description} maps OR bare strings.
	Triggers yaml.Node `yaml:"triggers"`

	Requires struct {
		Bins []string `yaml:"bins"`
		Envs []string `yaml:"envs"`
	} `yaml:"requires"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	_, b, err := openBase(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	groups := matchSkills(b.Store.List(), args[0])
	if len(groups) == 0 {
		return fmt.Errorf("skill %q not found.\nTip: run 'skillbase list --kind skill' to see available skills.", args[0])
	}

	w := cmd.OutOrStdout()
	for i, docs := range groups {
		if i > 0 {
			fmt.Fprintln(w, strings.Repeat("─", 50))
		}
		printInspect(w, docs)
	}
	return nil
}

// matchSkills groups docs by skill and returns the groups for arg: the exact
// skill when one exists, otherwise every skill whose name contains arg
// (case-insensitive). Groups keep corpus order.
func matchSkills(docs []corpus.Document, arg string) [][]corpus.Document {
	bySkill := make(map[string][]corpus.Document)
	var order []string
	for _, d := range docs {
		if _, ok := bySkill[d.Skill]; !ok {
			order = append(order, d.Skill)
		}
		bySkill[d.Skill] = append(bySkill[d.Skill], d)
	}

	if exact, ok := bySkill[arg]; ok {
		return [][]corpus.Document{exact}
	}
	lower := strings.ToLower(arg)
	var out [][]corpus.Document
	for _, s := range order {
		if strings.Contains(strings.ToLower(s), lower) {
			out = append(out, bySkill[s])
		}
	}
	return out
}

// printInspect displays one skill from its documents.
func printInspect(w io.Writer, docs []corpus.Document) {
	head, isSkill := skillHeader(docs)
	var meta skillMeta
	if isSkill {
		meta, _ = skillMetaFrom(head.Meta)
	}

	name := head.Skill
	if meta.Name != "" {
		name = meta.Name
	}

	fmt.Fprintf(w, "📦 Skill: %s\n", name)
	if meta.Version != "" {
		fmt.Fprintf(w, "Version:  %s\n", meta.Version)
	}
	if !isSkill {
		fmt.Fprintf(w, "  (no SKILL.md loaded)\n")
	} else if head.Description != "" {
		desc := strings.ReplaceAll(strings.TrimSpace(head.Description), "\n", " ")
		fmt.Fprintf(w, "Summary:  %s\n", desc)
	}
	if meta.License != "" {
		fmt.Fprintf(w, "License:  %s\n", meta.License)
	}

	if triggers := extractTriggers(meta.Triggers); len(triggers) > 0 {
		fmt.Fprintln(w, "\nTriggers:")
		for _, t := range triggers {
			fmt.Fprintf(w, "  - %s\n", t)
		}
	}
	if len(meta.AllowedTools) > 0 {
		fmt.Fprintf(w, "\nAllowed Tools: %s\n", strings.Join(meta.AllowedTools, ", "))
	}

	counts := make(map[string]int)
	fmt.Fprintln(w, "\nDocuments:")
	for _, d := range docs {
		counts[d.Kind]++
		fmt.Fprintf(w, "  - %s (%s)\n", d.ID, d.Kind)
		fmt.Fprintf(w, "      tags: %s\n", strings.Join(d.Tags, ", "))
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, fmt.Sprintf("%d %s", counts[k], k))
	}
	sort.Strings(kinds)
	fmt.Fprintf(w, "  (%s)\n", strings.Join(kinds, ", "))

	if len(meta.Requires.Bins) > 0 || len(meta.Requires.Envs) > 0 {
		fmt.Fprintln(w, "\nDependencies (declared):")
		for _, b := range meta.Requires.Bins {
			status := "✓ Found"
			if _, err := exec.LookPath(b); err != nil {
				status = "✗ Not found"
			}
			fmt.Fprintf(w, "  bin: %-20s %s\n", b, status)
		}
		for _, e := range meta.Requires.Envs {
			status := "✓ Set"
			if os.Getenv(e) == "" {
				status = "✗ Not set"
			}
			fmt.Fprintf(w, "  env: %-20s %s\n", e, status)
		}
	}
	if isSkill {
		fmt.Fprintf(w, "\nPath: %s\n", head.Path)
	}
}

// skillMetaFrom decodes the frontmatter kept on a document. It returns false
// when the document has none or it does not fit skillMeta.
func skillMetaFrom(m map[string]any) (skillMeta, bool) {
	if len(m) == 0 {
		return skillMeta{}, false
	}
	raw, err := yaml.Marshal(m)
	if err != nil {
		return skillMeta{}, false
	}
	var meta skillMeta
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return skillMeta{}, false
	}
	return meta, true
}

// skillHeader returns the SKILL.md document of one skill's documents, or the
// first document when SKILL.md was not loaded.
func skillHeader(docs []corpus.Document) (corpus.Document, bool) {
	for _, d := range docs {
		if d.Kind == corpus.KindSkill {
			return d, true
		}
	}
	return docs[0], false
}

// extractTriggers normalises the triggers YAML node into plain strings.
// Supports both:
//   - bare string list: ["foo", "bar"]
//   - map list: [{pattern: "foo", description: "bar"}, ...]
func extractTriggers(node yaml.Node) []string {
	if node.Kind == 0 {
		return nil
	}
	var out []string
	switch node.Kind {
	case yaml.SequenceNode:
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				out = append(out, item.Value)
			case yaml.MappingNode:
				for i := 0; i+1 < len(item.Content); i += 2 {
					if item.Content[i].Value == "pattern" {
						out = append(out, item.Content[i+1].Value)
					}
				}
			}
		}
	case yaml.ScalarNode:
		out = append(out, node.Value)
	}
	return out
}
