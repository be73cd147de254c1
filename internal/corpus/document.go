// Package corpus loads a skills corpus (SKILL.md files with their references
// and assets) into an immutable, ordered document store.
package corpus

import "sort"

// Document kinds.
const (
	KindSkill     = "skill"
	KindReference = "reference"
	KindAsset     = "asset"
)

// Document is one unit of reference text from the corpus.
type Document struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Skill       string   `json:"skill"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Body        string   `json:"body"`
	Tags        []string `json:"tags"`
	Path        string   `json:"path"`
	Checksum    string   `json:"checksum"`
	// Meta is the Markdown frontmatter with lower-cased keys, holding only
	// JSON-compatible values so it survives a snapshot unchanged.
	Meta map[string]any `json:"meta,omitempty"`
}

// HasTag reports whether the normalized tag t is declared by d.
func (d Document) HasTag(t string) bool {
	i := sort.SearchStrings(d.Tags, t)
	return i < len(d.Tags) && d.Tags[i] == t
}

// Clone returns a copy of d that shares no mutable state with it.
func (d Document) Clone() Document {
	c := d
	c.Tags = append([]string(nil), d.Tags...)
	if d.Meta != nil {
		c.Meta = copyValue(d.Meta).(map[string]any)
	}
	return c
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

// tagSet accumulates normalized tags during loading.
type tagSet map[string]struct{}

func (ts tagSet) add(raw ...string) {
	for _, r := range raw {
		if t := Normalize(r); t != "" {
			ts[t] = struct{}{}
		}
	}
}

func (ts tagSet) sorted() []string {
	out := make([]string, 0, len(ts))
	for t := range ts {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
