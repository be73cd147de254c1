package corpus

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

const maxPhraseRunes = 64

// tocEntry is one link found in a SKILL.md table of contents, together with
// the phrases of the table row or list item that describe it.
type tocEntry struct {
	Target  string
	Phrases []string
}

type parsedMarkdown struct {
	Meta    map[string]any
	MetaErr error
	Title   string
	Summary string
	Body    string
	TOC     []tocEntry
}

func parseMarkdown(src []byte) *parsedMarkdown {
	gm := goldmark.New(goldmark.WithExtensions(meta.Meta, extension.Table))
	pctx := parser.NewContext()
	root := gm.Parser().Parse(text.NewReader(src), parser.WithContext(pctx))

	p := &parsedMarkdown{Body: stripFrontmatter(string(src))}
	raw, err := meta.TryGet(pctx)
	if err != nil {
		p.MetaErr = err
	}
	p.Meta = jsonMeta(lowerKeys(raw))

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			if v.Level == 1 && p.Title == "" {
				p.Title = textOf(v, src)
			}
		case *ast.Paragraph:
			if p.Summary == "" && v.Parent() != nil && v.Parent().Kind() == ast.KindDocument {
				p.Summary = textOf(v, src)
			}
		case *ast.Link:
			p.TOC = append(p.TOC, tocEntry{
				Target:  string(v.Destination),
				Phrases: phrasesAround(v, src),
			})
		}
		return ast.WalkContinue, nil
	})
	return p
}

// phrasesAround returns the tag phrases describing a link: every cell of its
// table row, the split text of its list item, or just the link text.
func phrasesAround(link *ast.Link, src []byte) []string {
	for a := link.Parent(); a != nil; a = a.Parent() {
		switch a.Kind() {
		case east.KindTableRow, east.KindTableHeader:
			var out []string
			for c := a.FirstChild(); c != nil; c = c.NextSibling() {
				out = append(out, splitPhrases(textOf(c, src))...)
			}
			return out
		case ast.KindListItem:
			if first := a.FirstChild(); first != nil {
				return splitPhrases(textOf(first, src))
			}
			return nil
		}
	}
	return splitPhrases(textOf(link, src))
}

var phraseSeparators = strings.NewReplacer(
	" - ", "\x00",
	" — ", "\x00",
	" – ", "\x00",
	":", "\x00",
	",", "\x00",
	";", "\x00",
	"|", "\x00",
)

func splitPhrases(s string) []string {
	var out []string
	for _, p := range strings.Split(phraseSeparators.Replace(s), "\x00") {
		p = strings.TrimSpace(p)
		if p == "" || utf8.RuneCountInString(p) > maxPhraseRunes {
			continue
		}
		out = append(out, p)
	}
	return out
}

func textOf(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

// stripFrontmatter removes a leading YAML frontmatter block.
func stripFrontmatter(content string) string {
	s := strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(s, "---") {
		return content
	}
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
		}
	}
	return content
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// jsonMeta converts decoded YAML into the values encoding/json produces when
// decoding: nested maps get string keys and numbers become float64. Values
// JSON cannot represent are kept as their string form.
func jsonMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = jsonValue(v)
	}
	return out
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool:
		return x
	case map[string]any:
		return jsonMeta(x)
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = jsonValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonValue(e)
		}
		return out
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return jsonFloat(float64(x))
	case float64:
		return jsonFloat(x)
	default:
		return fmt.Sprint(x)
	}
}

func jsonFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Sprint(f)
	}
	return f
}

// metaString returns the first non-empty scalar among keys.
func metaString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case nil:
		default:
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// metaList collects values under keys given either as a YAML list or as a
// comma-separated string.
func metaList(m map[string]any, keys ...string) []string {
	var out []string
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
		case []any:
			for _, item := range v {
				if item == nil {
					continue
				}
				if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
