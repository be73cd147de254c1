package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/kamusis/skillbase/internal/logger"
)

const (
	skillFileName      = "SKILL.md"
	referencesDir      = "references"
	assetsDir          = "assets"
	defaultParallelism = 8
)

// LoadOptions controls which files of a corpus become documents.
type LoadOptions struct {
	Roots         []string
	Excludes      []string // doublestar patterns, matched against ids and base names
	IncludeAssets bool
	Parallelism   int
}

// skillDir is one directory holding a SKILL.md.
type skillDir struct {
	name string
	abs  string
}

// pending is a file scheduled for loading.
type pending struct {
	id    string
	abs   string
	kind  string
	skill string

	data     []byte // valid UTF-8
	sum      string // checksum of the bytes on disk
	text     bool
	repaired bool
}

// Load enumerates every root and returns a store holding the skill files,
// their references and, optionally, their assets. Documents are ordered by
// root, then skill name, then SKILL.md, references and assets in lexical
// order, so loading the same corpus twice yields the same store.
func Load(ctx context.Context, opts LoadOptions) (*Store, error) {
	if len(opts.Roots) == 0 {
		return nil, errors.New("no corpus roots configured")
	}
	for _, p := range opts.Excludes {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("invalid exclude pattern %q", p)
		}
	}

	log := logger.G(ctx)
	seen := make(map[string]string)
	var docs []Document

	for _, root := range opts.Roots {
		skills, err := discoverSkillDirs(root, opts.Excludes)
		if err != nil {
			return nil, err
		}
		for _, sk := range skills {
			if prev, dup := seen[sk.name]; dup {
				log.WithField("skill", sk.name).WithField("kept", prev).Warnf("skipping duplicate skill in %s", root)
				continue
			}
			seen[sk.name] = root

			items, err := planSkill(sk, opts)
			if err != nil {
				return nil, err
			}
			if err := readAll(ctx, items, opts.Parallelism); err != nil {
				return nil, err
			}
			docs = append(docs, buildSkill(ctx, sk, items)...)
		}
	}

	log.WithField("documents", len(docs)).Debug("corpus loaded")
	return NewStore(docs)
}

func discoverSkillDirs(root string, excludes []string) ([]skillDir, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			logger.L.WithField("root", root).Warn("corpus root does not exist")
			return nil, nil
		}
		return nil, errors.Wrapf(err, "cannot stat corpus root %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("corpus root is not a directory: %s", root)
	}

	// A root may itself be a single skill.
	if fileExists(filepath.Join(root, skillFileName)) {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot resolve %s", root)
		}
		return []skillDir{{name: filepath.Base(abs), abs: abs}}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read corpus root %s", root)
	}
	var out []skillDir
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || excluded(e.Name(), excludes) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		// os.Stat follows symlinked skill directories.
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			continue
		}
		if !fileExists(filepath.Join(dir, skillFileName)) {
			continue
		}
		out = append(out, skillDir{name: e.Name(), abs: dir})
	}
	return out, nil
}

func planSkill(sk skillDir, opts LoadOptions) ([]*pending, error) {
	items := []*pending{{
		id:    sk.name + "/" + skillFileName,
		abs:   filepath.Join(sk.abs, skillFileName),
		kind:  KindSkill,
		skill: sk.name,
	}}

	walk := func(sub, kind string, accept func(name string) bool) error {
		base := filepath.Join(sk.abs, sub)
		if st, err := os.Stat(base); err != nil || !st.IsDir() {
			return nil
		}
		return filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(sk.abs, p)
			if err != nil {
				return err
			}
			id := sk.name + "/" + filepath.ToSlash(rel)
			if d.IsDir() {
				if p != base && (strings.HasPrefix(d.Name(), ".") || excluded(d.Name(), opts.Excludes)) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !accept(d.Name()) || excluded(id, opts.Excludes) {
				return nil
			}
			items = append(items, &pending{id: id, abs: p, kind: kind, skill: sk.name})
			return nil
		})
	}

	if err := walk(referencesDir, KindReference, isMarkdown); err != nil {
		return nil, errors.Wrapf(err, "cannot scan references of %s", sk.name)
	}
	if opts.IncludeAssets {
		if err := walk(assetsDir, KindAsset, func(string) bool { return true }); err != nil {
			return nil, errors.Wrapf(err, "cannot scan assets of %s", sk.name)
		}
	}
	return items, nil
}

func readAll(ctx context.Context, items []*pending, parallelism int) error {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, it := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := os.ReadFile(it.abs)
			if err != nil {
				return errors.Wrapf(err, "failed to read %s", it.abs)
			}
			it.sum = checksum(b)
			it.text = isText(b)
			if it.text && !utf8.Valid(b) {
				b = []byte(strings.ToValidUTF8(string(b), "\uFFFD"))
				it.repaired = true
			}
			it.data = b
			return nil
		})
	}
	return g.Wait()
}

// buildSkill turns the read files of one skill into documents. The SKILL.md
// table of contents contributes tags to the documents it links to.
func buildSkill(ctx context.Context, sk skillDir, items []*pending) []Document {
	log := logger.G(ctx).WithField("skill", sk.name)

	ids := make(map[string]bool, len(items))
	for _, it := range items {
		ids[it.id] = true
	}

	parsed := make(map[string]*parsedMarkdown, len(items))
	tocTags := make(map[string]tagSet)
	for _, it := range items {
		if it.kind == KindAsset || !it.text {
			continue
		}
		p := parseMarkdown(it.data)
		if p.MetaErr != nil {
			log.WithError(p.MetaErr).WithField("doc", it.id).Warn("ignoring invalid frontmatter")
		}
		parsed[it.id] = p
		if it.kind != KindSkill {
			continue
		}
		for _, e := range p.TOC {
			target, ok := resolveLink(sk.name, e.Target)
			if !ok || !ids[target] {
				continue
			}
			if tocTags[target] == nil {
				tocTags[target] = tagSet{}
			}
			tocTags[target].add(e.Phrases...)
		}
	}

	docs := make([]Document, 0, len(items))
	for _, it := range items {
		if !it.text {
			log.WithField("doc", it.id).Warn("skipping non-text file")
			continue
		}
		if it.repaired {
			log.WithField("doc", it.id).Warn("replaced invalid UTF-8 sequences")
		}
		tags := tagSet{}
		tags.add(sk.name)
		for t := range tocTags[it.id] {
			tags[t] = struct{}{}
		}

		d := Document{
			ID:       it.id,
			Kind:     it.kind,
			Skill:    sk.name,
			Path:     it.abs,
			Checksum: it.sum,
		}
		stem := strings.TrimSuffix(path.Base(it.id), path.Ext(it.id))

		switch it.kind {
		case KindAsset:
			d.Title = path.Base(it.id)
			d.Body = string(it.data)
			tags.add(stem)
			tags.add(assetSegments(sk.name, it.id)...)
		default:
			p := parsed[it.id]
			d.Body = p.Body
			fallback := stem
			if it.kind == KindSkill {
				fallback = sk.name
				tags.add(metaString(p.Meta, "name"))
			} else {
				tags.add(stem)
			}
			d.Title = firstNonEmpty(metaString(p.Meta, "title", "name"), p.Title, fallback)
			d.Description = firstNonEmpty(metaString(p.Meta, "description"), p.Summary)
			if len(p.Meta) > 0 {
				d.Meta = p.Meta
			}
			tags.add(metaList(p.Meta, "tags", "keywords", "topics")...)
		}
		d.Tags = tags.sorted()
		docs = append(docs, d)
	}
	return docs
}

// resolveLink maps a relative link found in <skill>/SKILL.md to a document id.
func resolveLink(skill, dest string) (string, bool) {
	if dest == "" || strings.Contains(dest, "://") || strings.HasPrefix(dest, "/") ||
		strings.HasPrefix(dest, "mailto:") || strings.HasPrefix(dest, "#") {
		return "", false
	}
	if i := strings.IndexAny(dest, "#?"); i >= 0 {
		dest = dest[:i]
	}
	if u, err := url.PathUnescape(dest); err == nil {
		dest = u
	}
	id := path.Clean(path.Join(skill, dest))
	if !strings.HasPrefix(id, skill+"/") {
		return "", false
	}
	return id, true
}

// assetSegments returns the directory names between assets/ and the file.
func assetSegments(skill, id string) []string {
	rel := strings.TrimPrefix(id, skill+"/"+assetsDir+"/")
	dir := path.Dir(rel)
	if dir == "." {
		return nil
	}
	return strings.Split(dir, "/")
}

func excluded(rel string, patterns []string) bool {
	name := path.Base(rel)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func isMarkdown(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
