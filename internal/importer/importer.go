// Package importer copies existing skill directories into a corpus root,
// applying exclude filtering and MD5-based conflict resolution.
package importer

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kamusis/skillbase/internal/logger"
)

const skillFileName = "SKILL.md"

// ConflictPair records a conflict found during import.
type ConflictPair struct {
	Original string // path of the file already in the corpus
	Conflict string // path where the incoming conflicting version was stored
	Source   string // source label
}

// Options configures Import.
type Options struct {
	Src string
	// Dst is the corpus root the skills are copied into.
	Dst string
	// Source labels conflict files; it defaults to the base name of Src.
	Source   string
	Excludes []string // doublestar patterns, matched against <skill>/<rel> and base names
}

// Result is returned by Import.
type Result struct {
	Conflicts []ConflictPair
	Imported  int // number of files actually copied
	Skipped   int // identical duplicates skipped

	SkillsImported  int // skills with ≥1 newly copied file
	SkillsSkipped   int // skills whose every file was an identical duplicate
	SkillsConflicts int // skills with ≥1 conflict

	// Ignored lists top-level directories of Src without a SKILL.md.
	Ignored []string
}

// Import copies every skill found in opts.Src into opts.Dst. Src may be a
// single skill directory or a directory of skills.
func Import(ctx context.Context, opts Options) (*Result, error) {
	if opts.Src == "" || opts.Dst == "" {
		return nil, fmt.Errorf("source and destination are required")
	}
	for _, p := range opts.Excludes {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	src, err := filepath.Abs(opts.Src)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve %s: %w", opts.Src, err)
	}
	if st, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("cannot read source %s: %w", opts.Src, err)
	} else if !st.IsDir() {
		return nil, fmt.Errorf("source is not a directory: %s", opts.Src)
	}
	source := opts.Source
	if source == "" {
		source = filepath.Base(src)
	}

	skills, ignored, err := findSkills(src)
	if err != nil {
		return nil, err
	}

	result := &Result{Ignored: ignored}
	log := logger.G(ctx)
	for _, name := range sortedKeys(skills) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		st, err := importSkill(skills[name], filepath.Join(opts.Dst, name), name, source, opts.Excludes, result)
		if err != nil {
			return result, err
		}
		// A skill can count as both imported and conflicting.
		if st.imported {
			result.SkillsImported++
		}
		if st.conflict {
			result.SkillsConflicts++
		}
		if !st.imported && !st.conflict {
			result.SkillsSkipped++
		}
		log.WithField("skill", name).Debug("skill imported")
	}
	return result, nil
}

// findSkills maps skill names to directories. A src holding a SKILL.md is
// itself one skill.
func findSkills(src string) (map[string]string, []string, error) {
	if isFile(filepath.Join(src, skillFileName)) {
		return map[string]string{filepath.Base(src): src}, nil, nil
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read source %s: %w", src, err)
	}
	skills := map[string]string{}
	var ignored []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(src, e.Name())
		if !isFile(filepath.Join(dir, skillFileName)) {
			ignored = append(ignored, e.Name())
			continue
		}
		skills[e.Name()] = dir
	}
	return skills, ignored, nil
}

type skillStatus struct {
	imported bool
	conflict bool
}

func importSkill(srcDir, dstDir, skill, source string, excludes []string, result *Result) (skillStatus, error) {
	var st skillStatus
	err := filepath.WalkDir(srcDir, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == srcDir {
			return os.MkdirAll(dstDir, 0o755)
		}

		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		if matchesExclude(path.Join(skill, filepath.ToSlash(rel)), excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		dst := filepath.Join(dstDir, rel)
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if _, err := os.Stat(dst); err == nil {
			srcMD5, err := fileMD5(p)
			if err != nil {
				return fmt.Errorf("md5 %s: %w", p, err)
			}
			dstMD5, err := fileMD5(dst)
			if err != nil {
				return fmt.Errorf("md5 %s: %w", dst, err)
			}
			if srcMD5 == dstMD5 {
				result.Skipped++
				return nil
			}
			conflictDst := conflictPath(dst, source)
			if err := copyFile(p, conflictDst); err != nil {
				return fmt.Errorf("conflict copy %s → %s: %w", p, conflictDst, err)
			}
			result.Conflicts = append(result.Conflicts, ConflictPair{
				Original: dst,
				Conflict: conflictDst,
				Source:   source,
			})
			result.Imported++
			st.conflict = true
			return nil
		}

		if err := copyFile(p, dst); err != nil {
			return fmt.Errorf("copy %s → %s: %w", p, dst, err)
		}
		result.Imported++
		st.imported = true
		return nil
	})
	return st, err
}

// conflictPath builds the conflict filename for an incoming file.
// Strategy: insert .conflict-<source> before the final extension.
//
//	routing.md         → routing.conflict-team.md
//	routing.prompt.md  → routing.prompt.conflict-team.md
func conflictPath(original, source string) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	return base + ".conflict-" + source + ext
}

// matchesExclude reports whether rel or its base name matches any pattern.
func matchesExclude(rel string, patterns []string) bool {
	name := path.Base(rel)
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, name); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// fileMD5 returns the hex-encoded MD5 digest of the file at path.
func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// copyFile copies src to dst, preserving permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
