package importer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/skillbase/internal/importer"
)

var excludes = []string{".DS_Store", "Thumbs.db", "*.tmp", "*.bak", "*~", "**/__pycache__/**"}

func TestImport_BasicAndConflict(t *testing.T) {
	tmp := t.TempDir()
	team := filepath.Join(tmp, "team")
	personal := filepath.Join(tmp, "personal")
	corpusRoot := filepath.Join(tmp, "skills")

	// team: fastapi skill with routing V2, shared testing notes, junk
	writeFile(t, team, "fastapi-guide/SKILL.md", "# FastAPI")
	writeFile(t, team, "fastapi-guide/references/routing.md", "V2 routing with APIRouter")
	writeFile(t, team, "fastapi-guide/references/testing.md", "shared testing notes")
	writeFile(t, team, "fastapi-guide/.DS_Store", "junk")
	writeFile(t, team, "fastapi-guide/assets/__pycache__/main.pyc", "bytecode")
	writeFile(t, team, "drafts/ideas.md", "not a skill")

	// personal: same skill with routing V1 (conflict), identical testing, new file
	writeFile(t, personal, "fastapi-guide/SKILL.md", "# FastAPI")
	writeFile(t, personal, "fastapi-guide/references/routing.md", "V1 routing")
	writeFile(t, personal, "fastapi-guide/references/testing.md", "shared testing notes")
	writeFile(t, personal, "fastapi-guide/references/deploy.md", "deploy with uvicorn")

	r1, err := importer.Import(context.Background(), importer.Options{Src: team, Dst: corpusRoot, Excludes: excludes})
	require.NoError(t, err)
	assert.Equal(t, 3, r1.Imported)
	assert.Equal(t, 0, r1.Skipped)
	assert.Empty(t, r1.Conflicts)
	assert.Equal(t, 1, r1.SkillsImported)
	assert.Equal(t, []string{"drafts"}, r1.Ignored)

	assert.NoFileExists(t, filepath.Join(corpusRoot, "fastapi-guide", ".DS_Store"))
	assert.NoFileExists(t, filepath.Join(corpusRoot, "fastapi-guide", "assets", "__pycache__", "main.pyc"))
	assert.NoDirExists(t, filepath.Join(corpusRoot, "drafts"))

	r2, err := importer.Import(context.Background(), importer.Options{Src: personal, Dst: corpusRoot, Excludes: excludes})
	require.NoError(t, err)
	assert.Equal(t, 2, r2.Skipped) // SKILL.md, testing.md
	require.Len(t, r2.Conflicts, 1)
	assert.Equal(t, "personal", r2.Conflicts[0].Source)
	assert.Equal(t, 1, r2.SkillsImported)
	assert.Equal(t, 1, r2.SkillsConflicts)

	conflict := filepath.Join(corpusRoot, "fastapi-guide", "references", "routing.conflict-personal.md")
	assert.Equal(t, conflict, r2.Conflicts[0].Conflict)
	assert.FileExists(t, conflict)

	data, err := os.ReadFile(filepath.Join(corpusRoot, "fastapi-guide", "references", "routing.md"))
	require.NoError(t, err)
	assert.Equal(t, "V2 routing with APIRouter\n", string(data), "original must not be overwritten")

	assert.FileExists(t, filepath.Join(corpusRoot, "fastapi-guide", "references", "deploy.md"))
}

func TestImport_SingleSkillDirectory(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "pytest-guide")
	writeFile(t, src, "SKILL.md", "# Pytest")
	writeFile(t, src, "references/fixtures.md", "fixtures")

	dst := filepath.Join(tmp, "skills")
	r, err := importer.Import(context.Background(), importer.Options{Src: src, Dst: dst, Source: "laptop"})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Imported)
	assert.FileExists(t, filepath.Join(dst, "pytest-guide", "references", "fixtures.md"))

	r, err = importer.Import(context.Background(), importer.Options{Src: src, Dst: dst})
	require.NoError(t, err)
	assert.Equal(t, 0, r.Imported)
	assert.Equal(t, 2, r.Skipped)
	assert.Equal(t, 1, r.SkillsSkipped)
}

func TestImport_Errors(t *testing.T) {
	tmp := t.TempDir()
	ctx := context.Background()

	_, err := importer.Import(ctx, importer.Options{Dst: tmp})
	assert.Error(t, err)

	_, err = importer.Import(ctx, importer.Options{Src: filepath.Join(tmp, "missing"), Dst: tmp})
	assert.Error(t, err)

	writeFile(t, tmp, "file.md", "x")
	_, err = importer.Import(ctx, importer.Options{Src: filepath.Join(tmp, "file.md"), Dst: tmp})
	assert.Error(t, err)

	_, err = importer.Import(ctx, importer.Options{Src: tmp, Dst: tmp, Excludes: []string{"[bad"}})
	assert.Error(t, err)
}

func TestImport_CanceledContext(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, tmp, "src/a/SKILL.md", "# A")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := importer.Import(ctx, importer.Options{Src: filepath.Join(tmp, "src"), Dst: filepath.Join(tmp, "dst")})
	assert.ErrorIs(t, err, context.Canceled)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content+"\n"), 0o644))
}
