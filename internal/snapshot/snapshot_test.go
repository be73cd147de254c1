package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/skillbase/internal/corpus"
)

func testStore(t *testing.T) *corpus.Store {
	t.Helper()
	store, err := corpus.NewStore([]corpus.Document{
		{
			ID:          "fastapi-guide/SKILL.md",
			Kind:        corpus.KindSkill,
			Skill:       "fastapi-guide",
			Title:       "FastAPI Guide",
			Description: "Build APIs <fast> & well",
			Body:        "# FastAPI Guide\n\n| a | b |\n",
			Tags:        []string{"fastapi", "web"},
			Path:        "/skills/fastapi-guide/SKILL.md",
			Checksum:    "aaa",
			Meta: map[string]any{
				"name":     "fastapi-guide",
				"version":  "1.2.0",
				"priority": float64(3),
				"tags":     []any{"fastapi", "web"},
				"requires": map[string]any{"bins": []any{"uvicorn"}, "optional": nil},
			},
		},
		{
			ID:       "fastapi-guide/references/testing.md",
			Kind:     corpus.KindReference,
			Skill:    "fastapi-guide",
			Title:    "Testing",
			Body:     "Use TestClient.\n",
			Tags:     []string{"testing"},
			Path:     "/skills/fastapi-guide/references/testing.md",
			Checksum: "bbb",
		},
	})
	require.NoError(t, err)
	return store
}

func TestBuildLoad_RoundTripPreservesList(t *testing.T) {
	store := testStore(t)
	dir := filepath.Join(t.TempDir(), "snapshot")

	m, err := Build(context.Background(), store, BuildOptions{OutDir: dir, Roots: []string{"/skills"}})
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, m.Version)
	assert.Equal(t, 2, m.DocumentCount)
	assert.Equal(t, []string{"/skills"}, m.Roots)

	snap, err := Load(dir)
	require.NoError(t, err)
	if diff := cmp.Diff(store.List(), snap.Store.List()); diff != "" {
		t.Fatalf("snapshot changed documents (-want +got):\n%s", diff)
	}
	assert.Equal(t, m, snap.Manifest)
}

func TestBuild_ReplacesExistingSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshot")
	_, err := Build(context.Background(), testStore(t), BuildOptions{OutDir: dir})
	require.NoError(t, err)

	one, err := corpus.NewStore([]corpus.Document{{ID: "only/SKILL.md", Checksum: "ccc"}})
	require.NoError(t, err)
	_, err = Build(context.Background(), one, BuildOptions{OutDir: dir})
	require.NoError(t, err)

	snap, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"only/SKILL.md"}, snap.Store.IDs())

	_, err = os.Stat(dir + ".bak")
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".snapshot-tmp-")
	}
}

func TestBuild_ConcurrentBuildsSerialize(t *testing.T) {
	store := testStore(t)
	dir := filepath.Join(t.TempDir(), "snapshot")

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = Build(context.Background(), store, BuildOptions{OutDir: dir})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	snap, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, store.IDs(), snap.Store.IDs())
}

func TestBuild_LockTimeout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshot")
	held := flock.New(dir + ".lock")
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	_, err = Build(context.Background(), testStore(t), BuildOptions{OutDir: dir, LockTimeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in progress")
}

func TestBuild_RequiresOutDir(t *testing.T) {
	_, err := Build(context.Background(), testStore(t), BuildOptions{})
	assert.Error(t, err)
}

func TestFresh(t *testing.T) {
	store := testStore(t)
	dir := filepath.Join(t.TempDir(), "snapshot")

	fresh, err := Fresh(dir, store)
	require.NoError(t, err)
	assert.False(t, fresh, "missing snapshot")

	_, err = Build(context.Background(), store, BuildOptions{OutDir: dir})
	require.NoError(t, err)

	fresh, err = Fresh(dir, store)
	require.NoError(t, err)
	assert.True(t, fresh)

	docs := store.List()
	docs[1].Checksum = "changed"
	changed, err := corpus.NewStore(docs)
	require.NoError(t, err)
	fresh, err = Fresh(dir, changed)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestLoad_RejectsTamperedDocuments(t *testing.T) {
	dir := t.TempDir()
	store := testStore(t)
	require.NoError(t, Write(dir, Manifest{}, store.List()))

	docs := store.List()
	docs[0].Checksum = "tampered"
	var lines []byte
	for _, d := range docs {
		b, err := json.Marshal(d)
		require.NoError(t, err)
		lines = append(lines, b...)
		lines = append(lines, '\n')
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultDocumentsFile), lines, 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestLoad_RejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	mb, err := json.Marshal(Manifest{Version: 99})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), mb, 0o644))

	_, err = Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported snapshot version")
}

func TestLoad_MissingManifest(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAtomicSwap_NewDestination(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0o644))

	dest := filepath.Join(root, "nested", "dest")
	require.NoError(t, AtomicSwap(src, dest))

	b, err := os.ReadFile(filepath.Join(dest, "f"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(b))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestCorpusChecksum_OrderSensitive(t *testing.T) {
	docs := testStore(t).List()
	a := CorpusChecksum(docs)
	b := CorpusChecksum([]corpus.Document{docs[1], docs[0]})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, CorpusChecksum(testStore(t).List()))
}

func TestBuildLoad_LatinOneCorpusRoundTrips(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"guide/SKILL.md":            "---\nname: guide\nversion: 1.2.0\nlicense: MIT\n---\n# Guide\n\nA guide.\n",
		"guide/references/caf.md": "# Caf\xe9\n\nna\xefve body\n",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	store, err := corpus.Load(context.Background(), corpus.LoadOptions{Roots: []string{root}})
	require.NoError(t, err)
	ref, err := store.Get("guide/references/caf.md")
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(ref.Body))
	assert.Equal(t, "# Caf\uFFFD\n\nna\uFFFDve body\n", ref.Body)

	dir := filepath.Join(t.TempDir(), "snapshot")
	_, err = Build(context.Background(), store, BuildOptions{OutDir: dir, Roots: []string{root}})
	require.NoError(t, err)

	snap, err := Load(dir)
	require.NoError(t, err)
	if diff := cmp.Diff(store.List(), snap.Store.List()); diff != "" {
		t.Fatalf("snapshot changed documents (-want +got):\n%s", diff)
	}

	skill, err := snap.Store.Get("guide/SKILL.md")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", skill.Meta["version"])
	assert.Equal(t, "MIT", skill.Meta["license"])

	fresh, err := Fresh(dir, store)
	require.NoError(t, err)
	assert.True(t, fresh)
}
