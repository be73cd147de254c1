package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withBase points SKILLBASE_HOME at a fresh temp dir and returns it.
func withBase(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv("SKILLBASE_HOME", base)
	return base
}

func TestLoadDotEnv_NotExist(t *testing.T) {
	withBase(t)

	m, err := LoadDotEnv()
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	base := withBase(t)
	body := "# comment\nA=1\nB=two\n  C = \"quoted value\"\nbroken line\n=novalue\n"
	require.NoError(t, os.WriteFile(filepath.Join(base, ".env"), []byte(body), 0o600))

	m, err := LoadDotEnv()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "two", "C": "quoted value"}, m)
}

func TestGetConfigValue_EnvOverridesDotEnv(t *testing.T) {
	base := withBase(t)
	require.NoError(t, os.WriteFile(filepath.Join(base, ".env"), []byte("K=fromdotenv\nOTHER=x\n"), 0o600))
	t.Setenv("K", "fromenv")

	v, err := GetConfigValue("K")
	require.NoError(t, err)
	assert.Equal(t, "fromenv", v)

	v, err = GetConfigValue("OTHER")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestEnsureDotEnvTemplate_DoesNotOverwrite(t *testing.T) {
	base := withBase(t)
	p := filepath.Join(base, ".env")
	require.NoError(t, os.WriteFile(p, []byte("SKILLBASE_LOG_LEVEL=debug\n"), 0o600))

	require.NoError(t, EnsureDotEnvTemplate())

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "SKILLBASE_LOG_LEVEL=debug\n", string(b))
}

func TestEnsureDotEnvTemplate_CreatesCommentedTemplate(t *testing.T) {
	base := withBase(t)

	require.NoError(t, EnsureDotEnvTemplate())

	b, err := os.ReadFile(filepath.Join(base, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "# SKILLBASE_CORPUS_ROOTS=")

	m, err := LoadDotEnv()
	require.NoError(t, err)
	assert.Empty(t, m)
}
