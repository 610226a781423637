package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), DefaultConfigFilename)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFromFile_ResolvesRelativePaths(t *testing.T) {
	p := writeConfig(t, `
server: https://loops.example.com
projects: [alpha, beta]
credentials_file: creds.yaml
overscan: 40
markers_js:
  - markers/rounds.js
  - /abs/steps.js
`)
	cfg, err := LoadFromFile(p)
	require.NoError(t, err)

	dir := filepath.Dir(p)
	assert.Equal(t, "https://loops.example.com", cfg.Server)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Projects)
	assert.Equal(t, filepath.Join(dir, "creds.yaml"), cfg.CredentialsFile)
	assert.Equal(t, 40, cfg.Overscan)
	assert.Equal(t, []string{filepath.Join(dir, "markers/rounds.js"), "/abs/steps.js"}, cfg.MarkersJS)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "server: [not, a, string]\n"))
	require.Error(t, err)

	_, err = LoadFromFile(writeConfig(t, "server: not a url\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")

	_, err = LoadFromFile(writeConfig(t, "overscan: -1\n"))
	require.Error(t, err)

	_, err = LoadFromFile(writeConfig(t, "projects: [\"\"]\n"))
	require.Error(t, err)
}

func TestLoadOptional_Missing(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, &File{}, cfg)
}
