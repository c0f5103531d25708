package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallgren/cfpack/internal/config"
)

const inspectManifest = `{
	"name": "inspect pack",
	"version": "3.1",
	"author": "someone",
	"minecraft": {"version": "1.20.1", "modLoaders": [{"id": "forge-47.2.0", "primary": true}]},
	"files": [
		{"projectID": 1, "fileID": 2, "required": true},
		{"projectID": 3, "fileID": 4, "required": false}
	]
}`

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(inspectManifest), 0o644))

	cmd := newInspectCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path, "--files"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	text := out.String()
	assert.Contains(t, text, "inspect pack")
	assert.Contains(t, text, "forge-47.2.0 (primary)")
	assert.Contains(t, text, "2 (1 required, 1 optional)")
	assert.Contains(t, text, "1/2 required")
	assert.Contains(t, text, "3/4 optional")
}

func TestInspectCommandMissingFile(t *testing.T) {
	cmd := newInspectCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.json")})

	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestInstancesCommand(t *testing.T) {
	game := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(game, "instances", "alpha", "mods"), 0o755))

	cmd := newInstancesCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--game-dir", game})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "alpha")
	assert.Contains(t, out.String(), "ok")
}

func TestLoadConfigLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_key: file-key\nworkers: 2\n"), 0o644))
	t.Setenv("CFPACK_WORKERS", "9")

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	// Env wins over file, file wins over defaults.
	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, 9, cfg.Workers)
	assert.Equal(t, config.Default().BaseURL, cfg.BaseURL)
}

func TestConfigFromContextFallback(t *testing.T) {
	cfg := configFromContext(context.Background())
	if !strings.Contains(cfg.BaseURL, "curseforge") {
		t.Fatalf("expected default config, got base url %q", cfg.BaseURL)
	}
}
