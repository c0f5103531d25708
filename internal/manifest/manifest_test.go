package manifest

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `{
	"name": "All the Mods",
	"version": "1.2.3",
	"author": "atm team",
	"manifestType": "minecraftModpack",
	"manifestVersion": 1,
	"minecraft": {
		"version": "1.20.1",
		"modLoaders": [{"id": "forge-47.2.0", "primary": true}]
	},
	"files": [
		{"projectID": 238222, "fileID": 4712858, "required": true},
		{"projectId": 32274, "fileId": 4713000, "required": false},
		{"projectID": 248787, "fileID": 4690000}
	],
	"overrides": "overrides"
}`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "All the Mods", m.Name)
	assert.Equal(t, "1.2.3", m.Version)
	assert.Equal(t, "1.20.1", m.Minecraft.Version)
	require.Len(t, m.Files, 3)

	// Both key spellings must land in the same fields.
	assert.Equal(t, 238222, m.Files[0].ProjectID)
	assert.Equal(t, 4712858, m.Files[0].FileID)
	assert.True(t, m.Files[0].Required)
	assert.Equal(t, 32274, m.Files[1].ProjectID)
	assert.False(t, m.Files[1].Required)

	// Absent required defaults to true.
	assert.True(t, m.Files[2].Required)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("not json"))
	assert.ErrorIs(t, err, ErrManifest)
}

func TestLoadFileWithOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "overrides", "config"), 0o755))
	manifestPath := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifestPath, []byte(sampleManifest), 0o644))

	m, overrides, err := Load(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, "All the Mods", m.Name)
	assert.Equal(t, filepath.Join(dir, "overrides"), overrides)
}

func TestLoadFileOverridesMissing(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifestPath, []byte(sampleManifest), 0o644))

	_, overrides, err := Load(manifestPath)
	require.NoError(t, err)
	assert.Empty(t, overrides, "declared overrides dir does not exist")
}

func TestLoadFileMissing(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrManifest)
}

func writeArchive(t *testing.T, entries map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "pack.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestLoadArchive(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"manifest.json":                sampleManifest,
		"overrides/config/mod.toml":    "key = 1",
		"overrides/scripts/startup.zs": "print(\"hi\");",
		"modlist.html":                 "<ul></ul>",
	})

	m, overrides, err := Load(archive)
	require.NoError(t, err)
	require.NotEmpty(t, overrides)
	t.Cleanup(func() { os.RemoveAll(overrides) })

	assert.Equal(t, "All the Mods", m.Name)

	data, err := os.ReadFile(filepath.Join(overrides, "config", "mod.toml"))
	require.NoError(t, err)
	assert.Equal(t, "key = 1", string(data))
	_, err = os.Stat(filepath.Join(overrides, "scripts", "startup.zs"))
	assert.NoError(t, err)
}

func TestLoadArchiveShallowestManifestWins(t *testing.T) {
	nested := `{"name": "wrong one", "files": []}`
	archive := writeArchive(t, map[string]string{
		"deep/inner/manifest.json": nested,
		"top/manifest.json":        sampleManifest,
	})

	m, _, err := Load(archive)
	require.NoError(t, err)
	assert.Equal(t, "All the Mods", m.Name)
}

func TestLoadArchiveNoManifest(t *testing.T) {
	archive := writeArchive(t, map[string]string{"readme.txt": "nothing here"})
	_, _, err := Load(archive)
	assert.ErrorIs(t, err, ErrManifest)
}

func TestLoadArchiveNoOverrides(t *testing.T) {
	archive := writeArchive(t, map[string]string{"manifest.json": sampleManifest})
	_, overrides, err := Load(archive)
	require.NoError(t, err)
	assert.Empty(t, overrides)
}

func TestOverridesRelPath(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"overrides/config/a.toml", "config/a.toml", true},
		{"pack/overrides/b.txt", "b.txt", true},
		{"mods/file.jar", "", false},
		{"overrides/../../etc/passwd", "", false},
	}
	for _, tt := range tests {
		got, ok := overridesRelPath(tt.name)
		if assert.Equal(t, tt.ok, ok, tt.name) && ok {
			assert.Equal(t, tt.want, got, tt.name)
		}
	}
}

func TestLoadArchiveUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
	_, _, err := Load(path)
	assert.True(t, errors.Is(err, ErrManifest))
}
