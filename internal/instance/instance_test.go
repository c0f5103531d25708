package instance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayout(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root)

	assert.Equal(t, root, l.Root)
	assert.Equal(t, filepath.Join(root, "mods"), l.Mods)
	assert.Equal(t, filepath.Join(root, "resourcepacks"), l.ResourcePacks)
	assert.Equal(t, filepath.Join(root, "shaderpacks"), l.ShaderPacks)
	assert.Equal(t, filepath.Join(root, "config"), l.Config)
	assert.Equal(t, filepath.Join(root, "overrides"), l.Overrides)
	assert.Equal(t, filepath.Join(root, "saves"), l.Saves)
	assert.Equal(t, filepath.Join(root, "logs"), l.Logs)
	assert.Equal(t, filepath.Base(root), l.Name())
}

func TestNewNamedLayout(t *testing.T) {
	game := t.TempDir()
	l := NewNamedLayout(game, "My Cool Pack!")
	assert.Equal(t, filepath.Join(game, "instances", "my-cool-pack"), l.Root)

	unnamed := NewNamedLayout(game, "")
	assert.Equal(t, game, unnamed.Root)
}

func TestEnsureDirsAndValid(t *testing.T) {
	l := NewLayout(filepath.Join(t.TempDir(), "inst"))
	assert.False(t, l.Valid())

	require.NoError(t, l.EnsureDirs())
	for _, dir := range l.Dirs() {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
	assert.True(t, l.Valid())
}

func TestBackupAndRestore(t *testing.T) {
	l := NewLayout(filepath.Join(t.TempDir(), "inst"))
	require.NoError(t, l.EnsureDirs())
	modPath := filepath.Join(l.Mods, "a.jar")
	require.NoError(t, os.WriteFile(modPath, []byte("original"), 0o644))

	backup, err := l.backupAt(time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(l.Root+"-backups", "inst-20260829T120000Z"), backup)

	data, err := os.ReadFile(filepath.Join(backup, "mods", "a.jar"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	// Corrupt the instance, then restore.
	require.NoError(t, os.WriteFile(modPath, []byte("broken"), 0o644))
	require.NoError(t, l.Restore(backup))
	data, err = os.ReadFile(modPath)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestRemove(t *testing.T) {
	l := NewLayout(filepath.Join(t.TempDir(), "inst"))
	require.NoError(t, l.EnsureDirs())
	require.NoError(t, l.Remove())
	_, err := os.Stat(l.Root)
	assert.True(t, os.IsNotExist(err))
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"My Cool Pack", "my-cool-pack"},
		{"  All the Mods 9  ", "all-the-mods-9"},
		{"weird/../name?", "weird..name"},
		{"a---b", "a-b"},
		{"™©", "instance"},
		{"", "instance"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

func TestFindInstances(t *testing.T) {
	parent := t.TempDir()
	for _, name := range []string{"alpha", "beta"} {
		require.NoError(t, os.MkdirAll(filepath.Join(parent, name, "mods"), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(parent, "stray.txt"), nil, 0o644))

	layouts, err := FindInstances(parent)
	require.NoError(t, err)
	require.Len(t, layouts, 2)
	assert.Equal(t, "alpha", layouts[0].Name())
	assert.True(t, layouts[0].Valid())

	missing, err := FindInstances(filepath.Join(parent, "nope"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}
