package instance

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/hallgren/cfpack/internal/filestore"
)

// Layout holds the standard directories of one game instance.
type Layout struct {
	Root          string
	Mods          string
	ResourcePacks string
	ShaderPacks   string
	Config        string
	Overrides     string
	Saves         string
	Logs          string
}

// NewLayout builds a Layout rooted at root. No directories are created.
func NewLayout(root string) Layout {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return Layout{
		Root:          abs,
		Mods:          filepath.Join(abs, "mods"),
		ResourcePacks: filepath.Join(abs, "resourcepacks"),
		ShaderPacks:   filepath.Join(abs, "shaderpacks"),
		Config:        filepath.Join(abs, "config"),
		Overrides:     filepath.Join(abs, "overrides"),
		Saves:         filepath.Join(abs, "saves"),
		Logs:          filepath.Join(abs, "logs"),
	}
}

// NewNamedLayout roots an instance at gameDir/instances/<slug(name)>,
// or at gameDir itself when name is empty. gameDir falls back to the
// platform default game directory when empty.
func NewNamedLayout(gameDir, name string) Layout {
	if gameDir == "" {
		gameDir = DefaultGameDir()
	}
	if name == "" {
		return NewLayout(gameDir)
	}
	return NewLayout(filepath.Join(gameDir, "instances", Slugify(name)))
}

// Name is the last path component of the instance root.
func (l Layout) Name() string {
	return filepath.Base(l.Root)
}

// Dirs lists every directory of the layout, root first.
func (l Layout) Dirs() []string {
	return []string{
		l.Root, l.Mods, l.ResourcePacks, l.ShaderPacks,
		l.Config, l.Overrides, l.Saves, l.Logs,
	}
}

// EnsureDirs creates every missing directory of the layout.
func (l Layout) EnsureDirs() error {
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Valid reports whether the root looks like a real instance: at least
// one of the mods, config or saves directories exists.
func (l Layout) Valid() bool {
	for _, dir := range []string{l.Mods, l.Config, l.Saves} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// Backup copies the entire instance root to a timestamped directory
// under <root>-backups beside the root, and returns the backup path.
func (l Layout) Backup() (string, error) {
	return l.backupAt(time.Now().UTC())
}

func (l Layout) backupAt(now time.Time) (string, error) {
	backupRoot := l.Root + "-backups"
	if err := os.MkdirAll(backupRoot, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	dest := filepath.Join(backupRoot, l.Name()+"-"+now.Format("20060102T150405Z"))
	if err := filestore.CopyTree(l.Root, dest); err != nil {
		return "", fmt.Errorf("backup %s: %w", l.Root, err)
	}
	return dest, nil
}

// Restore replaces the instance root with the contents of backup.
func (l Layout) Restore(backup string) error {
	if err := filestore.SafeRemove(l.Root); err != nil {
		return fmt.Errorf("clear instance: %w", err)
	}
	if err := filestore.CopyTree(backup, l.Root); err != nil {
		return fmt.Errorf("restore %s: %w", backup, err)
	}
	return nil
}

// Remove deletes the entire instance root.
func (l Layout) Remove() error {
	return filestore.SafeRemove(l.Root)
}

var (
	spaceRun  = regexp.MustCompile(`\s+`)
	unsafeRun = regexp.MustCompile(`[^a-z0-9\-_.]`)
	hyphenRun = regexp.MustCompile(`-{2,}`)
)

// Slugify turns an arbitrary instance name into a filesystem-safe slug:
// lowercased, whitespace collapsed to hyphens, unsafe characters
// removed. An empty outcome yields "instance".
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = spaceRun.ReplaceAllString(slug, "-")
	slug = unsafeRun.ReplaceAllString(slug, "")
	slug = hyphenRun.ReplaceAllString(slug, "-")
	if slug == "" {
		return "instance"
	}
	return slug
}

// DefaultGameDir returns the platform-default game directory.
func DefaultGameDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, ".minecraft")
		}
		return filepath.Join(home, ".minecraft")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "minecraft")
	default:
		return filepath.Join(home, ".minecraft")
	}
}

// FindInstances lists the instances under parent, one Layout per
// subdirectory. An empty parent means the default game directory's
// instances folder. A missing parent yields an empty list.
func FindInstances(parent string) ([]Layout, error) {
	if parent == "" {
		parent = filepath.Join(DefaultGameDir(), "instances")
	}
	entries, err := os.ReadDir(parent)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", parent, err)
	}
	var layouts []Layout
	for _, entry := range entries {
		if entry.IsDir() {
			layouts = append(layouts, NewLayout(filepath.Join(parent, entry.Name())))
		}
	}
	return layouts, nil
}
