package manifest

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrManifest indicates a manifest that could not be located or parsed.
var ErrManifest = errors.New("manifest: invalid or unlocatable manifest")

// FileEntry is one remote file referenced by a manifest.
type FileEntry struct {
	ProjectID int
	FileID    int
	Required  bool
}

// UnmarshalJSON accepts both the projectID/fileID and projectId/fileId
// key spellings found in the wild. A missing required field means true.
func (e *FileEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		ProjectID  *int  `json:"projectID"`
		ProjectIDL *int  `json:"projectId"`
		FileID     *int  `json:"fileID"`
		FileIDL    *int  `json:"fileId"`
		Required   *bool `json:"required"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.ProjectID != nil:
		e.ProjectID = *raw.ProjectID
	case raw.ProjectIDL != nil:
		e.ProjectID = *raw.ProjectIDL
	}
	switch {
	case raw.FileID != nil:
		e.FileID = *raw.FileID
	case raw.FileIDL != nil:
		e.FileID = *raw.FileIDL
	}
	e.Required = raw.Required == nil || *raw.Required
	return nil
}

// ModLoader identifies one mod loader requested by the pack.
type ModLoader struct {
	ID      string `json:"id"`
	Primary bool   `json:"primary"`
}

// Minecraft carries the game version block of a pack manifest.
type Minecraft struct {
	Version    string      `json:"version"`
	ModLoaders []ModLoader `json:"modLoaders"`
}

// Manifest is the parsed pack description.
type Manifest struct {
	Name            string      `json:"name"`
	Version         string      `json:"version"`
	Author          string      `json:"author"`
	ManifestType    string      `json:"manifestType"`
	ManifestVersion int         `json:"manifestVersion"`
	Minecraft       Minecraft   `json:"minecraft"`
	Files           []FileEntry `json:"files"`

	// Overrides is the directory name declared by the manifest,
	// relative to the manifest's own location. Usually "overrides".
	Overrides string `json:"overrides"`
}

// Load reads a manifest from path, dispatching on the file type:
// .zip archives go through LoadArchive, everything else is parsed as
// a JSON document. It returns the manifest and, when one exists, the
// absolute path of the overrides directory to merge after install.
func Load(source string) (*Manifest, string, error) {
	if strings.EqualFold(filepath.Ext(source), ".zip") {
		return LoadArchive(source)
	}
	return LoadFile(source)
}

// LoadFile parses a manifest JSON document. When the document declares
// an overrides directory and that directory exists beside the document,
// its path is returned as the overrides source.
func LoadFile(source string) (*Manifest, string, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrManifest, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, "", err
	}

	overrides := ""
	if m.Overrides != "" {
		candidate := filepath.Join(filepath.Dir(source), filepath.FromSlash(m.Overrides))
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			overrides = candidate
		}
	}
	return m, overrides, nil
}

// Parse decodes manifest JSON.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	return &m, nil
}

// LoadArchive locates and parses the manifest inside a packed modpack
// archive. When several entries end in manifest.json, the one closest
// to the archive root wins. Entries under an overrides directory are
// extracted to a fresh temporary directory preserving their relative
// structure; the caller owns that directory and should remove it when
// the overrides have been applied.
func LoadArchive(source string) (*Manifest, string, error) {
	reader, err := zip.OpenReader(source)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrManifest, err)
	}
	defer reader.Close()

	entry := findManifestEntry(reader.File)
	if entry == nil {
		return nil, "", fmt.Errorf("%w: no manifest.json in %s", ErrManifest, source)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrManifest, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrManifest, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, "", err
	}

	overrides, err := extractOverrides(reader.File)
	if err != nil {
		return nil, "", err
	}
	return m, overrides, nil
}

// findManifestEntry returns the shallowest entry named manifest.json.
func findManifestEntry(files []*zip.File) *zip.File {
	var best *zip.File
	bestDepth := -1
	for _, f := range files {
		name := path.Clean(f.Name)
		if path.Base(name) != "manifest.json" || f.FileInfo().IsDir() {
			continue
		}
		depth := strings.Count(name, "/")
		if best == nil || depth < bestDepth {
			best, bestDepth = f, depth
		}
	}
	return best
}

// extractOverrides writes every archive entry living under an
// "overrides" path segment into a new temporary directory, keeping the
// structure below that segment. Returns "" when the archive carries no
// overrides. Entries whose relative path would escape the temporary
// directory are rejected.
func extractOverrides(files []*zip.File) (string, error) {
	tmp := ""
	for _, f := range files {
		rel, ok := overridesRelPath(f.Name)
		if !ok || f.FileInfo().IsDir() {
			continue
		}
		if tmp == "" {
			dir, err := os.MkdirTemp("", "cfpack-overrides-")
			if err != nil {
				return "", fmt.Errorf("create overrides dir: %w", err)
			}
			tmp = dir
		}
		if err := extractEntry(f, tmp, rel); err != nil {
			os.RemoveAll(tmp)
			return "", err
		}
	}
	return tmp, nil
}

// overridesRelPath reports the path of name below its "overrides"
// segment, or ok=false when name lives outside any overrides tree.
func overridesRelPath(name string) (string, bool) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	parts := strings.Split(clean, "/")
	for i, part := range parts[:max(len(parts)-1, 0)] {
		if part == "overrides" {
			return path.Join(parts[i+1:]...), true
		}
	}
	return "", false
}

func extractEntry(f *zip.File, root, rel string) error {
	dest := filepath.Join(root, filepath.FromSlash(rel))
	// Guard against entries that climb out of the extraction root.
	if !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
		return fmt.Errorf("%w: unsafe archive entry %q", ErrManifest, f.Name)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	defer rc.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}
