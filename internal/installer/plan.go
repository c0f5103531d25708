package installer

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/hallgren/cfpack/internal/instance"
	"github.com/hallgren/cfpack/internal/manifest"
)

// Planner maps manifest entries to concrete install items, resolving
// file metadata and download URLs through the API client. Metadata and
// URL resolution are best-effort: an entry without either still becomes
// a plannable item whose URL is resolved at download time.
type Planner struct {
	files  FileService
	logger *log.Logger
}

// NewPlanner creates a Planner. files may be nil, in which case items
// carry only what the manifest knows.
func NewPlanner(files FileService, logger *log.Logger) *Planner {
	if logger == nil {
		logger = discardLogger()
	}
	return &Planner{files: files, logger: logger}
}

// Plan builds one Item per manifest entry, in manifest order.
func (p *Planner) Plan(ctx context.Context, m *manifest.Manifest, layout instance.Layout) ([]*Item, error) {
	items := make([]*Item, 0, len(m.Files))
	for _, entry := range m.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items = append(items, p.planEntry(ctx, entry, layout))
	}
	return items, nil
}

func (p *Planner) planEntry(ctx context.Context, entry manifest.FileEntry, layout instance.Layout) *Item {
	item := &Item{
		ProjectID:    entry.ProjectID,
		FileID:       entry.FileID,
		Required:     entry.Required,
		TargetFolder: layout.Mods,
	}

	name := ""
	if p.files != nil {
		meta, err := p.files.FileMetadata(ctx, entry.ProjectID, entry.FileID)
		if err != nil {
			p.logger.Debug("no file metadata", "project", entry.ProjectID, "file", entry.FileID, "err", err)
		} else {
			item.Metadata = meta
			item.ExpectedHashes = meta.HashMap()
			item.SizeBytes = meta.FileLength
			name = meta.FileName
			if name == "" {
				name = meta.DisplayName
			}
			if meta.DownloadURL != "" {
				item.DownloadURL = meta.DownloadURL
			}
		}
		if item.DownloadURL == "" {
			u, err := p.files.DownloadURL(ctx, entry.ProjectID, entry.FileID)
			if err != nil {
				p.logger.Debug("download url unresolved", "project", entry.ProjectID, "file", entry.FileID, "err", err)
			} else {
				item.DownloadURL = u
			}
		}
	}

	if name == "" && item.DownloadURL != "" {
		name = urlBasename(item.DownloadURL)
	}
	if name == "" {
		name = fmt.Sprintf("%d-%d.jar", entry.ProjectID, entry.FileID)
	}
	item.TargetPath = filepath.Join(layout.Mods, path.Base(name))
	return item
}

// urlBasename is the last path segment of a URL, or "" when the URL is
// unparseable or has no usable segment.
func urlBasename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
