package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hallgren/cfpack/internal/download"
	"github.com/hallgren/cfpack/internal/filestore"
	"github.com/hallgren/cfpack/internal/instance"
	"github.com/hallgren/cfpack/internal/manifest"
	"github.com/hallgren/cfpack/pkg/cfapi"
)

// FileService is the capability surface the installer needs from the
// API client: file metadata and download URL resolution, both
// best-effort. cfapi.Client satisfies it.
type FileService interface {
	FileMetadata(ctx context.Context, projectID, fileID int) (*cfapi.File, error)
	DownloadURL(ctx context.Context, projectID, fileID int) (string, error)
}

// Options configures an Installer.
type Options struct {
	// Files resolves metadata and URLs. May be nil when every manifest
	// entry already carries a usable URL.
	Files FileService

	// Downloads executes the actual transfers.
	// Default: download.NewManager(download.DefaultOptions())
	Downloads *download.Manager

	// Concurrency is the download worker pool size.
	// Default: 4
	Concurrency int

	// MaxAttempts is the per-file retry budget.
	// Default: 3
	MaxAttempts int

	// Backup copies the instance root aside before installing, which
	// enables rollback when a required file fails.
	Backup bool

	// KeepBackup preserves the backup even after a successful run.
	KeepBackup bool

	// DryRun plans without downloading or touching the instance.
	DryRun bool

	// OverwriteOverrides lets override files replace existing ones.
	OverwriteOverrides bool

	// OnResult, when non-nil, is invoked once per finished item.
	OnResult func(Result)

	// Logger for run diagnostics. Default: discard.
	Logger *log.Logger
}

// Installer drives modpack installation into a game instance.
type Installer struct {
	opts    Options
	planner *Planner
	logger  *log.Logger
}

// New creates an Installer.
func New(opts Options) *Installer {
	if opts.Downloads == nil {
		opts.Downloads = download.NewManager(download.DefaultOptions())
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	return &Installer{
		opts:    opts,
		planner: NewPlanner(opts.Files, opts.Logger),
		logger:  opts.Logger,
	}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}

// InstallFromPath loads a manifest document or packed archive and runs
// the install. Overrides extracted from an archive are removed when the
// run finishes.
func (ins *Installer) InstallFromPath(ctx context.Context, source string, layout instance.Layout) (*Report, error) {
	m, overrides, err := manifest.Load(source)
	if err != nil {
		return nil, err
	}
	if overrides != "" && strings.EqualFold(filepath.Ext(source), ".zip") {
		defer os.RemoveAll(overrides)
	}
	return ins.Install(ctx, layout, m, overrides)
}

// Install runs the full install sequence against layout and reports the
// outcome. overridesDir, when non-empty, is a tree merged into the
// instance root after all downloads finish.
func (ins *Installer) Install(ctx context.Context, layout instance.Layout, m *manifest.Manifest, overridesDir string) (*Report, error) {
	start := time.Now()
	report := &Report{
		PackName:       m.Name,
		PackVersion:    m.Version,
		BackupStatus:   StepSkipped,
		OverrideStatus: StepSkipped,
		DryRun:         ins.opts.DryRun,
	}

	ins.logger.Info("planning install", "pack", m.Name, "version", m.Version, "files", len(m.Files))
	if err := layout.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("prepare instance: %w", err)
	}
	items, err := ins.planner.Plan(ctx, m, layout)
	if err != nil {
		return nil, err
	}
	report.TotalFiles = len(items)

	if ins.opts.DryRun {
		for _, item := range items {
			report.Results = append(report.Results, Result{Item: item})
		}
		report.Elapsed = time.Since(start)
		ins.logger.Info("dry run complete", "planned", len(items))
		return report, nil
	}

	backup := ""
	if ins.opts.Backup {
		path, err := layout.Backup()
		if err != nil {
			// Non-fatal, but rollback is off the table for this run.
			ins.logger.Warn("backup failed", "err", err)
			report.BackupStatus = StepFailed
		} else {
			ins.logger.Info("backup created", "path", path)
			report.BackupStatus = StepDone
			report.Backups = append(report.Backups, path)
			backup = path
		}
	}

	report.Results = ins.runDownloads(ctx, items)
	for _, res := range report.Results {
		switch {
		case res.Success:
			report.Successful++
		case res.Item.Required:
			report.FailedRequired++
		default:
			report.FailedOptional++
		}
	}
	ins.logger.Info("downloads finished",
		"ok", report.Successful,
		"failed_required", report.FailedRequired,
		"failed_optional", report.FailedOptional)

	if overridesDir != "" {
		if err := ins.applyOverrides(overridesDir, layout.Root); err != nil {
			ins.logger.Warn("overrides not applied", "err", err)
			report.OverrideStatus = StepFailed
		} else {
			report.OverrideStatus = StepDone
		}
	}

	if report.FailedRequired > 0 && backup != "" {
		ins.logger.Warn("required files failed, rolling back", "backup", backup)
		if err := layout.Restore(backup); err != nil {
			ins.logger.Error("rollback failed", "err", err)
		} else {
			report.RolledBack = true
		}
	}

	report.Success = report.FailedRequired == 0
	if report.Success && backup != "" && !ins.opts.KeepBackup {
		if err := filestore.SafeRemove(backup); err != nil {
			ins.logger.Warn("backup cleanup failed", "err", err)
		} else {
			report.Backups = report.Backups[:0]
		}
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

// runDownloads executes one task per item over a bounded worker pool.
// Results arrive in completion order.
func (ins *Installer) runDownloads(ctx context.Context, items []*Item) []Result {
	jobs := make(chan *Item)
	results := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < ins.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				results <- ins.installOne(ctx, item)
			}
		}()
	}

	go func() {
		for _, item := range items {
			jobs <- item
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	collected := make([]Result, 0, len(items))
	for res := range results {
		if ins.opts.OnResult != nil {
			ins.opts.OnResult(res)
		}
		collected = append(collected, res)
	}
	return collected
}

// installOne processes a single item: skip when the target already
// matches, otherwise resolve the URL and download with verification.
func (ins *Installer) installOne(ctx context.Context, item *Item) Result {
	if item.TargetPath != "" && len(item.ExpectedHashes) > 0 {
		if ok, _, err := filestore.Verify(item.TargetPath, item.ExpectedHashes); err == nil && ok {
			ins.logger.Debug("already installed", "path", item.TargetPath)
			return Result{
				Item:       item,
				Success:    true,
				Path:       item.TargetPath,
				ChecksumOK: checksumState(true),
			}
		}
	}

	if item.DownloadURL == "" {
		if ins.opts.Files == nil {
			return Result{Item: item, Err: errors.New("no download url and no resolver")}
		}
		u, err := ins.opts.Files.DownloadURL(ctx, item.ProjectID, item.FileID)
		if err != nil {
			return Result{Item: item, Err: fmt.Errorf("resolve download url: %w", err)}
		}
		item.DownloadURL = u
	}

	res := ins.opts.Downloads.FetchURL(ctx, item.DownloadURL, item.TargetFolder, download.FetchSpec{
		Filename:       filepath.Base(item.TargetPath),
		ExpectedHashes: item.ExpectedHashes,
		MaxAttempts:    ins.opts.MaxAttempts,
	})
	if res.Success {
		item.TargetPath = res.Path
	}

	out := Result{
		Item:            item,
		Success:         res.Success,
		Path:            res.Path,
		DownloadedBytes: res.Bytes,
		Attempts:        res.Attempts,
		Err:             res.Err,
	}
	if len(item.ExpectedHashes) > 0 {
		switch {
		case res.Success:
			out.ChecksumOK = checksumState(true)
		case errors.Is(res.Err, download.ErrChecksumMismatch):
			out.ChecksumOK = checksumState(false)
		}
	}
	return out
}

// applyOverrides merges the overrides tree into the instance root.
// Existing files are replaced only when OverwriteOverrides is set.
func (ins *Installer) applyOverrides(src, root string) error {
	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		dest := filepath.Join(root, rel)
		if d.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if !ins.opts.OverwriteOverrides {
			if _, err := os.Stat(dest); err == nil {
				ins.logger.Debug("override skipped, file exists", "path", dest)
				return nil
			}
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := filestore.AtomicWrite(dest, f); err != nil {
			return fmt.Errorf("apply override %s: %w", rel, err)
		}
		return nil
	})
}
