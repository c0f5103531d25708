package installer

import (
	"time"

	"github.com/hallgren/cfpack/pkg/cfapi"
)

// Item is one planned file install. Items are built by the Planner and
// mutated in place while downloading (URL and filename resolution);
// each item is owned by exactly one worker at a time.
type Item struct {
	ProjectID int
	FileID    int
	Required  bool

	// DownloadURL may be empty until the first download attempt
	// resolves it through the API.
	DownloadURL string

	// ExpectedHashes maps lowercase algorithm names to hex digests.
	// Empty means verification is skipped.
	ExpectedHashes map[string]string

	TargetFolder string
	TargetPath   string
	SizeBytes    int64

	// Metadata is the raw file description, kept for diagnostics.
	Metadata *cfapi.File
}

// Result is the outcome of processing one Item. DownloadedBytes counts
// bytes transferred over the wire; skipped or resumed data is excluded.
type Result struct {
	Item            *Item
	Success         bool
	Path            string
	DownloadedBytes int64
	Attempts        int
	Err             error

	// ChecksumOK is nil when no hashes were available to check.
	ChecksumOK *bool
}

// StepStatus describes the outcome of an optional run phase.
type StepStatus string

const (
	StepSkipped StepStatus = "skipped"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
)

// Report summarizes one install run.
type Report struct {
	PackName    string
	PackVersion string

	TotalFiles     int
	Successful     int
	FailedRequired int
	FailedOptional int

	Results []Result
	Backups []string
	Elapsed time.Duration

	BackupStatus   StepStatus
	OverrideStatus StepStatus
	RolledBack     bool

	// Success is true iff no required file failed. A dry run is never
	// a success: nothing was installed.
	Success bool
	DryRun  bool
}

func checksumState(ok bool) *bool { return &ok }
