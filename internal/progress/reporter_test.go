package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1.00 MB"},
		{256 * 1024 * 1024, "256.00 MB"},
		{1024 * 1024 * 1024, "1.00 GB"},
		{1024 * 1024 * 1024 * 1024, "1.00 TB"},
	}

	for _, tt := range tests {
		result := FormatBytes(tt.input)
		if result != tt.expected {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"100", 100},
		{"100B", 100},
		{"1KB", 1024},
		{"1.5KB", 1536},
		{"256MB", 256 * 1024 * 1024},
		{"1GB", 1024 * 1024 * 1024},
		{"1TB", 1024 * 1024 * 1024 * 1024},
	}

	for _, tt := range tests {
		result, err := ParseBytes(tt.input)
		if err != nil {
			t.Errorf("ParseBytes(%q): %v", tt.input, err)
			continue
		}
		if result != tt.expected {
			t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, result, tt.expected)
		}
	}
}

func TestParseBytesInvalid(t *testing.T) {
	_, err := ParseBytes("invalid")
	if err == nil {
		t.Error("expected error for invalid input")
	}
}

func TestReporterFileTracking(t *testing.T) {
	reporter := NewReporter(Options{
		TotalFiles:     4,
		Workers:        2,
		UpdateInterval: 100 * time.Millisecond,
	})

	// Track files without starting the display loop
	reporter.FileStarted()
	if reporter.inProgress.Load() != 1 {
		t.Errorf("expected 1 in-progress, got %d", reporter.inProgress.Load())
	}

	reporter.FileCompleted(256)
	if reporter.inProgress.Load() != 0 {
		t.Errorf("expected 0 in-progress after complete, got %d", reporter.inProgress.Load())
	}
	if reporter.completedFiles.Load() != 1 {
		t.Errorf("expected 1 completed, got %d", reporter.completedFiles.Load())
	}
	if reporter.completedBytes.Load() != 256 {
		t.Errorf("expected 256 bytes, got %d", reporter.completedBytes.Load())
	}

	reporter.FileStarted()
	reporter.FileFailed()
	if reporter.inProgress.Load() != 0 {
		t.Errorf("expected 0 in-progress after fail, got %d", reporter.inProgress.Load())
	}
	if reporter.failedFiles.Load() != 1 {
		t.Errorf("expected 1 failed, got %d", reporter.failedFiles.Load())
	}
}

func TestReporterStartStop(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewReporter(Options{
		TotalFiles:     4,
		Workers:        2,
		UpdateInterval: 10 * time.Millisecond,
		PackName:       "example pack",
		Output:         &buf,
	})

	reporter.Start()

	reporter.FileStarted()
	reporter.FileCompleted(256 * 1024)

	reporter.FileStarted()
	reporter.FileCompleted(256 * 1024)

	time.Sleep(50 * time.Millisecond) // Let updates run

	reporter.Stop()

	if reporter.completedFiles.Load() != 2 {
		t.Errorf("expected 2 completed files, got %d", reporter.completedFiles.Load())
	}
	if reporter.completedBytes.Load() != 512*1024 {
		t.Errorf("expected 512KB completed, got %d", reporter.completedBytes.Load())
	}
	if !strings.Contains(buf.String(), "example pack") {
		t.Error("header should name the pack")
	}
	// Stop waits for the final status line.
	if !strings.Contains(buf.String(), "2 completed | 0 failed") {
		t.Errorf("final status missing from output:\n%s", buf.String())
	}
}

func TestReporterStopTwice(t *testing.T) {
	reporter := NewReporter(Options{Output: &bytes.Buffer{}})
	reporter.Start()
	reporter.Stop()
	reporter.Stop() // must not panic
}
