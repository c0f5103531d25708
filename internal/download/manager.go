package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hallgren/cfpack/internal/filestore"
)

// Common errors.
var (
	ErrNotFound         = errors.New("download: resource not found")
	ErrRateLimited      = errors.New("download: rate limited")
	ErrServer           = errors.New("download: server error")
	ErrChecksumMismatch = errors.New("download: checksum mismatch")
	ErrRangeMismatch    = errors.New("download: requested range not satisfiable")
)

// Options configures the download manager.
type Options struct {
	// MaxAttempts is the per-download attempt budget.
	// Default: 4
	MaxAttempts int

	// Backoff is the initial retry delay.
	// Default: 600ms
	Backoff time.Duration

	// MaxBackoff caps the exponential retry delay.
	// Default: 30s
	MaxBackoff time.Duration

	// Timeout for individual requests.
	// Default: 30s
	Timeout time.Duration

	// ChunkSize is the streaming buffer size.
	// Default: 32KiB
	ChunkSize int

	// UserAgent sets the User-Agent header on download requests.
	UserAgent string

	// Logger receives retry and rate-limit messages.
	// Default: discard.
	Logger *log.Logger
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 4,
		Backoff:     600 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
		Timeout:     30 * time.Second,
		ChunkSize:   32 * 1024,
	}
}

// ProgressFunc receives streaming progress after each chunk.
// total is -1 when the remote did not declare a content length.
type ProgressFunc func(written, total int64)

// FetchSpec describes one download.
type FetchSpec struct {
	// Filename fixes the destination name inside the folder. When empty the
	// name is derived from the URL's last path segment, falling back to a
	// Content-Disposition name revealed by the transport.
	Filename string

	// ExpectedHashes maps algorithm name to lowercase hex digest. When
	// non-empty, the completed file must match at least one entry or the
	// download fails.
	ExpectedHashes map[string]string

	// Progress is an optional per-chunk callback.
	Progress ProgressFunc

	// NoResume disables resuming from an existing ".part" file.
	NoResume bool

	// MaxAttempts overrides the manager's attempt budget when positive.
	MaxAttempts int
}

// Result is the outcome of one download. Bytes counts what the last
// attempt transferred over the wire; data already on disk from a resumed
// partial is not included.
type Result struct {
	URL      string
	Path     string
	Success  bool
	Attempts int
	Bytes    int64
	Err      error
}

// Manager downloads files with resume, verification and retries.
// It is safe for concurrent use.
type Manager struct {
	client *http.Client
	opts   Options
}

// NewManager creates a Manager with the given options.
func NewManager(opts Options) *Manager {
	def := DefaultOptions()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = def.Backoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = def.MaxBackoff
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Manager{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// FetchURL downloads url into folder, creating it if needed. The final
// filename follows FetchSpec.Filename, then the URL basename, then a
// transport-revealed name. Retries transient failures up to the attempt
// budget; all failures are reported through the Result.
func (m *Manager) FetchURL(ctx context.Context, url, folder string, spec FetchSpec) Result {
	result := Result{URL: url}

	if err := os.MkdirAll(folder, 0o755); err != nil {
		result.Err = fmt.Errorf("create folder: %w", err)
		return result
	}

	name := spec.Filename
	if name == "" {
		name = filestore.FilenameFromHeader("", url)
	}
	if name == "" {
		name = fmt.Sprintf("download-%d", time.Now().UnixNano())
	}
	dest := filepath.Join(folder, name)

	maxAttempts := m.opts.MaxAttempts
	if spec.MaxAttempts > 0 {
		maxAttempts = spec.MaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		out := m.attempt(ctx, url, dest, spec)
		result.Bytes = out.bytes
		if out.err == nil {
			result.Path = out.finalPath
			result.Success = true
			result.Err = nil
			return result
		}
		result.Err = out.err

		if errors.Is(out.err, ErrNotFound) || ctx.Err() != nil {
			return result
		}
		if attempt == maxAttempts {
			break
		}

		delay := m.backoffDelay(attempt)
		switch {
		case errors.Is(out.err, ErrRateLimited):
			if out.retryAfter > 0 {
				delay = out.retryAfter
			}
			m.opts.Logger.Warn("rate limited", "url", url, "wait", delay)
		case errors.Is(out.err, ErrRangeMismatch), errors.Is(out.err, ErrChecksumMismatch):
			// Discard the partial so the next attempt starts fresh.
			_ = filestore.SafeRemove(filestore.PartPath(dest))
		}

		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			return result
		case <-time.After(delay):
		}
	}
	return result
}

// outcome is the classified result of one attempt.
type outcome struct {
	bytes      int64
	finalPath  string
	retryAfter time.Duration
	err        error
}

func (m *Manager) attempt(ctx context.Context, url, dest string, spec FetchSpec) outcome {
	part := filestore.PartPath(dest)

	var existing int64
	if !spec.NoResume {
		if info, err := os.Stat(part); err == nil {
			existing = info.Size()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return outcome{err: fmt.Errorf("create request: %w", err)}
	}
	if m.opts.UserAgent != "" {
		req.Header.Set("User-Agent", m.opts.UserAgent)
	}
	if existing > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existing))
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return outcome{err: fmt.Errorf("request %s: %w", url, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return outcome{err: fmt.Errorf("%w: HTTP %d for %s", ErrNotFound, resp.StatusCode, url)}
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// Local partial disagrees with the remote resource.
		_ = filestore.SafeRemove(part)
		return outcome{err: fmt.Errorf("%w: HTTP 416 for %s", ErrRangeMismatch, url)}
	case resp.StatusCode == http.StatusTooManyRequests:
		ra := parseRetryAfter(resp.Header.Get("Retry-After"))
		return outcome{retryAfter: ra, err: fmt.Errorf("%w: HTTP 429 for %s", ErrRateLimited, url)}
	case resp.StatusCode >= 500:
		return outcome{err: fmt.Errorf("%w: HTTP %d %s", ErrServer, resp.StatusCode, resp.Status)}
	case resp.StatusCode >= 400:
		return outcome{err: fmt.Errorf("download: HTTP %d %s for %s", resp.StatusCode, resp.Status, url)}
	}

	// Server ignored the range request; start over.
	if existing > 0 && resp.StatusCode == http.StatusOK {
		existing = 0
	}

	total := resp.ContentLength
	if total >= 0 && existing > 0 && resp.StatusCode == http.StatusPartialContent {
		total += existing
	}

	written, err := m.stream(resp.Body, part, existing, total, spec.Progress)
	if err != nil {
		// Keep the partial for a later resume.
		return outcome{bytes: written, err: err}
	}

	if err := filestore.PromotePart(dest); err != nil {
		return outcome{bytes: written, err: err}
	}

	if len(spec.ExpectedHashes) > 0 {
		ok, _, err := filestore.Verify(dest, spec.ExpectedHashes)
		if err != nil {
			_ = filestore.SafeRemove(dest)
			return outcome{bytes: written, err: fmt.Errorf("verify: %w", err)}
		}
		if !ok {
			_ = filestore.SafeRemove(dest)
			return outcome{bytes: written, err: fmt.Errorf("%w after downloading %s", ErrChecksumMismatch, url)}
		}
	}

	final := dest
	if spec.Filename == "" {
		// The transport may reveal a better name than the URL guess.
		if name := filestore.FilenameFromHeader(resp.Header.Get("Content-Disposition"), ""); name != "" && name != filepath.Base(dest) {
			renamed := filepath.Join(filepath.Dir(dest), name)
			if err := os.Rename(dest, renamed); err == nil {
				final = renamed
			}
		}
	}
	return outcome{bytes: written, finalPath: final}
}

// stream appends the response body to the part file, reporting progress
// after each chunk, and forces the data to stable storage before returning.
// The returned count covers this call only; a resumed offset feeds the
// progress callback but is not counted as transferred.
func (m *Manager) stream(body io.Reader, part string, existing, total int64, progress ProgressFunc) (int64, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if existing > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(part, flags, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open part file: %w", err)
	}

	position := existing
	var written int64
	if progress != nil {
		progress(position, total)
	}

	buf := make([]byte, m.opts.ChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				return written, fmt.Errorf("write part file: %w", werr)
			}
			position += int64(n)
			written += int64(n)
			if progress != nil {
				progress(position, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			return written, fmt.Errorf("read body: %w", readErr)
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return written, fmt.Errorf("sync part file: %w", err)
	}
	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close part file: %w", err)
	}
	return written, nil
}

// backoffDelay computes the exponential retry delay with ±10% jitter.
func (m *Manager) backoffDelay(attempt int) time.Duration {
	delay := m.opts.Backoff * time.Duration(1<<uint(attempt-1))
	if delay > m.opts.MaxBackoff {
		delay = m.opts.MaxBackoff
	}
	jitter := 0.9 + 0.2*rand.Float64()
	return time.Duration(float64(delay) * jitter)
}

// parseRetryAfter interprets a Retry-After header as either delay seconds
// or an HTTP date. Returns 0 when absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
