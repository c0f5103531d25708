package download

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testManager() *Manager {
	opts := DefaultOptions()
	opts.Backoff = time.Millisecond
	opts.MaxBackoff = 10 * time.Millisecond
	return NewManager(opts)
}

// serveRange implements a minimal range-aware file server for one payload.
func serveRange(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Write(data)
			return
		}
		spec := strings.TrimPrefix(rangeHeader, "bytes=")
		startStr, _, _ := strings.Cut(spec, "-")
		start, _ := strconv.ParseInt(startStr, 10, 64)
		if start >= int64(len(data)) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range",
			"bytes "+strconv.FormatInt(start, 10)+"-"+strconv.Itoa(len(data)-1)+"/"+strconv.Itoa(len(data)))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)-int(start)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start:])
	}))
	t.Cleanup(server.Close)
	return server
}

func sha1hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func TestFetchURLBasic(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	server := serveRange(t, data)
	folder := t.TempDir()

	res := testManager().FetchURL(context.Background(), server.URL+"/files/mod.jar", folder, FetchSpec{
		ExpectedHashes: map[string]string{"sha1": sha1hex(data)},
	})
	if !res.Success {
		t.Fatalf("download failed: %v", res.Err)
	}
	if res.Attempts != 1 {
		t.Fatalf("attempts: got %d, want 1", res.Attempts)
	}
	if res.Path != filepath.Join(folder, "mod.jar") {
		t.Fatalf("path: got %q", res.Path)
	}
	got, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("content mismatch")
	}
	if _, err := os.Stat(res.Path + ".part"); !os.IsNotExist(err) {
		t.Fatal("part file left behind")
	}
}

func TestFetchURLResume(t *testing.T) {
	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i % 251)
	}
	server := serveRange(t, data)
	folder := t.TempDir()
	dest := filepath.Join(folder, "big.bin")

	// Simulate an interrupted download: first half already in the part file.
	half := len(data) / 2
	if err := os.WriteFile(dest+".part", data[:half], 0o644); err != nil {
		t.Fatal(err)
	}

	var firstReported int64 = -1
	res := testManager().FetchURL(context.Background(), server.URL+"/big.bin", folder, FetchSpec{
		ExpectedHashes: map[string]string{"sha1": sha1hex(data)},
		Progress: func(written, total int64) {
			if firstReported < 0 {
				firstReported = written
			}
			if total != int64(len(data)) {
				t.Errorf("total: got %d, want %d", total, len(data))
			}
		},
	})
	if !res.Success {
		t.Fatalf("resume failed: %v", res.Err)
	}
	if firstReported != int64(half) {
		t.Fatalf("progress should start at the resumed offset: got %d, want %d", firstReported, half)
	}
	if want := int64(len(data) - half); res.Bytes != want {
		t.Fatalf("bytes should count only the transferred remainder: got %d, want %d", res.Bytes, want)
	}

	got, _ := os.ReadFile(res.Path)
	if !bytes.Equal(got, data) {
		t.Fatal("resumed file differs from uninterrupted download")
	}
}

func TestFetchURLRetryBudget(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	res := testManager().FetchURL(context.Background(), server.URL+"/f", t.TempDir(), FetchSpec{MaxAttempts: 3})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts: got %d, want 3", res.Attempts)
	}
	if calls.Load() != 3 {
		t.Fatalf("server calls: got %d, want exactly 3", calls.Load())
	}
	if !errors.Is(res.Err, ErrServer) {
		t.Fatalf("error class: got %v", res.Err)
	}
}

func TestFetchURLNotFoundIsTerminal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	res := testManager().FetchURL(context.Background(), server.URL+"/gone.jar", t.TempDir(), FetchSpec{})
	if res.Success {
		t.Fatal("expected failure")
	}
	if !errors.Is(res.Err, ErrNotFound) {
		t.Fatalf("error: got %v, want ErrNotFound", res.Err)
	}
	if calls.Load() != 1 {
		t.Fatalf("404 must not be retried: %d calls", calls.Load())
	}
}

func TestFetchURLRateLimitHonorsRetryAfter(t *testing.T) {
	data := []byte("rate limited payload")
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(data)
	}))
	defer server.Close()

	start := time.Now()
	res := testManager().FetchURL(context.Background(), server.URL+"/limited.jar", t.TempDir(), FetchSpec{})
	elapsed := time.Since(start)

	if !res.Success {
		t.Fatalf("download failed: %v", res.Err)
	}
	if res.Attempts != 2 {
		t.Fatalf("attempts: got %d, want 2", res.Attempts)
	}
	if elapsed < 900*time.Millisecond {
		t.Fatalf("Retry-After not honored: elapsed %v", elapsed)
	}
}

func TestFetchURLRangeMismatchRecovery(t *testing.T) {
	data := []byte("fresh content after 416")
	var sawFresh atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		sawFresh.Store(true)
		w.Write(data)
	}))
	defer server.Close()

	folder := t.TempDir()
	dest := filepath.Join(folder, "stale.bin")
	// Stale partial from an earlier, different version of the resource.
	if err := os.WriteFile(dest+".part", []byte("stale bytes beyond remote length"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := testManager().FetchURL(context.Background(), server.URL+"/stale.bin", folder, FetchSpec{})
	if !res.Success {
		t.Fatalf("recovery failed: %v", res.Err)
	}
	if !sawFresh.Load() {
		t.Fatal("second attempt should have been a fresh, non-ranged request")
	}
	got, _ := os.ReadFile(res.Path)
	if !bytes.Equal(got, data) {
		t.Fatal("content mismatch after recovery")
	}
}

func TestFetchURLChecksumMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("corrupted body"))
	}))
	defer server.Close()

	folder := t.TempDir()
	res := testManager().FetchURL(context.Background(), server.URL+"/x.jar", folder, FetchSpec{
		MaxAttempts:    2,
		ExpectedHashes: map[string]string{"sha1": strings.Repeat("0", 40)},
	})
	if res.Success {
		t.Fatal("expected checksum failure")
	}
	if !errors.Is(res.Err, ErrChecksumMismatch) {
		t.Fatalf("error: got %v", res.Err)
	}
	// Neither the corrupt file nor its partial may remain.
	if _, err := os.Stat(filepath.Join(folder, "x.jar")); !os.IsNotExist(err) {
		t.Fatal("corrupt file left at destination")
	}
}

func TestFetchURLFilenameFromDisposition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="real-name.jar"`)
		w.Write([]byte("named payload"))
	}))
	defer server.Close()

	folder := t.TempDir()
	res := testManager().FetchURL(context.Background(), server.URL+"/download", folder, FetchSpec{})
	if !res.Success {
		t.Fatalf("download failed: %v", res.Err)
	}
	if filepath.Base(res.Path) != "real-name.jar" {
		t.Fatalf("filename: got %q, want real-name.jar", filepath.Base(res.Path))
	}
}

func TestFetchURLContextCancelled(t *testing.T) {
	server := serveRange(t, []byte("data"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := testManager().FetchURL(ctx, server.URL+"/f", t.TempDir(), FetchSpec{})
	if res.Success {
		t.Fatal("expected failure with cancelled context")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"2", 2 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"-3", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.value); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestFetchBulk(t *testing.T) {
	payloads := map[string][]byte{
		"/a.jar": []byte("payload a"),
		"/b.jar": []byte("payload b"),
		"/c.jar": []byte("payload c"),
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := payloads[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer server.Close()

	folder := t.TempDir()
	tasks := []Task{
		{URL: server.URL + "/a.jar", Folder: folder},
		{URL: server.URL + "/b.jar", Folder: folder},
		{URL: server.URL + "/c.jar", Folder: folder},
		{URL: server.URL + "/missing.jar", Folder: folder},
	}

	var done atomic.Int32
	results := testManager().FetchBulk(context.Background(), tasks, 2, func(Result) {
		done.Add(1)
	})

	if len(results) != len(tasks) {
		t.Fatalf("results: got %d, want %d", len(results), len(tasks))
	}
	if done.Load() != int32(len(tasks)) {
		t.Fatalf("onDone calls: got %d, want %d", done.Load(), len(tasks))
	}

	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}
	if succeeded != 3 {
		t.Fatalf("successes: got %d, want 3", succeeded)
	}
}

func TestFetchBulkResolver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("resolved payload"))
	}))
	defer server.Close()

	resolver := resolverFunc(func(ctx context.Context, projectID, fileID int) (string, error) {
		return server.URL + "/resolved.jar", nil
	})

	results := testManager().FetchBulk(context.Background(), []Task{
		{Folder: t.TempDir(), ProjectID: 1, FileID: 2, Resolver: resolver},
	}, 0, nil)

	if len(results) != 1 || !results[0].Success {
		t.Fatalf("resolver task failed: %+v", results)
	}
}

type resolverFunc func(ctx context.Context, projectID, fileID int) (string, error)

func (f resolverFunc) DownloadURL(ctx context.Context, projectID, fileID int) (string, error) {
	return f(ctx, projectID, fileID)
}
