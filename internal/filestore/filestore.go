package filestore

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Digests holds the content hashes computed over a file, keyed by lowercase
// algorithm name ("sha1", "sha256", "md5"), values as lowercase hex.
type Digests map[string]string

// PartPath returns the temporary sibling path used for an in-progress
// download of dest. It is derived purely from dest so a later attempt can
// locate and resume the same partial file.
func PartPath(dest string) string {
	return dest + ".part"
}

// AtomicWrite writes everything from r to dest atomically. The content is
// staged in a temp file in dest's directory, flushed to stable storage, then
// renamed onto dest. On failure the temp file is removed and dest is left
// untouched. Returns the number of bytes written.
func AtomicWrite(dest string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("write %s: %w", dest, err)
	}

	if err := replace(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return n, err
	}
	return n, nil
}

// PromotePart moves the part file for dest onto dest itself. Rename where
// possible, copy+delete fallback across filesystems.
func PromotePart(dest string) error {
	return replace(PartPath(dest), dest)
}

// replace renames src onto dst, falling back to copy+delete when rename
// fails (e.g. src and dst on different filesystems).
func replace(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("promote %s: %w", dst, err)
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".mv-*")
	if err != nil {
		return fmt.Errorf("promote %s: %w", dst, err)
	}
	outName := out.Name()

	_, err = io.Copy(out, in)
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(outName, dst)
	}
	if err != nil {
		os.Remove(outName)
		return fmt.Errorf("promote %s: %w", dst, err)
	}
	os.Remove(src)
	return nil
}

// Verify computes sha1, sha256 and md5 over the file at path in a single
// pass and reports whether at least one entry of expected matches the
// corresponding digest. Comparison is case-insensitive. An empty expected
// map never matches: absence of expectation is not success.
func Verify(path string, expected map[string]string) (bool, Digests, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, nil, fmt.Errorf("verify %s: %w", path, err)
	}
	defer f.Close()

	h1 := sha1.New()
	h256 := sha256.New()
	hm := md5.New()
	if _, err := io.Copy(io.MultiWriter(h1, h256, hm), f); err != nil {
		return false, nil, fmt.Errorf("verify %s: %w", path, err)
	}

	computed := Digests{
		"sha1":   hex.EncodeToString(h1.Sum(nil)),
		"sha256": hex.EncodeToString(h256.Sum(nil)),
		"md5":    hex.EncodeToString(hm.Sum(nil)),
	}

	for algo, want := range expected {
		if want == "" {
			continue
		}
		if got, ok := computed[strings.ToLower(algo)]; ok && strings.EqualFold(got, want) {
			return true, computed, nil
		}
	}
	return false, computed, nil
}

const (
	removeRetries = 3
	removeDelay   = 200 * time.Millisecond
)

// SafeRemove deletes a file or directory tree. Already-gone is success.
// Transient OS errors (e.g. a recently closed handle still locking the file
// on some platforms) are retried a few times before giving up.
func SafeRemove(path string) error {
	var err error
	for attempt := 0; attempt <= removeRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(removeDelay)
		}
		err = os.RemoveAll(path)
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("remove %s: %w", path, err)
}

// FilenameFromHeader extracts a filename from a Content-Disposition header
// value, falling back to the last path segment of fallbackURL. The result is
// sanitized to a bare basename; path separators and traversal sequences are
// stripped. Returns "" when no name can be determined.
func FilenameFromHeader(contentDisposition, fallbackURL string) string {
	if name := filenameFromDisposition(contentDisposition); name != "" {
		return name
	}
	return filenameFromURL(fallbackURL)
}

func filenameFromDisposition(header string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.Trim(strings.TrimSpace(v), `"`)

		switch k {
		case "filename*":
			// RFC 5987: filename*=utf-8''name.ext
			if _, enc, ok := strings.Cut(v, "''"); ok {
				v = enc
			}
			if dec, err := url.PathUnescape(v); err == nil {
				v = dec
			}
		case "filename":
		default:
			continue
		}
		return sanitizeName(v)
	}
	return ""
}

func filenameFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	trimmed := raw
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	trimmed = strings.TrimRight(trimmed, "/")
	if u, err := url.Parse(trimmed); err == nil && u.Path != "" {
		trimmed = u.Path
	}
	return sanitizeName(path.Base(trimmed))
}

// sanitizeName reduces a candidate filename to a bare basename.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

// CopyTree recursively copies the directory tree at src to dst, creating
// dst if needed. File contents and permissions are copied; symlinks are
// skipped.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("copy tree: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("copy tree: %s is not a directory", src)
	}

	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, fi.Mode().Perm())
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
