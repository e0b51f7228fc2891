// Package upload spools uploaded documents to disk so they can be extracted
// by path.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("upload exceeds size limit")
	// ErrInvalidName is returned for empty names or names that try to escape the spool.
	ErrInvalidName = errors.New("invalid upload name")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Spool stores uploads under one directory with collision-free names.
type Spool struct {
	dir      string
	maxBytes int64
}

// NewSpool creates dir if needed. maxBytes <= 0 means no limit.
func NewSpool(dir string, maxBytes int64) (*Spool, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Spool{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string { return s.dir }

// Save writes r to a new file named after name, keeping its extension, and
// returns the file's path. Partial files are removed on error.
func (s *Spool) Save(name string, r io.Reader) (string, error) {
	clean, err := sanitize(name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, uuid.NewString()+"-"+clean)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path, nil
}

// Remove deletes a spooled file. Paths outside the spool are rejected.
func (s *Spool) Remove(path string) error {
	if !inDir(s.dir, path) || filepath.Clean(path) == filepath.Clean(s.dir) {
		return ErrInvalidName
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// UsageBytes returns the total size of files currently in the spool.
func (s *Spool) UsageBytes() (int64, error) {
	return DiskUsageBytes(s.dir)
}

// sanitize reduces name to a safe base name. Path separators and dot names are
// rejected rather than stripped.
func sanitize(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidName
	}
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "_.")
	if base == "" {
		base = "upload"
	}
	ext = unsafeChars.ReplaceAllString(ext, "")
	return base + ext, nil
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
