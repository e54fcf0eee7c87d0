// Package files stores attachment bytes on disk under opaque names.
//
// Stored names are generated, never caller-supplied, so the original file
// name can't influence paths on disk or collide across uploads.
package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store writes and serves attachment files from a single directory.
type Store struct {
	dir string
}

// New creates a file store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("files directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create files directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes content to disk and returns the generated stored name.
//
// The stored name keeps the original extension so served files carry a
// usable content type, but nothing else of the original name survives.
func (s *Store) Save(originalName string, content io.Reader) (string, error) {
	ext := sanitizeExt(filepath.Ext(originalName))
	storedName := uuid.NewString() + ext

	file, err := os.OpenFile(filepath.Join(s.dir, storedName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create stored file: %w", err)
	}
	if _, err := io.Copy(file, content); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("write stored file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close stored file: %w", err)
	}
	return storedName, nil
}

// Open returns the stored file for serving.
func (s *Store) Open(storedName string) (*os.File, error) {
	if !validStoredName(storedName) {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(s.dir, storedName))
}

// Remove deletes a stored file. Missing files are not an error: the
// metadata row is the source of truth and may outlive a lost file.
func (s *Store) Remove(storedName string) error {
	if !validStoredName(storedName) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, storedName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stored file: %w", err)
	}
	return nil
}

// validStoredName accepts only flat generated names; anything that could
// escape the directory is rejected.
func validStoredName(storedName string) bool {
	if storedName == "" {
		return false
	}
	if strings.ContainsAny(storedName, "/\\") || strings.Contains(storedName, "..") {
		return false
	}
	return true
}

// sanitizeExt keeps only short, plain extensions.
func sanitizeExt(ext string) string {
	if len(ext) > 16 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return strings.ToLower(ext)
}
