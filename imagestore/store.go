// Package imagestore keeps uploaded report images on disk and resolves
// image references for content validation.
package imagestore

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store is a directory-backed image store.
type Store struct {
	dir string
}

// New creates the backing directory if needed and returns the store.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating image directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the on-disk location for a stored reference.
func (s *Store) Path(ref string) string {
	return filepath.Join(s.dir, filepath.Base(ref))
}

// Exists reports whether the reference resolves to a stored image.
func (s *Store) Exists(ref string) bool {
	info, err := os.Stat(s.Path(ref))
	return err == nil && !info.IsDir()
}

// Size returns the stored image size in bytes.
func (s *Store) Size(ref string) (int64, error) {
	info, err := os.Stat(s.Path(ref))
	if err != nil {
		return 0, fmt.Errorf("stat image %s: %w", ref, err)
	}
	return info.Size(), nil
}

// Save writes image data under a sanitized version of the client filename
// plus a short random suffix, and returns the stored reference.
func (s *Store) Save(filename string, data []byte) (string, error) {
	base := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "." {
		ext = ""
	}
	name := unsafeChars.ReplaceAllString(strings.TrimSuffix(base, filepath.Ext(base)), "_")
	name = strings.Trim(name, "._-")
	if name == "" {
		name = "report"
	}

	id := uuid.New()
	ref := fmt.Sprintf("%s_%s%s", name, hex.EncodeToString(id[:])[:8], ext)
	if err := os.WriteFile(filepath.Join(s.dir, ref), data, 0o644); err != nil {
		return "", fmt.Errorf("writing image %s: %w", ref, err)
	}
	return ref, nil
}
