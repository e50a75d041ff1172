package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArchiveDir keeps archived session trail exports on local disk under one
// root directory. Paths are always relative to the root; anything that would
// escape it is rejected.
type ArchiveDir struct {
	root string
}

// NewArchiveDir ensures the root directory exists and returns a handle.
func NewArchiveDir(root string) (*ArchiveDir, error) {
	if root == "" {
		root = "./exports"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &ArchiveDir{root: root}, nil
}

// Save writes one archived export, creating intermediate directories.
func (d *ArchiveDir) Save(relPath string, data []byte) error {
	path, err := d.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare archive directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write archive file: %w", err)
	}
	return nil
}

// Open returns a read-only handle for an archived export.
func (d *ArchiveDir) Open(relPath string) (*os.File, error) {
	path, err := d.resolve(relPath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive file: %w", err)
	}
	return file, nil
}

// RemoveOlderThan deletes archived files last modified before the cutoff and
// returns how many were removed. Download tokens outlive their TTL for no
// one, so files past it only take up disk.
func (d *ArchiveDir) RemoveOlderThan(cutoff time.Time) (int, error) {
	removed := 0
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweep archive: %w", err)
	}
	return removed, nil
}

// resolve joins the relative path under the root and rejects escapes.
func (d *ArchiveDir) resolve(relPath string) (string, error) {
	if relPath == "" || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("invalid archive path %q", relPath)
	}
	clean := filepath.Clean(relPath)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid archive path %q", relPath)
	}
	return filepath.Join(d.root, clean), nil
}
