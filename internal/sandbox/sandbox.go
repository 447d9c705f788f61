// Package sandbox confines local writes to a destination directory and makes
// them atomic, so an interrupted write never leaves a partial file behind.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidatePath checks that relPath stays within root once symlinks are
// resolved. It returns the resolved absolute path.
func ValidatePath(root, relPath string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving destination: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolving destination symlinks: %w", err)
	}

	candidate := filepath.Clean(filepath.Join(realRoot, relPath))

	// The path may not exist yet, so resolve as much as we can.
	resolved, err := resolveExistingPath(candidate)
	if err != nil {
		return "", fmt.Errorf("resolving target path: %w", err)
	}

	// Trailing separator so "dest2" does not match "dest".
	rootPrefix := realRoot + string(filepath.Separator)
	if resolved != realRoot && !strings.HasPrefix(resolved, rootPrefix) {
		return "", fmt.Errorf("path '%s' resolves to '%s' which is outside the destination directory '%s'", relPath, resolved, realRoot)
	}

	return resolved, nil
}

// resolveExistingPath resolves symlinks for the longest existing prefix of
// path and appends the non-existing suffix.
func resolveExistingPath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == path {
		return path, nil
	}

	resolvedDir, err := resolveExistingPath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}

// File is a file being written inside a destination directory. Writes go to
// a temporary sibling which Commit renames into place; Abort discards it.
type File struct {
	tmp    *os.File
	path   string
	perm   os.FileMode
	closed bool
}

// Create starts an atomic write of relPath inside root, creating parent
// directories as needed.
func Create(root, relPath string, perm os.FileMode) (*File, error) {
	resolved, err := ValidatePath(root, relPath)
	if err != nil {
		return nil, err
	}
	if _, err := ValidatePath(root, filepath.Dir(relPath)); err != nil {
		return nil, fmt.Errorf("parent directory escapes destination: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	// Same directory so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(dir, ".multi-restic-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return &File{tmp: tmp, path: resolved, perm: perm}, nil
}

// Path returns the final path of the file.
func (f *File) Path() string {
	return f.path
}

func (f *File) Write(p []byte) (int, error) {
	return f.tmp.Write(p)
}

// Commit flushes the temporary file and renames it over the final path.
// On error the temporary file is removed.
func (f *File) Commit() error {
	if f.closed {
		return fmt.Errorf("file %s already closed", f.path)
	}
	f.closed = true
	tmpPath := f.tmp.Name()

	err := f.tmp.Sync()
	if err == nil {
		err = f.tmp.Close()
	} else {
		_ = f.tmp.Close()
	}
	if err == nil {
		err = os.Chmod(tmpPath, f.perm)
	}
	if err == nil {
		err = os.Rename(tmpPath, f.path)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (f *File) Abort() {
	if f.closed {
		return
	}
	f.closed = true
	_ = f.tmp.Close()
	_ = os.Remove(f.tmp.Name())
}

// SafeWrite atomically writes content to relPath inside root.
func SafeWrite(root, relPath string, content []byte, perm os.FileMode) error {
	f, err := Create(root, relPath, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Abort()
		return fmt.Errorf("writing temp file: %w", err)
	}
	return f.Commit()
}
