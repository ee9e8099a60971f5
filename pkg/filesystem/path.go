package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SafeJoin joins filename onto baseDir, rejecting anything that would escape
// the base directory. Used for identity files and the blob cache directory,
// both of which take operator-supplied names.
func SafeJoin(baseDir, filename string) (string, error) {
	clean := filepath.Clean(filename)
	if filepath.IsAbs(clean) || strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid filename %q: path traversal not allowed", filename)
	}

	full := filepath.Join(baseDir, clean)

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve base directory: %w", err)
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(absBase, absFull)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes base directory", filename)
	}

	return full, nil
}

// EnsureDir creates dir (and parents) with owner-only group access.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
