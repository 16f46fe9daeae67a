// Package security guards the file names the CLI derives from flags and
// configuration labels.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory returns an error when filePath, after
// cleaning and symlink resolution of its deepest existing ancestor, lies
// outside dir.
func ValidatePathWithinDirectory(filePath, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory path: %w", err)
	}

	canonicalPath := resolveExisting(absPath)
	canonicalDir := resolveExisting(absDir)

	rel, err := filepath.Rel(canonicalDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, dir)
	}
	return nil
}

// resolveExisting resolves symlinks in the longest existing prefix of an
// absolute path and re-appends the missing tail.
func resolveExisting(abs string) string {
	for p := abs; ; {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			rel, _ := filepath.Rel(p, abs)
			return filepath.Join(resolved, rel)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return abs
		}
		p = parent
	}
}

// SanitizeFilename maps s to a safe file name component: ASCII letters,
// digits, dot, underscore and dash are kept, runs of anything else become
// one underscore. The result is at most 128 bytes and never empty.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
