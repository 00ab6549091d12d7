// Package security validates identifiers that end up in file paths.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned for paths that leave their base directory.
var ErrPathTraversal = errors.New("path escapes base directory")

const maxIDLen = 64

// ValidateReciterID checks that id can be used as a file name component:
// non-empty, at most 64 bytes of ASCII letters, digits, '.', '_' or '-',
// and not "." or "..".
func ValidateReciterID(id string) error {
	if id == "" {
		return fmt.Errorf("empty reciter id")
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("reciter id longer than %d bytes", maxIDLen)
	}
	if id == "." || id == ".." {
		return fmt.Errorf("invalid reciter id %q", id)
	}
	for _, r := range id {
		if !safeRune(r) {
			return fmt.Errorf("invalid character %q in reciter id %q", r, id)
		}
	}
	return nil
}

// ValidatePathWithinDirectory checks lexically that path stays inside dir
// once both are cleaned. It does not touch the filesystem, so it works for
// in-memory filesystems too.
func ValidatePathWithinDirectory(path, dir string) error {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("%s: %w", path, ErrPathTraversal)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%s: %w", path, ErrPathTraversal)
	}
	return nil
}

// SanitizeFilename makes a safe file name component from s. Runs of
// unsafe characters become one underscore, leading and trailing dots and
// underscores are trimmed and the result is capped at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		if safeRune(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
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

func safeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	}
	return false
}
