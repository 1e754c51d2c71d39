// Package sandbox confines guest-supplied paths to the workspace root.
package sandbox

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/osagent/domain/capability"
)

// maxLinkDepth bounds symlink chains while canonicalizing.
const maxLinkDepth = 40

var (
	errAbsolute = capability.InvalidArgument("absolute paths are not allowed")
	errParent   = capability.InvalidArgument("parent segments are not allowed")
	errEscape   = capability.Denied("path escapes workspace root")
	errLoop     = capability.InvalidArgument("too many levels of symbolic links")
)

// Resolve joins relative onto base and checks the canonical result stays
// under root. root must already be canonical. Absolute paths and ".."
// segments are rejected before the filesystem is consulted.
func Resolve(root, base, relative string) (string, error) {
	if filepath.IsAbs(relative) || strings.HasPrefix(relative, "/") || filepath.VolumeName(relative) != "" {
		return "", errAbsolute
	}

	joined := base
	for _, seg := range strings.FieldsFunc(relative, isSeparator) {
		switch seg {
		case ".":
			continue
		case "..":
			return "", errParent
		}
		joined = filepath.Join(joined, seg)
	}

	canonical, err := Canonicalize(joined)
	if err != nil {
		return "", err
	}
	if err := EnsureWithin(root, canonical); err != nil {
		return "", err
	}
	return canonical, nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == filepath.Separator
}

// EnsureWithin checks that candidate equals root or lies beneath it.
func EnsureWithin(root, candidate string) error {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)
	if candidate == root {
		return nil
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if strings.HasPrefix(candidate, prefix) {
		return nil
	}
	return errEscape
}

// Canonicalize returns the absolute, symlink-free form of path. Components
// that do not exist yet are kept verbatim on top of the deepest existing
// ancestor, so paths about to be created canonicalize too.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", capability.FromIO("resolve path", err)
	}
	return canonicalize(abs, 0)
}

func canonicalize(abs string, depth int) (string, error) {
	if depth > maxLinkDepth {
		return "", errLoop
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", capability.FromIO("resolve path", err)
	}

	dir, name := filepath.Split(abs)
	dir = filepath.Clean(dir)
	if dir == abs || name == "" {
		return abs, nil
	}

	parent, err := canonicalize(dir, depth+1)
	if err != nil {
		return "", err
	}
	candidate := filepath.Join(parent, name)

	// A dangling symlink must be followed: creating through it would write
	// wherever it points.
	info, err := os.Lstat(candidate)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return candidate, nil
	}
	target, err := os.Readlink(candidate)
	if err != nil {
		return "", capability.FromIO("resolve path", err)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(parent, target)
	}
	return canonicalize(filepath.Clean(target), depth+1)
}

// CanonicalRoot canonicalizes a workspace root, falling back to the
// absolute form when the path cannot be resolved.
func CanonicalRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
