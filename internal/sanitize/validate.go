// Package sanitize validates paths and filenames supplied by clients.
package sanitize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	// ErrPathTraversal reports a path that climbs out of where it may go.
	ErrPathTraversal = errors.New("path escapes its root")

	// ErrEmptyPath reports a blank path.
	ErrEmptyPath = errors.New("path is empty")
)

const (
	// MaxFilenameLength bounds filenames stored with chunk metadata.
	MaxFilenameLength = 255

	// DefaultFilename replaces names that sanitize to nothing.
	DefaultFilename = "upload"
)

// ResolvePath turns a client-supplied path into an absolute one.
//
// Any ".." element is rejected outright. When root is set the path, with
// symlinks followed, must also lie inside root; a path that does not exist
// yet is checked lexically.
func ResolvePath(path, root string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	for _, elem := range strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' }) {
		if elem == ".." {
			return "", fmt.Errorf("%w: %q contains '..'", ErrPathTraversal, path)
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}
	if root == "" {
		return abs, nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root %q: %w", root, err)
	}
	if !within(evalSymlinks(absRoot), evalSymlinks(abs)) {
		return "", fmt.Errorf("%w: %q is outside %q", ErrPathTraversal, path, root)
	}
	return abs, nil
}

// BaseName is the last element of a path returned by ResolvePath.
func BaseName(path string) (string, error) {
	base := filepath.Base(path)
	switch base {
	case "", ".", string(filepath.Separator):
		return "", fmt.Errorf("%w: %q has no file name", ErrEmptyPath, path)
	}
	return base, nil
}

func evalSymlinks(p string) string {
	if real, err := filepath.EvalSymlinks(p); err == nil {
		return real
	}
	return p
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// Filename reduces a client-supplied filename to a display-safe base name.
// Directory components and control characters are dropped and the result is
// truncated to MaxFilenameLength bytes on a rune boundary. Names that reduce
// to nothing become DefaultFilename.
func Filename(name string) string {
	// Browsers on Windows may send full paths with backslashes.
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if len(name) > MaxFilenameLength {
		cut := MaxFilenameLength
		for cut > 0 && !isRuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	if name == "" || name == "." || name == ".." {
		return DefaultFilename
	}
	return name
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
