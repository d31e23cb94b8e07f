// Package ignore matches file names against gitignore-style pattern files.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFile is the pattern file looked up in a watched directory.
const DefaultFile = ".docragignore"

// ErrBadPattern reports a line that is not a valid glob.
var ErrBadPattern = errors.New("invalid ignore pattern")

type rule struct {
	pattern string
	negate  bool
}

// Matcher holds rules in file order. The last rule matching a name decides,
// so "!keep.pdf" after "*.pdf" re-includes keep.pdf.
type Matcher struct {
	rules []rule
}

// Load reads patterns from path. A missing file yields an empty matcher.
func Load(path string) (*Matcher, error) {
	f, err := os.Open(path) // #nosec G304 -- fixed name inside the watched directory
	if errors.Is(err, fs.ErrNotExist) {
		return &Matcher{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse reads patterns from r, one per line.
func Parse(r io.Reader) (*Matcher, error) {
	m := &Matcher{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		ru, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if _, err := filepath.Match(ru.pattern, ""); err != nil {
			return nil, fmt.Errorf("%w on line %d: %q", ErrBadPattern, lineNo, ru.pattern)
		}
		m.rules = append(m.rules, ru)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// parseLine returns false for blank lines, comments and directory-only
// patterns, which never apply to files.
func parseLine(line string) (rule, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	var r rule
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	// A leading backslash escapes a literal # or !.
	line = strings.TrimPrefix(line, `\`)
	line = strings.TrimPrefix(line, "/")
	if line == "" || strings.HasSuffix(line, "/") {
		return rule{}, false
	}
	r.pattern = line
	return r, true
}

// Match reports whether name is ignored. name is matched as given, so
// callers pass a path relative to the directory holding the pattern file.
func (m *Matcher) Match(name string) bool {
	if m == nil {
		return false
	}
	name = filepath.ToSlash(name)
	ignored := false
	for _, r := range m.rules {
		if ok, _ := filepath.Match(r.pattern, name); ok {
			ignored = !r.negate
		}
	}
	return ignored
}

// Len returns the number of active rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}
