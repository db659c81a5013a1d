// Package gitignore compiles .gitignore patterns and matches paths
// against them. Rules follow the git documentation: blank lines and
// comments are skipped, "!" negates, a trailing "/" restricts a rule
// to directories, and a leading or embedded "/" anchors the rule to
// the directory the file was loaded from. The last matching rule wins.
package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// rule is one compiled pattern line.
type rule struct {
	pattern  string
	regex    *regexp.Regexp
	negation bool
	dirOnly  bool
	anchored bool
}

// Matcher holds an ordered rule set loaded from one .gitignore file.
// Paths are matched relative to the directory that file lives in,
// slash-separated. Safe for concurrent use.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

// New returns an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// NewFromFile loads path into a fresh Matcher. A missing file yields
// an empty matcher, not an error.
func NewFromFile(path string) (*Matcher, error) {
	m := New()
	if err := m.AddFromFile(path); err != nil {
		return nil, err
	}
	return m, nil
}

// AddFromFile appends every pattern line in path to the rule set.
// A missing file is not an error.
func (m *Matcher) AddFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open gitignore %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if err := m.AddPattern(sc.Text()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read gitignore %s: %w", path, err)
	}
	return nil
}

// AddPatterns appends each pattern in order.
func (m *Matcher) AddPatterns(patterns []string) error {
	for _, p := range patterns {
		if err := m.AddPattern(p); err != nil {
			return err
		}
	}
	return nil
}

// AddPattern compiles one pattern line and appends it. Blank lines and
// comment lines are silently skipped.
func (m *Matcher) AddPattern(pattern string) error {
	// Trailing spaces are insignificant unless escaped with backslash.
	for strings.HasSuffix(pattern, " ") && !strings.HasSuffix(pattern, `\ `) {
		pattern = strings.TrimSuffix(pattern, " ")
	}
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return nil
	}

	r := rule{pattern: pattern}

	if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = pattern[1:]
	}
	// "\#" and "\!" are literal leading characters.
	if strings.HasPrefix(pattern, `\#`) || strings.HasPrefix(pattern, `\!`) {
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	} else if strings.Contains(pattern, "/") {
		// A slash anywhere in the pattern anchors it, per git rules.
		r.anchored = true
	}

	re, err := regexp.Compile("^" + patternToRegex(pattern) + "$")
	if err != nil {
		return fmt.Errorf("compile gitignore pattern %q: %w", r.pattern, err)
	}
	r.regex = re

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
	return nil
}

// Len reports the number of compiled rules.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// Match reports whether relPath is ignored. relPath must be relative
// to the rule base and use forward slashes; isDir tells the matcher
// whether the path names a directory, which directory-only rules need.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	relPath = strings.TrimPrefix(filepath.ToSlash(relPath), "./")
	relPath = strings.Trim(relPath, "/")
	if relPath == "" || relPath == "." {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, r := range m.rules {
		if matchRule(r, relPath, isDir) {
			ignored = !r.negation
		}
	}
	return ignored
}

// matchRule checks one rule against one path. Directory rules also
// cover everything beneath the directory they name.
func matchRule(r rule, relPath string, isDir bool) bool {
	parts := strings.Split(relPath, "/")

	if r.anchored {
		if r.regex.MatchString(relPath) {
			if r.dirOnly {
				return isDir
			}
			return true
		}
		// "build/" anchored also ignores build/anything.
		for i := range parts[:len(parts)-1] {
			if r.regex.MatchString(strings.Join(parts[:i+1], "/")) {
				return true
			}
		}
		return false
	}

	if r.dirOnly {
		// "temp/" matches a temp directory at any depth and the files
		// inside it.
		for i, part := range parts {
			if r.regex.MatchString(part) {
				if i == len(parts)-1 {
					return isDir
				}
				return true
			}
		}
		return false
	}

	if r.regex.MatchString(path.Base(relPath)) {
		return true
	}
	if r.regex.MatchString(relPath) {
		return true
	}
	for _, part := range parts {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// patternToRegex translates gitignore glob syntax into a regular
// expression body. "**/" spans directories, "*" and "?" stop at
// slashes, character classes pass through.
func patternToRegex(pattern string) string {
	var b strings.Builder

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 3
					continue
				}
				if i == 0 || pattern[i-1] == '/' {
					b.WriteString(".*")
					i += 2
					continue
				}
			}
			b.WriteString("[^/]*")
			i++
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				b.WriteString(pattern[i : j+1])
				i = j + 1
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '\\':
			if i+1 < len(pattern) {
				b.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	return b.String()
}
