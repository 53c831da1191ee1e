// Package pathset expands literal paths and glob patterns into a
// deduplicated, ordered sequence of absolute file paths.
package pathset

import (
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PathSet is a validated collection of literal paths and glob patterns.
//
// A PathSet holds no iteration state. Each call to All starts a fresh pass
// with its own dedup memory, so the same PathSet can be walked many times.
type PathSet struct {
	patterns []string
}

// New validates patterns and returns a PathSet.
// Every entry must either name an existing regular file or be a valid glob
// pattern containing at least one wildcard. All offending entries are
// reported together in a single *InvalidPatternError.
func New(patterns []string) (*PathSet, error) {
	var invalid []InvalidEntry
	for _, p := range patterns {
		if reason := checkPattern(p); reason != "" {
			invalid = append(invalid, InvalidEntry{Pattern: p, Reason: reason})
		}
	}
	if len(invalid) > 0 {
		return nil, &InvalidPatternError{Entries: invalid}
	}

	return &PathSet{patterns: append([]string(nil), patterns...)}, nil
}

// Patterns returns a copy of the patterns the set was built from.
func (s *PathSet) Patterns() []string {
	return append([]string(nil), s.patterns...)
}

// Len returns the number of patterns in the set.
func (s *PathSet) Len() int {
	return len(s.patterns)
}

// All returns a lazy sequence of absolute paths.
// Patterns are visited in order; a literal file is yielded as-is and a glob
// is expanded recursively (** crosses directories). A path already yielded
// earlier in the same pass is skipped.
func (s *PathSet) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})

		emit := func(path string) bool {
			abs := absPath(path)
			if _, ok := seen[abs]; ok {
				return true
			}
			seen[abs] = struct{}{}
			return yield(abs)
		}

		for _, pattern := range s.patterns {
			if isRegularFile(pattern) {
				if !emit(pattern) {
					return
				}
				continue
			}

			// Validated at construction, so the only failure left is a
			// filesystem error mid-walk; those are ignored like filepath.Glob.
			matches, _ := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
			for _, match := range matches {
				if !emit(match) {
					return
				}
			}
		}
	}
}

// Resolve runs one full pass and returns the collected paths.
func (s *PathSet) Resolve() []string {
	var result []string
	for path := range s.All() {
		result = append(result, path)
	}
	return result
}

// HasMeta reports whether s contains a glob metacharacter.
func HasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// checkPattern returns an empty string when p is acceptable, or the reason
// it was rejected.
func checkPattern(p string) string {
	if p == "" {
		return "empty pattern"
	}

	info, err := os.Stat(p)
	if err == nil {
		if info.Mode().IsRegular() {
			return ""
		}
		if !HasMeta(p) {
			return "not a regular file"
		}
	}

	if !HasMeta(p) {
		return "no such file"
	}

	if !doublestar.ValidatePathPattern(filepath.ToSlash(p)) {
		return "malformed glob pattern"
	}

	return ""
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
