// Package scope selects the repository paths that take part in analysis
// using doublestar glob rules.
package scope

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Scope matches paths against include and exclude patterns.
type Scope struct {
	include []string
	exclude []string
}

// New creates a scope. A path is in scope if it matches any include pattern
// and no exclude pattern; an empty include list matches every path.
func New(include, exclude []string) (*Scope, error) {
	for _, pattern := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
	}
	return &Scope{
		include: append([]string(nil), include...),
		exclude: append([]string(nil), exclude...),
	}, nil
}

// Match reports whether path is in scope.
func (s *Scope) Match(path string) bool {
	if matchAny(s.exclude, path) {
		return false
	}
	return len(s.include) == 0 || matchAny(s.include, path)
}

// Filter returns the paths that are in scope, in order.
func (s *Scope) Filter(paths []string) []string {
	var out []string
	for _, p := range paths {
		if s.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		match, err := doublestar.Match(pattern, path)
		if err != nil {
			continue
		}
		if match {
			return true
		}
	}
	return false
}
