package app

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// WorkspaceFilter selects workspaces by name with doublestar globs. An empty
// include list admits every workspace; exclude wins over include.
type WorkspaceFilter struct {
	include []string
	exclude []string
}

// NewWorkspaceFilter validates patterns and constructs a filter.
func NewWorkspaceFilter(include, exclude []string) (WorkspaceFilter, error) {
	for _, pattern := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return WorkspaceFilter{}, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
		}
	}
	return WorkspaceFilter{
		include: append([]string(nil), include...),
		exclude: append([]string(nil), exclude...),
	}, nil
}

// Match reports whether name passes the filter.
func (f WorkspaceFilter) Match(name string) bool {
	for _, pattern := range f.exclude {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, pattern := range f.include {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
