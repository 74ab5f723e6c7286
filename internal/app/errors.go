package app

import (
	"errors"
	"fmt"
)

// ErrEnumeration and related errors describe run-level failures.
var (
	ErrNotFound       = errors.New("not found")
	ErrEnumeration    = errors.New("workspace enumeration failed")
	ErrRender         = errors.New("render failed")
	ErrStore          = errors.New("artifact store failed")
	ErrRunInProgress  = errors.New("backup run already in progress")
	ErrUnknownStore   = errors.New("unknown artifact store")
	ErrNoTargets      = errors.New("no artifact targets configured")
	ErrArtifactExists = errors.New("artifact already exists")
	ErrInvalidPattern = errors.New("invalid workspace pattern")
)

// BranchError reports one sub-resource fetch that was degraded to empty.
type BranchError struct {
	WorkspaceID string
	Branch      string
	ID          string
	Err         error
}

// Error implements error.
func (e *BranchError) Error() string {
	return fmt.Sprintf("fetch %s %s for workspace %s: %v", e.Branch, e.ID, e.WorkspaceID, e.Err)
}

// Unwrap returns the underlying fetch error.
func (e *BranchError) Unwrap() error {
	return e.Err
}
