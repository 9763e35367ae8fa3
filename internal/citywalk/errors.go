package citywalk

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("another path is already in progress")
	ErrAlreadyCompleted = errors.New("path already completed")
	ErrPointNotInPath   = errors.New("point does not belong to path")
)

// ConflictError is returned by start (and by visits that would resume a paused
// path) while the user already walks another path. Active lets the caller
// offer a pause-then-start choice.
type ConflictError struct {
	Active PathProgress
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("path %s is already in progress", e.Active.PathID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
