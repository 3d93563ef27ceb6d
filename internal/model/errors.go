package model

import (
	"errors"
	"fmt"
)

var (
	// ErrSession marks a failure to establish or verify the authenticated
	// browser session. It aborts the whole run.
	ErrSession = errors.New("session unavailable")

	// ErrDuplicatePost is returned by the store when a post id is already
	// recorded. Callers treat it as the boundary with a previous run.
	ErrDuplicatePost = errors.New("post already recorded")
)

// ExtractionFailure is recorded when a handle's page could not be fetched
// within the retry budget.
type ExtractionFailure struct {
	Handle   string
	Attempts int
	Err      error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extract %s: gave up after %d attempt(s): %v", e.Handle, e.Attempts, e.Err)
}

func (e *ExtractionFailure) Unwrap() error { return e.Err }

// TransformError reports which structural step failed while parsing a
// fetched profile. Step names match the transformer's stages.
type TransformError struct {
	Handle string
	Step   string
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: step %s: %v", e.Handle, e.Step, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// PersistenceError wraps any store failure other than a duplicate post.
type PersistenceError struct {
	Handle string
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %s: %v", e.Handle, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
