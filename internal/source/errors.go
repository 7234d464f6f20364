package source

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned by Check when the backing tool is not
// installed. The orchestrator treats it as a skip, not a failure.
var ErrUnavailable = errors.New("source unavailable")

// ErrTimeout is wrapped into the error chain when an external tool
// exceeds the guard timeout and is forcibly terminated.
var ErrTimeout = errors.New("external tool timed out")

// CheckError reports an abnormal external-tool termination during Check.
type CheckError struct {
	SourceID string
	Err      error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%s: check failed: %v", e.SourceID, e.Err)
}

func (e *CheckError) Unwrap() error { return e.Err }

// ApplyError reports an abnormal external-tool termination during Apply.
type ApplyError struct {
	SourceID string
	Err      error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s: apply failed: %v", e.SourceID, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }
