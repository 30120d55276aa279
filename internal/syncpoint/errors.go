package syncpoint

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrNothingLeft is returned by a recording step once every catalog
	// segment has been recorded. It reports a no-op, not a failure.
	ErrNothingLeft = errors.New("nothing left to record")

	// ErrNotRecording is returned when a recording operation is attempted
	// while no recording session is active.
	ErrNotRecording = errors.New("no recording session in progress")

	// ErrNoPlaybackSource is returned when a recording session is started
	// without an attached playback source.
	ErrNoPlaybackSource = errors.New("no playback source attached")
)

// ValidationError reports malformed input: an import document, a legacy
// blob or an out-of-range time.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return "invalid sync data: " + e.Reason
	}
	return fmt.Sprintf("invalid sync data: %s: %s", e.Field, e.Reason)
}

// PersistenceError reports a storage read or write failure. The durable
// state is unchanged when it is returned, so the operation can be retried.
type PersistenceError struct {
	Op    string
	Err   error
	Quota bool // storage is full
}

func (e *PersistenceError) Error() string {
	if e == nil {
		return ""
	}
	if e.Quota {
		return fmt.Sprintf("%s: storage full: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PreconditionError reports an operation attempted in the wrong state.
// No state changes when it is returned.
type PreconditionError struct {
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPersistence reports whether err is or wraps a *PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsPrecondition reports whether err is or wraps a *PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
