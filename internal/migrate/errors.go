package migrate

import (
	"errors"
	"fmt"
)

// ErrParse marks a malformed migration filename or content.
var ErrParse = errors.New("migration parse error")

// ErrStateConflict signals a version recorded twice with different content.
var ErrStateConflict = errors.New("migration state conflict")

// ErrChecksumMismatch signals drift: an already-applied migration file no
// longer matches the checksum recorded when it ran.
var ErrChecksumMismatch = errors.New("migration checksum mismatch")

// ParseError carries the offending filename.
type ParseError struct {
	Filename string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse migration %q: %s", e.Filename, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// StateConflictError is raised when recording a version whose stored
// checksum differs from the attempted one. Stored state is never mutated.
type StateConflictError struct {
	Version   int
	Recorded  string
	Attempted string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("migration %d already recorded with checksum %s, attempted to record with checksum %s",
		e.Version, e.Recorded, e.Attempted)
}

func (e *StateConflictError) Unwrap() error {
	return ErrStateConflict
}

// ChecksumMismatchError reports drift for a single migration version.
type ChecksumMismatchError struct {
	Version  int
	Name     string
	Recorded string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("migration V%d__%s checksum mismatch: recorded=%s, file=%s",
		e.Version, e.Name, e.Recorded, e.Actual)
}

func (e *ChecksumMismatchError) Unwrap() error {
	return ErrChecksumMismatch
}
