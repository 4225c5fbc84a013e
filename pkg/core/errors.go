package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrNotFound is returned when no document exists for the given identity.
	ErrNotFound = errors.New("document not found")
	// ErrOriginalNotFound is returned when a patch or comment operation has no
	// document to work on, or when a patch guard does not match the stored version.
	ErrOriginalNotFound = errors.New("original document not found")
	// ErrIO marks transport and backend failures. See IOError.
	ErrIO = errors.New("backend i/o failure")
	// ErrInvalidRequest is returned for malformed requests before any I/O happens.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrConflict is returned by check-and-set writes when the stored version moved.
	ErrConflict = errors.New("version conflict")
	ErrNotInitialized = errors.New("index dao is not initialized")
	ErrUnsupported    = errors.New("operation not supported by backend")
	ErrReadOnly       = errors.New("store is in read-only mode")
)

// IOError carries a transport or backend failure. It matches ErrIO.
type IOError struct {
	Op    string
	Index string
	GUID  string
	Err   error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Index, e.GUID, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// IOFailure wraps err as an IOError unless it already belongs to the taxonomy,
// in which case it is returned unchanged.
func IOFailure(op, index, guid string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrIO, ErrNotFound, ErrConflict, ErrInvalidRequest, ErrReadOnly, ErrUnsupported} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &IOError{Op: op, Index: index, GUID: guid, Err: err}
}

// ConflictError reports a check-and-set mismatch. It matches ErrConflict.
type ConflictError struct {
	GUID     string
	Expected int64
	Current  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected %d, stored %d", e.GUID, e.Expected, e.Current)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// CheckVersion validates a check-and-set precondition against the stored version
// (0 when the document does not exist).
func CheckVersion(guid string, current int64, opts WriteOptions) error {
	if opts.ExpectedVersion == nil || *opts.ExpectedVersion == current {
		return nil
	}
	return &ConflictError{GUID: guid, Expected: *opts.ExpectedVersion, Current: current}
}
