package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by the operation that surfaced them.
type ErrorKind string

const (
	// KindCapture covers an unavailable device or denied permission.
	KindCapture ErrorKind = "capture"
	// KindUpload covers transport failures and rejected submissions.
	KindUpload ErrorKind = "upload"
	// KindFetch covers an unreachable backend or error responses while syncing.
	KindFetch ErrorKind = "fetch"
)

// Error is the application error carried across component boundaries.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and operation name.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
