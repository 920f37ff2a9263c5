package model

import (
	"errors"
	"fmt"
)

// Reason is a stable, machine-readable failure code.
type Reason string

const (
	ReasonValidation       Reason = "validation_error"
	ReasonNotFound         Reason = "not_found"
	ReasonPermissionDenied Reason = "permission_denied"
	ReasonUnauthorized     Reason = "unauthorized"
	ReasonConflict         Reason = "conflict"
	ReasonUnauthenticated  Reason = "unauthenticated"
	// Batch-only reasons; no request fails with these.
	ReasonInternal Reason = "internal_error"
	ReasonExpired  Reason = "expired"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its Reason.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("memory not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthorized     = errors.New("access denied")
	ErrConflict         = errors.New("already exists")
	ErrUnauthenticated  = errors.New("authentication failed")
)

var sentinels = map[Reason]error{
	ReasonValidation:       ErrValidation,
	ReasonNotFound:         ErrNotFound,
	ReasonPermissionDenied: ErrPermissionDenied,
	ReasonUnauthorized:     ErrUnauthorized,
	ReasonConflict:         ErrConflict,
	ReasonUnauthenticated:  ErrUnauthenticated,
}

// Error is a domain failure with a reason code.
type Error struct {
	Reason Reason
	Msg    string
}

func (e *Error) Error() string { return e.Msg }

// Is matches the sentinel belonging to e.Reason.
func (e *Error) Is(target error) bool {
	return sentinels[e.Reason] == target
}

// Validationf returns a validation error.
func Validationf(format string, args ...any) error {
	return &Error{Reason: ReasonValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a not-found error for id.
func NotFound(id string) error {
	return &Error{Reason: ReasonNotFound, Msg: fmt.Sprintf("memory not found: %s", id)}
}

// NotFoundf returns a not-found error for a non-memory resource.
func NotFoundf(format string, args ...any) error {
	return &Error{Reason: ReasonNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf returns an error for a duplicate resource.
func Conflictf(format string, args ...any) error {
	return &Error{Reason: ReasonConflict, Msg: fmt.Sprintf(format, args...)}
}

// PermissionDenied returns a record-level permission error.
func PermissionDenied(format string, args ...any) error {
	return &Error{Reason: ReasonPermissionDenied, Msg: fmt.Sprintf(format, args...)}
}

// Unauthorized returns a scope-level authorization denial.
func Unauthorized(format string, args ...any) error {
	return &Error{Reason: ReasonUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

// Unauthenticated returns an error for a missing or unknown API key.
func Unauthenticated(format string, args ...any) error {
	return &Error{Reason: ReasonUnauthenticated, Msg: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the reason code from err, or "" for unclassified errors.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
