package services

import "errors"

// Service-level error taxonomy. Handlers map these to specific HTTP statuses
// and messages; none of them should ever surface as a generic server error.
var (
	// ErrNotFound: the referenced record does not exist (or is soft-deleted).
	ErrNotFound = errors.New("not found")
	// ErrNotOwner: the requester is not the owner of the record.
	ErrNotOwner = errors.New("not owner")
	// ErrForbidden: the requester lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState: the operation is not legal in the record's current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrWindowExpired: a time-bound operation was attempted past its deadline.
	ErrWindowExpired = errors.New("payment window expired")
	// ErrAmbiguousSelection: contact routing needs the caller to pick a team.
	// A required-input signal, not a failure.
	ErrAmbiguousSelection = errors.New("ambiguous team selection")
	// ErrConflict: a concurrent mutation won the compare-and-set race.
	ErrConflict = errors.New("conflict")
)
