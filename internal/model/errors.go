package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrExists        = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyClosed = errors.New("already closed")

	// ErrConstraint marks a write that would break a session invariant,
	// e.g. a second open session for the same subject and day.
	ErrConstraint = errors.New("constraint violation")

	// ErrStoreUnavailable marks a transient durability-layer failure.
	// Safe to retry, except inserts, which must be confirmed absent first.
	ErrStoreUnavailable = errors.New("store unavailable")
)

func NewError(model string, err error) error {
	return fmt.Errorf("%s: %w", strings.ToLower(model), err)
}
