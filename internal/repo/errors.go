package repo

import "errors"

var (
	// ErrNotFound means no record exists for the given id and account.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidState means the record is no longer pending, so the
	// requested mutation is not permitted.
	ErrInvalidState = errors.New("message is not pending")
)
