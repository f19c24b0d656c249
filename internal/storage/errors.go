// Package storage holds the Link entity, the sentinel errors every Link Store
// implementation returns, and an in-memory Link Store.
package storage

import "errors"

var (
	// ErrNotFound means no row matched the lookup.
	ErrNotFound = errors.New("not found")

	// ErrAliasTaken means a create or update would duplicate a short code.
	ErrAliasTaken = errors.New("short code already taken")

	// ErrCommitUnknown means a commit was attempted but its outcome could not
	// be confirmed; the writes may or may not be durable.
	ErrCommitUnknown = errors.New("commit outcome unknown")
)
