package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is a uniqueness violation (username or email taken).
	ErrConflict = errors.New("already exists")
	// ErrStatusConflict means the row no longer had the expected status when
	// a conditional update ran.
	ErrStatusConflict = errors.New("status changed concurrently")
)
