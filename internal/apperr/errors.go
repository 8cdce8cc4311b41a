// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrCancelled marks a chat exchange stopped by the user before completion.
	ErrCancelled = errors.New("cancelled")
)
