package shelfkeep

import "errors"

var (
	// ErrNotFound is returned when a referenced book or cover does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrAssetWrite is returned when the asset store fails to persist a photo
	ErrAssetWrite = errors.New("asset write failed")
	// ErrUnauthorized is returned when the shared password check fails
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
)
