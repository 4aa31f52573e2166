package store

import "errors"

// Sentinel errors returned by Collection operations.
var (
	ErrNotFound      = errors.New("store: document not found")
	ErrAlreadyExists = errors.New("store: document already exists")
)
