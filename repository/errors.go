package repository

import "errors"

// Sentinel errors surfaced by the library store. Handlers map these onto
// 404 and 409 responses respectively.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)
