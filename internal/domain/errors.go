package domain

import "errors"

// ErrNotFound is returned when the requested record does not exist in
// the effective list or the local cache.
// The web layer maps this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails validation before any I/O
// is attempted (missing name, unknown tea type, coordinates out of
// range). The web layer maps this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")
