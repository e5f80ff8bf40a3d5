package apperrors

import "errors"

// Sentinel errors shared by all services. Domain packages wrap these with
// fmt.Errorf("...: %w", ...) so handlers can map any error to an HTTP status
// with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
)
