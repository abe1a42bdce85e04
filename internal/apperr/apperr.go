// Package apperr holds the sentinel errors shared by the storefront packages.
// Repositories and services wrap them with fmt.Errorf("...: %w", ...) and the
// HTTP layer maps them to status codes with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrEmptyCart    = errors.New("cart is empty")
	ErrInvalid      = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)
