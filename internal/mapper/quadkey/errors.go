package qkmapper

import "errors"

var (
	// ErrInvalidPrecision is returned for a precision outside the supported range.
	ErrInvalidPrecision = errors.New("invalid quadkey precision")
	// ErrTooManyCells is returned when a request would expand past the cell budget.
	ErrTooManyCells = errors.New("too many cells")
)
