package domain

import "errors"

var (
	// ErrInvalidEAN is returned when an identifier is not an 8, 12 or 13 digit code
	ErrInvalidEAN = errors.New("invalid EAN")

	// ErrMissingName is returned when a document carries no usable product name
	ErrMissingName = errors.New("missing product name")

	// ErrProductNotFound is returned when every upstream domain reports the product as unknown
	ErrProductNotFound = errors.New("product not found upstream")

	// ErrUpstreamUnavailable is returned when an upstream request fails (timeout, non-200, bad payload)
	ErrUpstreamUnavailable = errors.New("upstream request failed")

	// ErrCategoryNotFound is returned when no category carries the requested tag or ID
	ErrCategoryNotFound = errors.New("category not found")

	// ErrCategoryCycle is returned when a parent link would close a loop in the category forest
	ErrCategoryCycle = errors.New("category parent link would create a cycle")

	// ErrNotFound is returned when a catalog record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a write collides with a unique constraint
	ErrDuplicate = errors.New("duplicate record")

	// ErrCacheMiss is returned when a key is absent or expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")
)
