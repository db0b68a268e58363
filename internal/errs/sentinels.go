// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/service/wire layers.
var (
	// ErrUserExists indicates a duplicate username on registration.
	ErrUserExists = errors.New("user already exists")

	// ErrUnauthorized indicates failed authentication (bad credentials).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotAuthenticated indicates an operation that requires a prior LOGIN.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidParams indicates missing or out-of-range request parameters.
	ErrInvalidParams = errors.New("invalid params")

	// ErrInsufficientData indicates an aggregation window larger than the
	// available history.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDayCompleted indicates an append to an already rotated day.
	ErrDayCompleted = errors.New("day already completed")

	// ErrCorruptFile indicates a persisted file with a bad magic or version.
	ErrCorruptFile = errors.New("corrupt file")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrClosed indicates use of a closed connection or stopped pool.
	ErrClosed = errors.New("closed")
)
