package iconcache

import "errors"

var (
	// ErrInvalidPlatform is returned when the platform is not one of the known set.
	ErrInvalidPlatform = errors.New("invalid platform")

	// ErrInvalidIdentifier is returned when the identifier is empty or contains
	// characters unsafe for on-disk storage.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrNotFound means no valid cached entry exists for the key. It is a normal
	// lookup outcome, not a failure.
	ErrNotFound = errors.New("icon not cached")

	// ErrFetchFailed wraps any origin fetch failure (unreachable, non-success
	// status, timeout).
	ErrFetchFailed = errors.New("origin fetch failed")

	// ErrWriteFailed wraps persistence failures while committing an entry.
	ErrWriteFailed = errors.New("cache write failed")

	// ErrClearFailed wraps failures while removing the cache contents.
	ErrClearFailed = errors.New("cache clear failed")
)
