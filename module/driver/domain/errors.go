package domain

import "errors"

var (
	// ErrStale is returned when a newer route plan for the same selection
	// started before this one finished. The caller should drop the result.
	ErrStale = errors.New("route plan superseded by a newer request")

	ErrHistoryUnavailable = errors.New("location history is not configured")
)
