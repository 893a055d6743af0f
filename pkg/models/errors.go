package models

import "errors"

// Error taxonomy shared by the scoring layer, the stores and the
// presentation surfaces. Callers test with errors.Is.
var (
	// ErrInvalidTimestamp marks a zero or future activity timestamp.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrMissingEntityReference names an edge whose target is absent from the
	// snapshot. The relationship builder treats it as a no-op and never
	// returns it; it exists for providers that want to report dangling keys.
	ErrMissingEntityReference = errors.New("missing entity reference")

	// ErrInsufficientSampleSize is returned when a rate has no samples.
	ErrInsufficientSampleSize = errors.New("insufficient sample size")

	// ErrStoreUnavailable wraps failures of the event log or scratchpad backends.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrInvalidQuietHours       = errors.New("invalid quiet hours")
	ErrInvalidEvent            = errors.New("invalid event")
	ErrInvalidScratchpadEntry  = errors.New("invalid scratchpad entry")
	ErrSuggestionNotFound      = errors.New("suggestion not found")
	ErrScratchpadEntryNotFound = errors.New("scratchpad entry not found")
	ErrNoOpenSession           = errors.New("no open session")
)
