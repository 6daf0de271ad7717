package database

import "errors"

// Sentinel errors returned by the service layer. Handlers map these onto
// HTTP status codes; callers test with errors.Is.
var (
	// ErrNotFound covers missing rows and consumed registration tokens.
	// Activation deliberately does not distinguish "never existed" from
	// "already used" so callers learn nothing about live tokens.
	ErrNotFound = errors.New("record not found")

	// ErrAccessDenied is returned when the requesting owner does not own
	// the target device.
	ErrAccessDenied = errors.New("access denied")
)
