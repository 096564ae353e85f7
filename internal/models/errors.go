package models

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when a required credential is missing.
	// No network call is attempted.
	ErrConfiguration = errors.New("missing configuration")

	// ErrAuthExpired is returned when the calendar provider rejects the
	// access token with 401. The session has already been cleared.
	ErrAuthExpired = errors.New("calendar authorization expired")

	// ErrEmptyInput is returned for empty or whitespace-only task text.
	ErrEmptyInput = errors.New("empty task description")

	// ErrNotAuthenticated is returned when an operation needs a session and
	// there is none.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrBusy is returned when a submission is already in flight.
	ErrBusy = errors.New("a submission is already in progress")
)

// UpstreamError is a non-success response from an external API.
// Payload carries the provider's diagnostic text, meant for logs only.
type UpstreamError struct {
	Service    string
	StatusCode int
	Payload    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.Service, e.StatusCode, e.Payload)
}

// ParseError means the extraction response could not be turned into an
// ExtractedEvent.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse extraction response: %v", e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
