package services

import (
	"errors"
	"fmt"
)

// Pipeline failure taxonomy. Handlers map these to HTTP statuses; anything
// not in this list is a plain 500.
var (
	// ErrServiceUnavailable: the external completion service (or the
	// network to it) failed. Retryable by the caller.
	ErrServiceUnavailable = errors.New("extraction service unavailable")

	// ErrExtractionParse: the model answered but its output was not the
	// expected schema. Not retried; surfaced as a per-file failure.
	ErrExtractionParse = errors.New("extraction output unparseable")

	// ErrDuplicateBlocked: the same invoice number + vendor + amount
	// already exists for this owner. Terminal and informational, not a
	// user-facing error.
	ErrDuplicateBlocked = errors.New("duplicate invoice blocked")

	// ErrNotVerified: monetization was requested for a batch that is not
	// in verified status. An ordering bug in the caller.
	ErrNotVerified = errors.New("verification batch is not verified")

	// ErrOwnershipMismatch: the supplied device fingerprint does not match
	// the session's stored fingerprint. Audited, never silently ignored.
	ErrOwnershipMismatch = errors.New("device fingerprint mismatch")

	// ErrSessionNotFound: the session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
)

// UnsupportedMimeError reports an upload whose declared content type the
// pipeline does not accept.
type UnsupportedMimeError struct {
	MimeType string
}

func (e *UnsupportedMimeError) Error() string {
	return fmt.Sprintf("unsupported mime type %q", e.MimeType)
}
