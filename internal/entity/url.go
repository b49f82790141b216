// Package entity defines the URL record persisted by the service and the
// errors shared between the validation, registry and delivery layers.
package entity

import (
	"errors"
	"time"
)

var (
	// ErrInvalidURL is returned when a submitted URL has no hostname or its hostname does not resolve.
	ErrInvalidURL = errors.New("invalid url")
	// ErrURLNotFound is returned when no URL is stored under the requested short code.
	ErrURLNotFound = errors.New("url not found")
	// ErrLookupTimeout is returned when the DNS lookup of a submitted URL exceeds the configured timeout.
	ErrLookupTimeout = errors.New("dns lookup timed out")
)

// URL represents a shortened URL.
type URL struct {
	OriginalURL string    // OriginalURL is the full URL exactly as it was submitted.
	ShortCode   int64     // ShortCode is the numeric code assigned in creation order, starting at 1.
	CreatedAt   time.Time // CreatedAt is the timestamp when the URL was stored.
}
