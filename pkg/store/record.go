// Package store persists pagination ETag records keyed by canonical base URL.
//
// A record remembers which page of a paginated resource was last found to be
// stable and the validator the server returned for it. Three backends share
// the same semantics: Memory (in-process), Redis and SQLite.
package store

import (
	"errors"
)

var (
	// ErrNotFound indicates no record exists for the requested base URL.
	ErrNotFound = errors.New("etag record not found")

	// ErrInvalidRecord indicates a stored record could not be decoded.
	ErrInvalidRecord = errors.New("invalid etag record")
)

// Record is the cached validator for one paginated resource.
type Record struct {
	// BaseURL is the canonical identity of the resource (unique).
	BaseURL string `json:"base_url"`

	// ETag is the opaque validator as returned upstream, possibly weak (W/"...").
	ETag string `json:"etag"`

	// PageNumber is the page this ETag validates.
	PageNumber int `json:"page_no"`

	// UsedCount counts 304 validations against this record.
	UsedCount int `json:"used_count"`
}
