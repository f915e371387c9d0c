package etag

import (
	"context"
	"errors"
	"net/http"

	"github.com/Sternrassler/gh-etag-cache/pkg/client"
	"github.com/Sternrassler/gh-etag-cache/pkg/logging"
	"github.com/Sternrassler/gh-etag-cache/pkg/store"
	"github.com/rs/zerolog"
)

// Fetcher performs a single GET. A 304 must come back as a response with
// NotModified() true, not as an error. *client.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, mediaType string, header http.Header) (*client.Response, error)
}

// Store persists one ETag record per base URL.
// Lookup returns store.ErrNotFound when there is no record.
type Store interface {
	Lookup(ctx context.Context, baseURL string) (*store.Record, error)
	Upsert(ctx context.Context, baseURL string, pageNumber int, etag string) error
	RecordHit(ctx context.Context, baseURL string) error
}

// outcome is the result of validating a stored ETag.
type outcome int

const (
	// outcomeSkipped: no validation fetch was made.
	outcomeSkipped outcome = iota
	// outcomeNotModified: the stored page answered 304.
	outcomeNotModified
	// outcomeModified: the stored page changed and is not page 1.
	outcomeModified
	// outcomeShortCircuit: page 1 changed; its response is the result.
	outcomeShortCircuit
)

func (o outcome) String() string {
	switch o {
	case outcomeSkipped:
		return "skipped"
	case outcomeNotModified:
		return "not_modified"
	case outcomeModified:
		return "modified"
	case outcomeShortCircuit:
		return "short_circuit"
	default:
		return "unknown"
	}
}

// Helper wraps a Fetcher with ETag validation of paginated listings.
// It is safe for concurrent use when the Fetcher and Store are. Concurrent
// requests for the same base URL are not serialized; the last write wins.
type Helper struct {
	fetcher Fetcher
	store   Store
	logger  zerolog.Logger
}

// Option configures a Helper.
type Option func(*Helper)

// WithLogger sets the logger used for cache decisions.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Helper) {
		h.logger = logger
	}
}

// New creates a Helper. It panics if fetcher or store is nil.
func New(fetcher Fetcher, store Store, opts ...Option) *Helper {
	if fetcher == nil {
		panic("etag: fetcher must not be nil")
	}
	if store == nil {
		panic("etag: store must not be nil")
	}

	h := &Helper{
		fetcher: fetcher,
		store:   store,
		logger:  logging.NewLogger(logging.ComponentETag),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Request fetches rawURL, validating a stored ETag first when rawURL is the
// first page of a cacheable listing.
//
// On a 304 the hit is recorded and rawURL is fetched normally.
// When the stored page is page 1 and has changed, the validation response is
// returned as is. The returned response's ETag is persisted when the page is
// stable: page 1 of a front-loaded listing, or the last page of a back-loaded
// one. Transport errors are returned unchanged.
func (h *Helper) Request(ctx context.Context, rawURL, mediaType string) (*client.Response, error) {
	baseURL := BaseURL(rawURL)
	logger := h.logger.With().Str("base_url", baseURL).Logger()

	rule, denied := DenyRule(rawURL)

	var resp *client.Response
	switch {
	case denied:
		skippedTotal.WithLabelValues("denied").Inc()
		logger.Debug().Str("rule", rule).Msg("Endpoint not cacheable")
	case !IsFirstPage(rawURL):
		skippedTotal.WithLabelValues("not_first_page").Inc()
	default:
		validated, result, err := h.validate(ctx, rawURL, baseURL, mediaType, logger)
		if err != nil {
			return nil, err
		}
		if result == outcomeShortCircuit {
			resp = validated
		}
	}

	if resp == nil {
		var err error
		resp, err = h.fetcher.Fetch(ctx, rawURL, mediaType, nil)
		if err != nil {
			return nil, err
		}
	}

	if !denied {
		h.persist(ctx, rawURL, baseURL, resp, logger)
	}

	return resp, nil
}

// validate re-requests the stored page with If-None-Match. Only a
// short-circuit outcome returns a response; every other response is closed.
func (h *Helper) validate(ctx context.Context, rawURL, baseURL, mediaType string, logger zerolog.Logger) (*client.Response, outcome, error) {
	record, err := h.store.Lookup(ctx, baseURL)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			skippedTotal.WithLabelValues("no_record").Inc()
		} else {
			skippedTotal.WithLabelValues("store_error").Inc()
			logger.Warn().Err(err).Msg("ETag lookup failed, fetching without validation")
		}
		return nil, outcomeSkipped, nil
	}

	header := http.Header{}
	header.Set("If-None-Match", record.ETag)

	validationURL := RewritePage(rawURL, record.PageNumber)
	resp, err := h.fetcher.Fetch(ctx, validationURL, mediaType, header)
	if err != nil {
		return nil, outcomeSkipped, err
	}

	result := outcomeModified
	switch {
	case resp.NotModified():
		result = outcomeNotModified
	case resp.StatusCode == http.StatusOK && record.PageNumber == 1:
		result = outcomeShortCircuit
	}

	validationsTotal.WithLabelValues(result.String()).Inc()
	logger.Debug().
		Str("validation_url", validationURL).
		Int("page_no", record.PageNumber).
		Int("status", resp.StatusCode).
		Str("outcome", result.String()).
		Msg("Validated stored ETag")

	if result == outcomeNotModified {
		hitsTotal.Inc()
		if err := h.store.RecordHit(ctx, baseURL); err != nil {
			logger.Warn().Err(err).Msg("Failed to record ETag hit")
		}
	}

	if result == outcomeShortCircuit {
		return resp, result, nil
	}
	resp.Close()
	return nil, result, nil
}

// persist stores the response ETag when the requested page is stable.
func (h *Helper) persist(ctx context.Context, rawURL, baseURL string, resp *client.Response, logger zerolog.Logger) {
	frontLoaded := IsFrontLoaded(baseURL)

	var stable bool
	if frontLoaded {
		stable = IsFirstPage(rawURL)
	} else {
		stable = !resp.HasLastLink()
	}
	if !stable {
		return
	}

	etag := resp.ETag()
	if etag == "" {
		logger.Debug().Msg("Response has no ETag, not persisting")
		return
	}

	page := CurrentPage(rawURL)
	if err := h.store.Upsert(ctx, baseURL, page, etag); err != nil {
		logger.Warn().Err(err).Int("page_no", page).Msg("Failed to persist ETag")
		return
	}

	kind := "back_loaded"
	if frontLoaded {
		kind = "front_loaded"
	}
	writesTotal.WithLabelValues(kind).Inc()
	logger.Debug().
		Int("page_no", page).
		Str("etag", etag).
		Str("kind", kind).
		Msg("Persisted ETag")
}
