package etag

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Sternrassler/gh-etag-cache/pkg/client"
	"github.com/Sternrassler/gh-etag-cache/pkg/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	issuesURL    = "https://api.github.com/repos/rails/rails/issues"
	followersURL = "https://api.github.com/users/linus/followers"
	lastLink     = `<https://api.github.com/users/linus/followers?page=2>; rel="next", <https://api.github.com/users/linus/followers?page=44>; rel="last"`
	prevLink     = `<https://api.github.com/users/linus/followers?page=1>; rel="first", <https://api.github.com/users/linus/followers?page=43>; rel="prev"`
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, rawURL, mediaType string, header http.Header) (*client.Response, error) {
	args := m.Called(ctx, rawURL, mediaType, header)
	resp, _ := args.Get(0).(*client.Response)
	return resp, args.Error(1)
}

// trackedBody records whether the response body was closed.
type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

func page(status int, etag, link string) (*client.Response, *trackedBody) {
	header := http.Header{}
	if etag != "" {
		header.Set("ETag", etag)
	}
	if link != "" {
		header.Set("Link", link)
	}
	body := &trackedBody{Reader: strings.NewReader("[]")}
	return &client.Response{StatusCode: status, Header: header, Body: body}, body
}

func unconditional() interface{} {
	return mock.MatchedBy(func(h http.Header) bool { return h.Get("If-None-Match") == "" })
}

func ifNoneMatch(etag string) interface{} {
	return mock.MatchedBy(func(h http.Header) bool { return h.Get("If-None-Match") == etag })
}

func newHelper(f Fetcher, s Store) *Helper {
	return New(f, s, WithLogger(zerolog.Nop()))
}

func TestRequest_FrontLoadedFirstCrawl(t *testing.T) {
	fetcher := &mockFetcher{}
	memory := store.NewMemory()

	resp, _ := page(http.StatusOK, `W/"a"`, lastLink)
	fetcher.On("Fetch", mock.Anything, issuesURL, "", unconditional()).Return(resp, nil).Once()

	got, err := newHelper(fetcher, memory).Request(context.Background(), issuesURL, "")
	require.NoError(t, err)
	assert.Same(t, resp, got)

	record, err := memory.Lookup(context.Background(), issuesURL)
	require.NoError(t, err)
	assert.Equal(t, store.Record{BaseURL: issuesURL, ETag: `W/"a"`, PageNumber: 1}, *record)
	fetcher.AssertExpectations(t)
}

func TestRequest_FrontLoadedUnchanged(t *testing.T) {
	ctx := context.Background()
	fetcher := &mockFetcher{}
	memory := store.NewMemory()
	require.NoError(t, memory.Upsert(ctx, issuesURL, 1, `W/"a"`))

	notModified, validationBody := page(http.StatusNotModified, `W/"a"`, "")
	fresh, _ := page(http.StatusOK, `W/"a"`, lastLink)
	fetcher.On("Fetch", mock.Anything, issuesURL+"?page=1", "", ifNoneMatch(`W/"a"`)).Return(notModified, nil).Once()
	fetcher.On("Fetch", mock.Anything, issuesURL, "", unconditional()).Return(fresh, nil).Once()

	got, err := newHelper(fetcher, memory).Request(ctx, issuesURL, "")
	require.NoError(t, err)
	assert.Same(t, fresh, got)
	assert.True(t, validationBody.closed, "validation response must be closed")

	record, err := memory.Lookup(ctx, issuesURL)
	require.NoError(t, err)
	assert.Equal(t, `W/"a"`, record.ETag)
	assert.Equal(t, 1, record.PageNumber)
	assert.Equal(t, 1, record.UsedCount)
	fetcher.AssertExpectations(t)
}

func TestRequest_FrontLoadedChangedShortCircuits(t *testing.T) {
	ctx := context.Background()
	fetcher := &mockFetcher{}
	memory := store.NewMemory()
	require.NoError(t, memory.Upsert(ctx, issuesURL, 1, `W/"a"`))

	changed, body := page(http.StatusOK, `W/"b"`, lastLink)
	fetcher.On("Fetch", mock.Anything, issuesURL+"?page=1", "application/vnd.github.raw+json", ifNoneMatch(`W/"a"`)).Return(changed, nil).Once()

	got, err := newHelper(fetcher, memory).Request(ctx, issuesURL, "application/vnd.github.raw+json")
	require.NoError(t, err)
	assert.Same(t, changed, got)
	assert.False(t, body.closed, "short-circuit response must stay readable")

	record, err := memory.Lookup(ctx, issuesURL)
	require.NoError(t, err)
	assert.Equal(t, `W/"b"`, record.ETag)
	assert.Equal(t, 0, record.UsedCount)
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestRequest_IntermediatePage(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		url  string
	}{
		{"front-loaded page 3", issuesURL + "?page=3"},
		{"back-loaded page 3", followersURL + "?page=3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &mockFetcher{}
			memory := store.NewMemory()
			require.NoError(t, memory.Upsert(ctx, BaseURL(tt.url), 1, `W/"a"`))

			resp, _ := page(http.StatusOK, `W/"c"`, lastLink)
			fetcher.On("Fetch", mock.Anything, tt.url, "", unconditional()).Return(resp, nil).Once()

			got, err := newHelper(fetcher, memory).Request(ctx, tt.url, "")
			require.NoError(t, err)
			assert.Same(t, resp, got)

			record, err := memory.Lookup(ctx, BaseURL(tt.url))
			require.NoError(t, err)
			assert.Equal(t, `W/"a"`, record.ETag, "intermediate page must not be persisted")
			fetcher.AssertExpectations(t)
		})
	}
}

func TestRequest_OversizedPageIsNotFirstPage(t *testing.T) {
	ctx := context.Background()
	fetcher := &mockFetcher{}
	memory := store.NewMemory()
	require.NoError(t, memory.Upsert(ctx, issuesURL, 1, `W/"a"`))

	url := issuesURL + "?page=99999999999999999999"
	resp, _ := page(http.StatusOK, `W/"empty"`, "")
	fetcher.On("Fetch", mock.Anything, url, "", unconditional()).Return(resp, nil).Once()

	got, err := newHelper(fetcher, memory).Request(ctx, url, "")
	require.NoError(t, err)
	assert.Same(t, resp, got)

	record, err := memory.Lookup(ctx, issuesURL)
	require.NoError(t, err)
	assert.Equal(t, store.Record{BaseURL: issuesURL, ETag: `W/"a"`, PageNumber: 1}, *record)
	fetcher.AssertExpectations(t)
}

func TestRequest_BackLoadedLastPageFresh(t *testing.T) {
	ctx := context.Background()
	fetcher := &mockFetcher{}
	memory := store.NewMemory()

	url := followersURL + "?page=44"
	resp, _ := page(http.StatusOK, `W/"last"`, prevLink)
	fetcher.On("Fetch", mock.Anything, url, "", unconditional()).Return(resp, nil).Once()

	_, err := newHelper(fetcher, memory).Request(ctx, url, "")
	require.NoError(t, err)

	record, err := memory.Lookup(ctx, followersURL)
	require.NoError(t, err)
	assert.Equal(t, store.Record{BaseURL: followersURL, ETag: `W/"last"`, PageNumber: 44}, *record)
	fetcher.AssertExpectations(t)
}

func TestRequest_BackLoadedRequery(t *testing.T) {
	ctx := context.Background()
	fetcher := &mockFetcher{}
	memory := store.NewMemory()
	require.NoError(t, memory.Upsert(ctx, followersURL, 44, `W/"last"`))

	notModified, _ := page(http.StatusNotModified, `W/"last"`, "")
	first, _ := page(http.StatusOK, `W/"first"`, lastLink)
	fetcher.On("Fetch", mock.Anything, followersURL+"?page=44", "", ifNoneMatch(`W/"last"`)).Return(notModified, nil).Once()
	fetcher.On("Fetch", mock.Anything, followersURL, "", unconditional()).Return(first, nil).Once()

	got, err := newHelper(fetcher, memory).Request(ctx, followersURL, "")
	require.NoError(t, err)
	assert.Same(t, first, got)

	record, err := memory.Lookup(ctx, followersURL)
	require.NoError(t, err)
	assert.Equal(t, store.Record{BaseURL: followersURL, ETag: `W/"last"`, PageNumber: 44, UsedCount: 1}, *record)
	fetcher.AssertExpectations(t)
}

func TestRequest_BackLoadedChangedFallsBack(t *testing.T) {
	ctx := context.Background()
	fetcher := &mockFetcher{}
	memory := store.NewMemory()
	require.NoError(t, memory.Upsert(ctx, followersURL, 44, `W/"last"`))

	changed, changedBody := page(http.StatusOK, `W/"shifted"`, prevLink)
	first, _ := page(http.StatusOK, `W/"first"`, lastLink)
	fetcher.On("Fetch", mock.Anything, followersURL+"?page=44", "", ifNoneMatch(`W/"last"`)).Return(changed, nil).Once()
	fetcher.On("Fetch", mock.Anything, followersURL, "", unconditional()).Return(first, nil).Once()

	got, err := newHelper(fetcher, memory).Request(ctx, followersURL, "")
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.True(t, changedBody.closed)

	record, err := memory.Lookup(ctx, followersURL)
	require.NoError(t, err)
	assert.Equal(t, 44, record.PageNumber)
	assert.Equal(t, 0, record.UsedCount)
	fetcher.AssertExpectations(t)
}

func TestRequest_DeniedEndpoints(t *testing.T) {
	urls := []string{
		"https://api.github.com/user/search?q=linus",
		"https://api.github.com/user/email",
		"https://api.github.com/orgs/rails/members",
		"https://api.github.com/users/linus/orgs",
		"https://api.github.com/repos/o/r/compare/v1...v2",
		"https://api.github.com/repos/o/r/commits/6dcb09b5b57875f334f61aebed695e2e4193db5e",
		"https://api.github.com/repos/o/r/commits?sha=abc123",
	}

	for _, url := range urls {
		t.Run(url, func(t *testing.T) {
			ctx := context.Background()
			fetcher := &mockFetcher{}
			memory := store.NewMemory()
			require.NoError(t, memory.Upsert(ctx, BaseURL(url), 1, `W/"seeded"`))

			resp, _ := page(http.StatusOK, `W/"d"`, "")
			fetcher.On("Fetch", mock.Anything, url, "", unconditional()).Return(resp, nil).Once()

			_, err := newHelper(fetcher, memory).Request(ctx, url, "")
			require.NoError(t, err)

			record, err := memory.Lookup(ctx, BaseURL(url))
			require.NoError(t, err)
			assert.Equal(t, `W/"seeded"`, record.ETag, "denied endpoint must not be written")
			assert.Equal(t, 0, record.UsedCount, "denied endpoint must not be validated")
			fetcher.AssertExpectations(t)
		})
	}
}

func TestRequest_NoETagNotPersisted(t *testing.T) {
	fetcher := &mockFetcher{}
	memory := store.NewMemory()

	resp, _ := page(http.StatusOK, "", "")
	fetcher.On("Fetch", mock.Anything, followersURL, "", unconditional()).Return(resp, nil).Once()

	_, err := newHelper(fetcher, memory).Request(context.Background(), followersURL, "")
	require.NoError(t, err)
	assert.Equal(t, 0, memory.Len())
}

func TestRequest_FetchErrors(t *testing.T) {
	ctx := context.Background()
	upstream := &client.APIError{StatusCode: http.StatusBadGateway, ErrorClass: client.ErrorClassServer}

	t.Run("validation error is returned unchanged", func(t *testing.T) {
		fetcher := &mockFetcher{}
		memory := store.NewMemory()
		require.NoError(t, memory.Upsert(ctx, issuesURL, 1, `W/"a"`))

		fetcher.On("Fetch", mock.Anything, issuesURL+"?page=1", "", ifNoneMatch(`W/"a"`)).Return(nil, upstream).Once()

		got, err := newHelper(fetcher, memory).Request(ctx, issuesURL, "")
		assert.Nil(t, got)
		assert.Same(t, upstream, err)
		fetcher.AssertNumberOfCalls(t, "Fetch", 1)
	})

	t.Run("fallback error is returned unchanged", func(t *testing.T) {
		fetcher := &mockFetcher{}
		fetcher.On("Fetch", mock.Anything, issuesURL, "", unconditional()).Return(nil, upstream).Once()

		got, err := newHelper(fetcher, store.NewMemory()).Request(ctx, issuesURL, "")
		assert.Nil(t, got)
		assert.Same(t, upstream, err)
	})
}

// failingStore fails every operation.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Lookup(context.Context, string) (*store.Record, error) { return nil, errStoreDown }
func (failingStore) Upsert(context.Context, string, int, string) error { return errStoreDown }
func (failingStore) RecordHit(context.Context, string) error { return errStoreDown }

func TestRequest_StoreFailuresAreNotFatal(t *testing.T) {
	fetcher := &mockFetcher{}

	resp, _ := page(http.StatusOK, `W/"a"`, lastLink)
	fetcher.On("Fetch", mock.Anything, issuesURL, "", unconditional()).Return(resp, nil).Once()

	got, err := newHelper(fetcher, failingStore{}).Request(context.Background(), issuesURL, "")
	require.NoError(t, err)
	assert.Same(t, resp, got)
	fetcher.AssertExpectations(t)
}

func TestNew_Panics(t *testing.T) {
	assert.Panics(t, func() { New(nil, store.NewMemory()) })
	assert.Panics(t, func() { New(&mockFetcher{}, nil) })
}

func TestOutcomeString(t *testing.T) {
	tests := map[outcome]string{
		outcomeSkipped:      "skipped",
		outcomeNotModified:  "not_modified",
		outcomeModified:     "modified",
		outcomeShortCircuit: "short_circuit",
		outcome(99):         "unknown",
	}
	for o, want := range tests {
		assert.Equal(t, want, o.String())
	}
}
