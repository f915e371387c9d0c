package client

import (
	"io"
	"net/http"
	"regexp"
)

var (
	nextLinkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)
	lastLinkPattern = regexp.MustCompile(`;\s*rel="last"`)
)

// Response is a fetched page of a GitHub list endpoint.
// A 304 is a Response too; check NotModified before reading Body.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       io.ReadCloser
	URL        string
}

func newResponse(rawURL string, resp *http.Response) *Response {
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       resp.Body,
		URL:        rawURL,
	}
}

// NotModified reports whether the server answered a conditional request with 304.
func (r *Response) NotModified() bool {
	return r.StatusCode == http.StatusNotModified
}

// ETag returns the entity tag validator of the response, verbatim.
func (r *Response) ETag() string {
	return r.Header.Get("ETag")
}

// Link returns the raw Link header.
func (r *Response) Link() string {
	return r.Header.Get("Link")
}

// HasLastLink reports whether the Link header carries rel="last".
// GitHub omits rel="last" on the last page of a listing.
func (r *Response) HasLastLink() bool {
	return lastLinkPattern.MatchString(r.Link())
}

// NextURL extracts the rel="next" URL from the Link header, or "".
// Example: <https://api.github.com/users/linus/followers?page=2>; rel="next"
func (r *Response) NextURL() string {
	matches := nextLinkPattern.FindStringSubmatch(r.Link())
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

// Close closes the body if there is one.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}
