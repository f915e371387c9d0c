package etag

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	pageNumberPattern = regexp.MustCompile(`\bpage=(\d+)`)
	pageTokenPattern  = regexp.MustCompile(`\bpage=\d*`)
	pathPattern       = regexp.MustCompile(`^[^?]+`)
)

const closedStateSuffix = "?state=closed"

// BaseURL strips the query string and one trailing slash from rawURL.
// "state=closed" is the one query parameter kept, because closed and open
// listings of the same collection are different resources.
func BaseURL(rawURL string) string {
	base := strings.TrimSuffix(pathPattern.FindString(rawURL), "/")
	if strings.Contains(rawURL, "state=closed") {
		base += closedStateSuffix
	}
	return base
}

// ExtractPageNumber returns the value of the first page=<digits> token.
// ok is false when the URL carries no numeric page parameter. A value too
// large for an int is clamped to math.MaxInt.
func ExtractPageNumber(rawURL string) (page int, ok bool) {
	m := pageNumberPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return 0, false
	}
	page, err := strconv.Atoi(m[1])
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return page, true
}

// CurrentPage is the page rawURL requests, 1 when unspecified.
func CurrentPage(rawURL string) int {
	if page, ok := ExtractPageNumber(rawURL); ok {
		return page
	}
	return 1
}

// RewritePage sets the page parameter of rawURL to page. The first existing
// page token (even an empty "page=") is replaced in place; otherwise
// page=<n> is appended.
func RewritePage(rawURL string, page int) string {
	token := "page=" + strconv.Itoa(page)

	if loc := pageTokenPattern.FindStringIndex(rawURL); loc != nil {
		return rawURL[:loc[0]] + token + rawURL[loc[1]:]
	}
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + token
	}
	return rawURL + "?" + token
}
