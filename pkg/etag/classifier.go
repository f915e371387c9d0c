package etag

import "regexp"

// denyRule is a URL shape whose pages are never validated or persisted.
type denyRule struct {
	name    string
	pattern *regexp.Regexp
}

// denyRules excludes endpoints whose content is per-viewer or where pagination
// and ETags are meaningless.
var denyRules = []denyRule{
	{name: "user_search_or_email", pattern: regexp.MustCompile(`/user/(?:search|email)`)},
	{name: "org_members", pattern: regexp.MustCompile(`/orgs/[^/]+/members`)},
	{name: "user_orgs", pattern: regexp.MustCompile(`/users/[^/]+/orgs`)},
	{name: "compare", pattern: regexp.MustCompile(`/compare/.+\.\.\.`)},
	{name: "single_commit", pattern: regexp.MustCompile(`/commits/[^/]+$`)},
	{name: "commits_by_sha", pattern: regexp.MustCompile(`/commits\?sha=`)},
}

var (
	frontLoadedPattern = regexp.MustCompile(`/repos/[^/]+/[^/]+/\w+/?$`)
	stargazersPattern  = regexp.MustCompile(`/stargazers/?$`)
)

// DenyRule returns the name of the first rule excluding rawURL from caching.
func DenyRule(rawURL string) (string, bool) {
	for _, rule := range denyRules {
		if rule.pattern.MatchString(rawURL) {
			return rule.name, true
		}
	}
	return "", false
}

// IsCacheableEndpoint reports whether rawURL may be validated and persisted.
func IsCacheableEndpoint(rawURL string) bool {
	_, denied := DenyRule(rawURL)
	return !denied
}

// IsFirstPage reports whether rawURL requests page 1, explicitly or by
// omitting a numeric page parameter. page=0 is not a first page.
func IsFirstPage(rawURL string) bool {
	page, ok := ExtractPageNumber(rawURL)
	return !ok || page == 1
}

// IsFrontLoaded reports whether a base URL (see BaseURL) is a repository
// sub-collection that grows at the end. Stargazers grow at the front, and a
// retained "?state=closed" suffix makes the listing back-loaded too.
func IsFrontLoaded(baseURL string) bool {
	return frontLoadedPattern.MatchString(baseURL) && !stargazersPattern.MatchString(baseURL)
}
