// Package etag implements conditional fetching of paginated GitHub list
// endpoints.
//
// GitHub lists come in two shapes. Front-loaded listings (/repos/o/r/issues,
// /repos/o/r/commits, ...) grow at the end, so the first page is stable until
// something changes and its ETag validates the whole listing. Back-loaded
// listings (followers, stargazers, closed-state listings) grow at the front,
// so the last page seen is the stable one: a crawler that re-requests page 1
// first validates that page, and a 304 there means nothing was prepended.
//
// Helper.Request wraps a Fetcher with this logic:
//
//	helper := etag.New(githubClient, store.NewMemory())
//	resp, err := helper.Request(ctx, "https://api.github.com/users/linus/followers", "")
//
// Only cache metadata (base URL, ETag, page number, hit count) is kept. Bodies
// are never stored, and Request always returns a fresh, readable response
// unless the validated page was itself page 1.
package etag
