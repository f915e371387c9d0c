package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/gh-etag-cache/pkg/client"
	"github.com/Sternrassler/gh-etag-cache/pkg/logging"
	"github.com/Sternrassler/gh-etag-cache/pkg/metrics"
	"github.com/Sternrassler/gh-etag-cache/pkg/ratelimit"
)

const githubPrefix = "/github"

// requester is the part of etag.Helper the proxy uses.
type requester interface {
	Request(ctx context.Context, rawURL, mediaType string) (*client.Response, error)
}

func newMux(helper requester, upstream string, timeout time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc(githubPrefix+"/", githubProxyHandler(helper, upstream, timeout))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// upstreamURL maps /github/<path>?<query> onto the upstream API.
func upstreamURL(upstream string, r *http.Request) string {
	target := strings.TrimSuffix(upstream, "/") + strings.TrimPrefix(r.URL.Path, githubPrefix)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	return target
}

// mediaType forwards the caller's Accept header; wildcards get the default.
func mediaType(r *http.Request) string {
	accept := r.Header.Get("Accept")
	if accept == "" || accept == "*/*" {
		return ""
	}
	return accept
}

func githubProxyHandler(helper requester, upstream string, timeout time.Duration) http.HandlerFunc {
	logger := logging.NewLogger(logging.ComponentProxy)

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		target := upstreamURL(upstream, r)

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp, err := helper.Request(ctx, target, mediaType(r))
		if err != nil {
			status := http.StatusBadGateway
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
				status = apiErr.StatusCode
			} else if errors.Is(err, ratelimit.ErrBlocked) {
				status = http.StatusTooManyRequests
			}
			logger.Warn().Err(err).Str("url", target).Int("status", status).Msg("GitHub request failed")
			http.Error(w, fmt.Sprintf("GitHub request failed: %v", err), status)
			return
		}
		defer resp.Close()

		for key, values := range resp.Header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(resp.StatusCode)

		if _, err := io.Copy(w, resp.Body); err != nil {
			logger.Warn().Err(err).Str("url", target).Msg("Failed to write response")
		}
	}
}
