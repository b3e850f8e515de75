package engine

import (
	"context"
	"fmt"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "rod").
	Name() string

	// Fetch retrieves the product page for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	// URL is the absolute URL to fetch.
	URL string

	// Headers override the engine defaults.
	Headers map[string]string

	// Prefetch marks speculative, low-priority requests.
	Prefetch bool
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	StatusCode int
	FinalURL   string
	EngineName string
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d for %s", e.StatusCode, e.URL)
}

// requestHeaders returns the headers every engine sends, with req.Headers
// applied on top.
func requestHeaders(req *FetchRequest) map[string]string {
	h := map[string]string{
		"Accept":           "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8",
		"X-Requested-With": "XMLHttpRequest",
	}
	if req.Prefetch {
		h["Sec-Purpose"] = "prefetch"
		h["Priority"] = "u=5, i"
	}
	for k, v := range req.Headers {
		h[k] = v
	}
	return h
}
