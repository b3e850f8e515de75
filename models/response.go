package models

// QuickViewResponse is the response for the /api/v1/quickview endpoints.
type QuickViewResponse struct {
	// Success is false only when the request itself was rejected. A modal in
	// the error state is still a successful response.
	Success bool `json:"success"`

	// State is the modal state: "closed", "loading", "content" or "error".
	State string `json:"state"`

	// Visibility of the modal regions.
	ShowSkeleton bool `json:"show_skeleton"`
	ShowContent  bool `json:"show_content"`
	ShowFooter   bool `json:"show_footer"`

	// Content is the product fragment (html) or its markdown rendition,
	// or the error panel markup in the error state.
	Content string `json:"content,omitempty"`

	// ProductURL is the canonical product URL, used by the footer link and
	// by the error panel fallback link.
	ProductURL string `json:"product_url,omitempty"`

	// Product is the page's productObj, when one was found.
	Product map[string]any `json:"product,omitempty"`

	// SDKScriptURL is the product SDK script the client must load once
	// before initialising the fragment.
	SDKScriptURL string `json:"sdk_script_url,omitempty"`

	// CacheStatus indicates whether the fragment was served from cache.
	// Values: "hit", "miss", or empty (no fragment).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated in the error state and when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// AckResponse acknowledges fire-and-forget calls (hover, leave, prefetch,
// cart events, cache reset).
type AckResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string     `json:"status"` // "healthy" or "degraded"
	Uptime   string     `json:"uptime"`
	Cache    CacheStats `json:"cache"`
	Sessions int        `json:"sessions"`
	Engines  []string   `json:"engines"`
	Version  string     `json:"version"`
}

// CacheStats reports the fragment cache state.
type CacheStats struct {
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}
