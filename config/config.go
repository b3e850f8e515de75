package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Storefront StorefrontConfig
	QuickView  QuickViewConfig
	Browser    BrowserConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Webhook    WebhookConfig
	Log        LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// StorefrontConfig describes the upstream storefront that renders product pages.
type StorefrontConfig struct {
	// BaseURL resolves relative product URLs ("/p/shoe") for fetching.
	BaseURL string // default: "http://127.0.0.1:3000"

	// ChromeTLS dials HTTPS upstreams with a Chrome TLS fingerprint.
	ChromeTLS bool // default: false

	// Proxy is an optional HTTP(S) proxy for upstream requests.
	Proxy string
}

// QuickViewConfig controls the quick-view controller.
type QuickViewConfig struct {
	// CacheSize is the fragment cache capacity shared by all sessions.
	CacheSize int // default: 15

	// HoverDelay is the debounce before a hover turns into a prefetch.
	HoverDelay time.Duration // default: 200ms

	// SectionID is the id of the element extracted from product pages.
	SectionID string // default: "product-main-section"

	// ProductPrefix builds the canonical URL from a slug.
	ProductPrefix string // default: "/p/"

	// SessionTTL evicts sessions idle for longer than this.
	SessionTTL time.Duration // default: 30m

	// ErrorMessage and GoToProduct are the error panel copy.
	ErrorMessage string // default: "Failed to load product. Please try again."
	GoToProduct  string // default: "Go to product page"
}

// BrowserConfig controls the optional headless browser fallback engine.
type BrowserConfig struct {
	// Enabled adds the browser engine after the HTTP engine.
	Enabled bool // default: false

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth masks automation fingerprints on every page.
	Stealth bool // default: false

	// NavigationTimeout bounds page.Navigate plus load.
	NavigationTimeout time.Duration // default: 15s

	// BlockedResourceTypes are not loaded by browser pages; the fragment
	// needs only the document and its scripts.
	// Allowed: "Image", "Stylesheet", "Font", "Media".
	BlockedResourceTypes []string // default: Image, Stylesheet, Font, Media
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	APIKeys []string
}

// RateLimitConfig controls per-identity rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per identity.
	RequestsPerSecond float64 // default: 20

	// Burst is the maximum burst size per identity.
	Burst int // default: 40

	// HoverRequestsPerSecond and HoverBurst size the separate bucket for
	// hover and leave events, which arrive in sweeps across a product grid.
	HoverRequestsPerSecond float64 // default: 50
	HoverBurst             int     // default: 100
}

// WebhookConfig controls delivery of quick-view events to an external endpoint.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("QUICKVIEW_HOST", "0.0.0.0"),
			Port: envIntOr("QUICKVIEW_PORT", 8080),
			Mode: envOr("QUICKVIEW_MODE", "release"),
		},
		Storefront: StorefrontConfig{
			BaseURL:   envOr("QUICKVIEW_STOREFRONT_URL", "http://127.0.0.1:3000"),
			ChromeTLS: envBoolOr("QUICKVIEW_CHROME_TLS", false),
			Proxy:     os.Getenv("QUICKVIEW_PROXY"),
		},
		QuickView: QuickViewConfig{
			CacheSize:     envIntOr("QUICKVIEW_CACHE_SIZE", 15),
			HoverDelay:    envDurationOr("QUICKVIEW_HOVER_DELAY", 200*time.Millisecond),
			SectionID:     envOr("QUICKVIEW_SECTION_ID", "product-main-section"),
			ProductPrefix: envOr("QUICKVIEW_PRODUCT_PREFIX", "/p/"),
			SessionTTL:    envDurationOr("QUICKVIEW_SESSION_TTL", 30*time.Minute),
			ErrorMessage:  envOr("QUICKVIEW_ERROR_MESSAGE", "Failed to load product. Please try again."),
			GoToProduct:   envOr("QUICKVIEW_GO_TO_PRODUCT", "Go to product page"),
		},
		Browser: BrowserConfig{
			Enabled:              envBoolOr("QUICKVIEW_BROWSER", false),
			Headless:             envBoolOr("QUICKVIEW_HEADLESS", true),
			MaxPages:             envIntOr("QUICKVIEW_MAX_PAGES", 4),
			NoSandbox:            envBoolOr("QUICKVIEW_NO_SANDBOX", false),
			BrowserBin:           os.Getenv("QUICKVIEW_BROWSER_BIN"),
			Stealth:              envBoolOr("QUICKVIEW_STEALTH", false),
			NavigationTimeout:    envDurationOr("QUICKVIEW_NAV_TIMEOUT", 15*time.Second),
			BlockedResourceTypes: envSliceOr("QUICKVIEW_BLOCK_RESOURCES", []string{"Image", "Stylesheet", "Font", "Media"}),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("QUICKVIEW_AUTH_ENABLED", false),
			APIKeys: envSliceOr("QUICKVIEW_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("QUICKVIEW_RATE_RPS", 20.0),
			Burst:             envIntOr("QUICKVIEW_RATE_BURST", 40),

			HoverRequestsPerSecond: envFloatOr("QUICKVIEW_HOVER_RATE_RPS", 50.0),
			HoverBurst:             envIntOr("QUICKVIEW_HOVER_RATE_BURST", 100),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("QUICKVIEW_WEBHOOK_URL"),
			Secret: os.Getenv("QUICKVIEW_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("QUICKVIEW_LOG_LEVEL", "info"),
			Format: envOr("QUICKVIEW_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
