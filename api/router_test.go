package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/quickview/cache"
	"github.com/use-agent/quickview/config"
	"github.com/use-agent/quickview/engine"
	"github.com/use-agent/quickview/events"
	"github.com/use-agent/quickview/models"
	"github.com/use-agent/quickview/quickview"
)

const storefrontPage = `<html><body>
<section id="product-main-section"><h1>Trail Shoe</h1><p>Light <strong>and</strong> fast.</p></section>
<script>window.productObj = {"id": 42};</script>
</body></html>`

type storefront struct {
	*httptest.Server

	mu   sync.Mutex
	hits int
}

func newStorefront(t *testing.T) *storefront {
	t.Helper()
	s := &storefront{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits++
		s.mu.Unlock()
		if r.URL.Path == "/p/gone" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(storefrontPage))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *storefront) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

type testServer struct {
	router http.Handler
	reg    *quickview.Registry
	cache  *cache.Cache
	bus    *events.Bus
	front  *storefront
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	front := newStorefront(t)

	cfg := config.Load()
	cfg.Server.Mode = "test"
	cfg.Storefront.BaseURL = front.URL
	cfg.QuickView.HoverDelay = 20 * time.Millisecond
	cfg.RateLimit.RequestsPerSecond = 1000
	cfg.RateLimit.Burst = 1000
	for _, fn := range mutate {
		fn(cfg)
	}

	cc := cache.New(cfg.QuickView.CacheSize)
	bus := events.NewBus()
	fetcher := engine.NewDispatcher(engine.NewHTTPEngine(engine.HTTPOptions{}))
	reg := quickview.NewRegistry(func(session string) *quickview.Manager {
		return quickview.New(cc, fetcher, bus, quickview.Options{
			Session:    session,
			BaseURL:    cfg.Storefront.BaseURL,
			HoverDelay: cfg.QuickView.HoverDelay,
		})
	}, 0)
	unsubscribe := reg.Listen(bus)
	t.Cleanup(func() {
		unsubscribe()
		reg.Close()
	})

	router := NewRouter(cfg, Deps{Registry: reg, Cache: cc, Bus: bus, Engines: fetcher.Names()}, time.Now())
	return &testServer{router: router, reg: reg, cache: cc, bus: bus, front: front}
}

func (s *testServer) do(t *testing.T, method, path, session string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set("X-Session-ID", session)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestOpen_MissThenHit(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/quickview/open", "s1", map[string]string{"slug": "trail"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.QuickViewResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "content", resp.State)
	assert.Equal(t, "miss", resp.CacheStatus)
	assert.Equal(t, "/p/trail", resp.ProductURL)
	assert.True(t, resp.ShowContent)
	assert.True(t, resp.ShowFooter)
	assert.False(t, resp.ShowSkeleton)
	assert.Contains(t, resp.Content, `id="product-main-section"`)
	assert.Equal(t, map[string]any{"id": float64(42)}, resp.Product)

	w = s.do(t, http.MethodPost, "/api/v1/quickview/open", "s2", map[string]string{"url": "/p/trail"})
	resp = decode[models.QuickViewResponse](t, w)
	assert.Equal(t, "hit", resp.CacheStatus)
	assert.Equal(t, 1, s.front.count())
}

func TestOpen_Markdown(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/quickview/open", "s1", map[string]string{"url": "/p/trail", "format": "markdown"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.QuickViewResponse](t, w)
	assert.Equal(t, "# Trail Shoe\n\nLight **and** fast.", resp.Content)
}

func TestOpen_UpstreamErrorIsErrorState(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/quickview/open", "s1", map[string]string{"url": "/p/gone"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.QuickViewResponse](t, w)
	assert.Equal(t, "error", resp.State)
	require.NotNil(t, resp.Error)
	assert.Equal(t, models.ErrCodeUpstreamStatus, resp.Error.Code)
	assert.Contains(t, resp.Content, `href="/p/gone"`)
	assert.False(t, resp.ShowFooter)
}

func TestOpen_InvalidInput(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"no product", map[string]string{}},
		{"bad format", map[string]string{"url": "/p/a", "format": "pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/quickview/open", "s1", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode[models.AckResponse](t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, models.ErrCodeInvalidInput, resp.Error.Code)
		})
	}
	assert.Zero(t, s.front.count())
}

func TestCloseAndGet(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/quickview", "s1", nil)
	assert.Equal(t, "closed", decode[models.QuickViewResponse](t, w).State)

	s.do(t, http.MethodPost, "/api/v1/quickview/open", "s1", map[string]string{"url": "/p/trail"})
	w = s.do(t, http.MethodGet, "/api/v1/quickview", "s1", nil)
	assert.Equal(t, "content", decode[models.QuickViewResponse](t, w).State)

	w = s.do(t, http.MethodPost, "/api/v1/quickview/close", "s1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/quickview", "s1", nil)
	assert.Equal(t, "closed", decode[models.QuickViewResponse](t, w).State)
}

func TestCartUpdatedClosesOnlyThatSession(t *testing.T) {
	s := newTestServer(t)
	var seen []events.Event
	s.bus.Subscribe(func(e events.Event) { seen = append(seen, e) })

	s.do(t, http.MethodPost, "/api/v1/quickview/open", "s1", map[string]string{"url": "/p/trail"})
	s.do(t, http.MethodPost, "/api/v1/quickview/open", "s2", map[string]string{"url": "/p/trail"})

	w := s.do(t, http.MethodPost, "/api/v1/events/cart-updated", "s1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "closed", decode[models.QuickViewResponse](t, s.do(t, http.MethodGet, "/api/v1/quickview", "s1", nil)).State)
	assert.Equal(t, "content", decode[models.QuickViewResponse](t, s.do(t, http.MethodGet, "/api/v1/quickview", "s2", nil)).State)

	require.Len(t, seen, 3)
	assert.Equal(t, events.ContentLoaded, seen[0].Type)
	assert.Equal(t, events.CartUpdated, seen[2].Type)
	assert.Equal(t, "s1", seen[2].Session)
}

func TestHoverPrefetchesIntoCache(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/prefetch/hover", "s1", map[string]string{
		"card_id":   "card-1",
		"card_html": `<div><a href="/p/trail">Trail</a></div>`,
	})
	assert.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool { return s.cache.Has("/p/trail") }, 2*time.Second, 5*time.Millisecond)

	w = s.do(t, http.MethodPost, "/api/v1/quickview/open", "s1", map[string]string{"url": "/p/trail"})
	assert.Equal(t, "hit", decode[models.QuickViewResponse](t, w).CacheStatus)
	assert.Equal(t, 1, s.front.count())
}

func TestHoverThenLeaveCancels(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.QuickView.HoverDelay = 50 * time.Millisecond })

	s.do(t, http.MethodPost, "/api/v1/prefetch/hover", "s1", map[string]string{"card_id": "c1", "href": "/p/trail"})
	w := s.do(t, http.MethodPost, "/api/v1/prefetch/leave", "s1", map[string]string{"from": "c1"})
	assert.Equal(t, http.StatusAccepted, w.Code)

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, s.front.count())
}

func TestHover_MissingCardID(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/prefetch/hover", "s1", map[string]string{"href": "/p/trail"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExplicitPrefetch(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/prefetch", "s1", map[string]string{"url": "/p/trail"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Eventually(t, func() bool { return s.cache.Has("/p/trail") }, 2*time.Second, 5*time.Millisecond)
}

func TestClearCache(t *testing.T) {
	s := newTestServer(t)
	s.cache.Set("/p/a", cache.Entry{Fragment: "a"})

	w := s.do(t, http.MethodDelete, "/api/v1/cache", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, s.cache.Len())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	s.reg.Get("s1")

	w := s.do(t, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 1, resp.Sessions)
	assert.Equal(t, cache.DefaultCapacity, resp.Cache.Capacity)
	assert.Equal(t, []string{"http"}, resp.Engines)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/quickview/open", "s1", map[string]string{"url": "/p/trail"})

	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "quickview_fetch_total")
	assert.Contains(t, w.Body.String(), "quickview_cache_entries")
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Auth.Enabled = true
		c.Auth.APIKeys = []string{"k1"}
	})

	w := s.do(t, http.MethodGet, "/api/v1/quickview", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/quickview", "", nil, "X-API-Key", "nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/quickview", "", nil, "Authorization", "Bearer k1")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.RateLimit.RequestsPerSecond = 0.001
		c.RateLimit.Burst = 2
	})

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = s.do(t, http.MethodGet, "/api/v1/quickview", fmt.Sprint("s", i), nil).Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
