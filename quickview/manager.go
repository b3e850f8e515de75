// Package quickview implements the quick-view controller: a per-session
// object that opens the product modal from a shared fragment cache, warms
// that cache while the shopper hovers product cards, and closes the modal
// when the cart changes.
package quickview

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/quickview/cache"
	"github.com/use-agent/quickview/engine"
	"github.com/use-agent/quickview/events"
	"github.com/use-agent/quickview/fragment"
	"github.com/use-agent/quickview/models"
	"github.com/use-agent/quickview/render"
)

// Fetcher retrieves product pages. engine.HTTPEngine and engine.Dispatcher
// both satisfy it.
type Fetcher interface {
	Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error)
}

// Options configures a Manager.
type Options struct {
	// Session names the owner in published events.
	Session string

	// SectionID is the id of the element extracted from product pages.
	SectionID string

	// ProductPrefix builds the canonical URL from a slug.
	ProductPrefix string

	// BaseURL resolves relative product URLs for fetching. Cache keys stay
	// unresolved.
	BaseURL string

	// HoverDelay is the debounce between a hover and its prefetch.
	HoverDelay time.Duration

	Messages render.Messages
}

func (o Options) withDefaults() Options {
	if o.SectionID == "" {
		o.SectionID = "product-main-section"
	}
	if o.ProductPrefix == "" {
		o.ProductPrefix = "/p/"
	}
	if o.HoverDelay <= 0 {
		o.HoverDelay = 200 * time.Millisecond
	}
	return o
}

// Card is a hovered product card. ID identifies the card across events; the
// product URL is Href, or the first link in HTML when Href is empty.
type Card struct {
	ID   string
	Href string
	HTML string
}

// OpenRequest identifies the product to show. URL wins over Slug.
type OpenRequest struct {
	Slug string
	URL  string
}

// Manager is the quick-view controller for one session. All methods are safe
// for concurrent use; none of them returns an error, failures end up in the
// modal view or are dropped (prefetch).
type Manager struct {
	opts    Options
	cache   *cache.Cache
	fetcher Fetcher
	events  events.Publisher

	mu           sync.Mutex
	theme        string
	sdkScriptURL string

	// Hover and prefetch tracking. prefetchURL is set while a prefetch is
	// pending (timer armed) or in flight (prefetchCancel non-nil).
	hoveredCard    string
	hoverTimer     *time.Timer
	hoverGen       uint64
	prefetchURL    string
	prefetchCancel context.CancelFunc
	prefetchGen    uint64

	// Modal.
	view       render.View
	openGen    uint64
	openCancel context.CancelFunc
}

// New creates a Manager. pub may be nil.
func New(c *cache.Cache, f Fetcher, pub events.Publisher, opts Options) *Manager {
	return &Manager{
		opts:    opts.withDefaults(),
		cache:   c,
		fetcher: f,
		events:  pub,
		view:    render.Closed(),
	}
}

// SetPageURL records the storefront page the session is on; its theme query
// parameter is appended to every subsequent fetch.
func (m *Manager) SetPageURL(pageURL string) {
	theme := fragment.ThemeFromPage(pageURL)
	m.mu.Lock()
	m.theme = theme
	m.mu.Unlock()
}

// View returns the current modal view.
func (m *Manager) View() render.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// CanonicalURL returns the cache key for req, "" when req names nothing.
func (m *Manager) CanonicalURL(req OpenRequest) string {
	if u := strings.TrimSpace(req.URL); u != "" {
		return u
	}
	if s := strings.TrimSpace(req.Slug); s != "" {
		return m.opts.ProductPrefix + s
	}
	return ""
}

// Open shows the product in the modal. A cached fragment renders immediately
// without touching the network. Otherwise the modal enters the loading state,
// the page is fetched, and the modal ends in the content or error state.
//
// Open blocks until the modal leaves the loading state. A Close or
// CartUpdated while loading cancels the fetch and Open returns the closed
// view.
func (m *Manager) Open(ctx context.Context, req OpenRequest) render.View {
	productURL := m.CanonicalURL(req)

	m.mu.Lock()
	m.abortOpenLocked()

	if productURL == "" {
		m.view = render.Failure("", models.ErrCodeInvalidInput, m.opts.Messages)
		v := m.view
		m.mu.Unlock()
		opensTotal.WithLabelValues("error").Inc()
		return v
	}

	if entry, ok := m.cache.Get(productURL); ok {
		m.view = render.Content(productURL, entry.Fragment, entry.Product, m.sdkScriptLocked(entry), true)
		v := m.view
		m.mu.Unlock()
		opensTotal.WithLabelValues("cache").Inc()
		m.publish(events.ContentLoaded, productURL)
		return v
	}

	gen := m.openGen
	openCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.openCancel = cancel
	m.view = render.Loading(productURL)
	fetchURL := m.fetchURLLocked(productURL)
	m.mu.Unlock()

	page, err := m.load(openCtx, fetchURL, false)

	m.mu.Lock()
	if gen != m.openGen {
		v := m.view
		m.mu.Unlock()
		slog.Debug("quickview: load superseded", "session", m.opts.Session, "url", productURL)
		return v
	}
	m.openCancel = nil

	if err != nil {
		code := models.CodeOf(err)
		if code == models.ErrCodeCancelled {
			m.view = render.Closed()
			v := m.view
			m.mu.Unlock()
			slog.Debug("quickview: load cancelled", "session", m.opts.Session, "url", productURL)
			return v
		}
		m.view = render.Failure(productURL, code, m.opts.Messages)
		v := m.view
		m.mu.Unlock()
		opensTotal.WithLabelValues("error").Inc()
		slog.Error("quickview: failed to load product",
			"session", m.opts.Session, "url", productURL, "error", err)
		return v
	}

	entry := cache.Entry{Fragment: page.Section, Product: page.Product, SDKScriptURL: page.SDKScriptURL}
	m.cache.Set(productURL, entry)
	m.view = render.Content(productURL, page.Section, page.Product, m.sdkScriptLocked(entry), false)
	v := m.view
	m.mu.Unlock()

	opensTotal.WithLabelValues("network").Inc()
	m.publish(events.ContentLoaded, productURL)
	return v
}

// Close hides the modal, cancelling a load in progress.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.view.Open() {
		return
	}
	m.abortOpenLocked()
	m.view = render.Closed()
}

// CartUpdated reacts to a cart change by closing the modal, whatever its state.
func (m *Manager) CartUpdated() {
	slog.Debug("quickview: cart updated, closing modal", "session", m.opts.Session)
	m.Close()
}

// abortOpenLocked invalidates any load in progress.
func (m *Manager) abortOpenLocked() {
	m.openGen++
	if m.openCancel != nil {
		m.openCancel()
		m.openCancel = nil
	}
}

// HoverOver tracks the card under the pointer and arms the prefetch timer.
// Repeated events for the tracked card are ignored, as are cards whose
// product is cached or already being prefetched.
func (m *Manager) HoverOver(card Card) {
	if card.ID == "" {
		return
	}
	productURL := strings.TrimSpace(card.Href)

	m.mu.Lock()
	defer m.mu.Unlock()

	if card.ID == m.hoveredCard {
		return
	}
	if productURL == "" {
		productURL = fragment.CardLink(card.HTML)
	}

	// Another card for the same product: keep the pending work.
	if productURL != "" && productURL == m.prefetchURL {
		m.hoveredCard = card.ID
		return
	}

	m.cancelPrefetchLocked()
	m.hoveredCard = card.ID

	if productURL == "" || m.cache.Has(productURL) {
		return
	}

	m.prefetchURL = productURL
	gen := m.hoverGen
	m.hoverTimer = time.AfterFunc(m.opts.HoverDelay, func() {
		m.fireHover(gen, productURL)
	})
}

// HoverOut handles the pointer leaving card from. to is the card it entered,
// "" for anything that is not a card. Moving within the same card is ignored,
// as is leaving a card that is no longer tracked: a late leave for a previous
// card must not cancel the current one.
func (m *Manager) HoverOut(from, to string) {
	if from == "" || from == to {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if from != m.hoveredCard {
		return
	}
	m.cancelPrefetchLocked()
	m.hoveredCard = ""
}

// Prefetch fetches productURL into the cache unless it is cached or already
// in flight. It supersedes any other prefetch and blocks until the fetch
// settles. Failures are logged and dropped.
func (m *Manager) Prefetch(ctx context.Context, productURL string) {
	m.mu.Lock()
	run, ok := m.beginPrefetchLocked(ctx, strings.TrimSpace(productURL))
	m.mu.Unlock()
	if ok {
		m.runPrefetch(run)
	}
}

// CancelPrefetch drops the pending timer and any in-flight prefetch.
func (m *Manager) CancelPrefetch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelPrefetchLocked()
}

// Stop cancels all pending work and closes the modal.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelPrefetchLocked()
	m.hoveredCard = ""
	m.abortOpenLocked()
	m.view = render.Closed()
}

// Destroy stops the manager and clears the fragment cache.
func (m *Manager) Destroy() {
	m.Stop()
	m.cache.Clear()
}

type prefetchRun struct {
	ctx      context.Context
	cancel   context.CancelFunc
	gen      uint64
	url      string
	fetchURL string
}

func (m *Manager) fireHover(gen uint64, productURL string) {
	m.mu.Lock()
	if gen != m.hoverGen {
		m.mu.Unlock()
		return
	}
	m.hoverTimer = nil
	run, ok := m.beginPrefetchLocked(context.Background(), productURL)
	if !ok && m.prefetchCancel == nil && m.prefetchURL == productURL {
		m.prefetchURL = ""
	}
	m.mu.Unlock()
	if ok {
		m.runPrefetch(run)
	}
}

func (m *Manager) beginPrefetchLocked(parent context.Context, productURL string) (prefetchRun, bool) {
	if productURL == "" || m.cache.Has(productURL) {
		return prefetchRun{}, false
	}
	if m.prefetchCancel != nil && m.prefetchURL == productURL {
		return prefetchRun{}, false
	}

	m.cancelPrefetchLocked()

	ctx, cancel := context.WithCancel(parent)
	m.prefetchCancel = cancel
	m.prefetchURL = productURL

	return prefetchRun{
		ctx:      ctx,
		cancel:   cancel,
		gen:      m.prefetchGen,
		url:      productURL,
		fetchURL: m.fetchURLLocked(productURL),
	}, true
}

func (m *Manager) runPrefetch(run prefetchRun) {
	defer run.cancel()

	page, err := m.load(run.ctx, run.fetchURL, true)

	m.mu.Lock()
	defer m.mu.Unlock()

	current := run.gen == m.prefetchGen
	if current {
		m.prefetchCancel = nil
		m.prefetchURL = ""
	}

	if err != nil {
		if models.CodeOf(err) == models.ErrCodeCancelled {
			slog.Debug("quickview: prefetch cancelled", "session", m.opts.Session, "url", run.url)
		} else {
			slog.Warn("quickview: prefetch failed", "session", m.opts.Session, "url", run.url, "error", err)
		}
		return
	}
	if !current || run.ctx.Err() != nil {
		slog.Debug("quickview: prefetch superseded", "session", m.opts.Session, "url", run.url)
		return
	}

	m.cache.Set(run.url, cache.Entry{Fragment: page.Section, Product: page.Product, SDKScriptURL: page.SDKScriptURL})
}

// cancelPrefetchLocked stops the hover timer, aborts the in-flight prefetch
// and invalidates both, so a callback or response already on its way is
// discarded.
func (m *Manager) cancelPrefetchLocked() {
	if m.hoverTimer != nil {
		m.hoverTimer.Stop()
		m.hoverTimer = nil
	}
	m.hoverGen++

	if m.prefetchCancel != nil {
		m.prefetchCancel()
		m.prefetchCancel = nil
	}
	m.prefetchGen++
	m.prefetchURL = ""
}

func (m *Manager) fetchURLLocked(productURL string) string {
	return fragment.Resolve(m.opts.BaseURL, fragment.BuildFetchURL(productURL, m.theme))
}

// load fetches and extracts a product page. Errors are *models.QuickViewError.
func (m *Manager) load(ctx context.Context, fetchURL string, prefetch bool) (*fragment.Page, error) {
	purpose := "open"
	if prefetch {
		purpose = "prefetch"
	}

	res, err := m.fetcher.Fetch(ctx, &engine.FetchRequest{URL: fetchURL, Prefetch: prefetch})
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		qerr := classify(ctx, err)
		fetchTotal.WithLabelValues(purpose, outcome(qerr.Code)).Inc()
		return nil, qerr
	}

	page, err := fragment.Extract(res.HTML, m.opts.SectionID)
	if page != nil && page.SDKScriptURL != "" {
		m.rememberSDKScript(page.SDKScriptURL)
	}
	if err != nil {
		code := models.ErrCodeInternal
		if errors.Is(err, fragment.ErrSectionNotFound) {
			code = models.ErrCodeSectionNotFound
		}
		fetchTotal.WithLabelValues(purpose, outcome(code)).Inc()
		return nil, models.NewQuickViewError(code, "product section not found in response", err)
	}

	fetchTotal.WithLabelValues(purpose, "ok").Inc()
	return page, nil
}

// sdkScriptLocked returns the SDK script for a content view: the one stored
// with the entry, else the first one this session has seen.
func (m *Manager) sdkScriptLocked(entry cache.Entry) string {
	if entry.SDKScriptURL != "" {
		return entry.SDKScriptURL
	}
	return m.sdkScriptURL
}

func (m *Manager) rememberSDKScript(src string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sdkScriptURL == "" {
		m.sdkScriptURL = src
	}
}

func (m *Manager) publish(typ, productURL string) {
	if m.events == nil {
		return
	}
	m.events.Publish(events.New(typ, m.opts.Session, productURL))
}

// classify maps a fetch error to a coded error. Cancellation is kept apart
// from genuine failures.
func classify(ctx context.Context, err error) *models.QuickViewError {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return models.NewQuickViewError(models.ErrCodeCancelled, "request cancelled", err)
	}
	var se *engine.StatusError
	if errors.As(err, &se) {
		return models.NewQuickViewError(models.ErrCodeUpstreamStatus, se.Error(), err)
	}
	return models.NewQuickViewError(models.ErrCodeFetchFailed, "failed to fetch product page", err)
}

func outcome(code string) string {
	switch code {
	case models.ErrCodeCancelled:
		return "cancelled"
	case models.ErrCodeUpstreamStatus:
		return "upstream_status"
	case models.ErrCodeSectionNotFound:
		return "section_not_found"
	default:
		return "fetch_failed"
	}
}
