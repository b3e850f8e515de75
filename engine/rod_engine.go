package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/quickview/config"
)

// RodEngine renders product pages in headless Chromium. It is the fallback
// for storefronts whose product section is built client side.
type RodEngine struct {
	browser  *rod.Browser
	pagePool rod.Pool[rod.Page]
	health   *pageHealth[*rod.Page]
	blocked  map[proto.NetworkResourceType]struct{}
	cfg      config.BrowserConfig
}

// NewRodEngine launches a browser and initialises the page pool.
func NewRodEngine(cfg config.BrowserConfig) (*RodEngine, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("rod: launch browser: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("rod: connect browser: %w", err)
	}

	maxPages := cfg.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}

	return &RodEngine{
		browser:  browser,
		pagePool: rod.NewPagePool(maxPages),
		health:   newPageHealth[*rod.Page](),
		blocked:  blockedResourceTypes(cfg.BlockedResourceTypes),
		cfg:      cfg,
	}, nil
}

func (e *RodEngine) Name() string { return "rod" }

// Fetch navigates a pooled page to req.URL and returns the rendered HTML.
func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.NavigationTimeout)
		defer cancel()
	}

	page, err := e.pagePool.Get(func() (*rod.Page, error) {
		if e.cfg.Stealth {
			return stealth.Page(e.browser)
		}
		return e.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		e.pagePool.Put(nil)
		return nil, fmt.Errorf("rod: acquire page: %w", err)
	}

	result, err := e.render(ctx, page, req)
	e.release(page, err)
	return result, err
}

// release returns page to the pool, or closes it and frees its slot when it
// is due for retirement. Cancellation and upstream status errors do not
// count against the page.
func (e *RodEngine) release(page *rod.Page, err error) {
	var se *StatusError
	ok := err == nil || errors.As(err, &se) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if e.health.record(page, ok) {
		slog.Debug("rod: retiring page")
		_ = page.Close()
		e.pagePool.Put(nil)
		return
	}
	if navErr := page.Navigate("about:blank"); navErr != nil {
		slog.Warn("rod: failed to reset page", "error", navErr)
	}
	e.pagePool.Put(page)
}

func (e *RodEngine) render(ctx context.Context, page *rod.Page, req *FetchRequest) (*FetchResult, error) {
	// Best effort: a page without the extra headers still renders.
	_ = setRequestHeaders(page, req)

	if router := blockResources(page, e.blocked); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)
	if err := p.Navigate(req.URL); err != nil {
		return nil, e.wrap(ctx, "navigate", err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, e.wrap(ctx, "wait load", err)
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("rod: DOM did not settle, using current DOM", "url", req.URL, "error", err)
	}

	statusCode := 0
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); err == nil {
		statusCode = res.Value.Int()
	}
	if statusCode != 0 && (statusCode < 200 || statusCode > 299) {
		return nil, &StatusError{StatusCode: statusCode, URL: req.URL}
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, e.wrap(ctx, "read html", err)
	}

	finalURL := req.URL
	if info, err := p.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return &FetchResult{
		HTML:       rawHTML,
		StatusCode: statusCode,
		FinalURL:   finalURL,
		EngineName: e.Name(),
	}, nil
}

// wrap prefers the context error so callers can tell cancellation apart.
func (e *RodEngine) wrap(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("rod: %s: %w", op, ctxErr)
	}
	return fmt.Errorf("rod: %s: %w", op, err)
}

// Close drains the page pool and kills the browser process.
func (e *RodEngine) Close() {
	e.pagePool.Cleanup(func(p *rod.Page) {
		if p != nil {
			_ = p.Close()
		}
	})
	e.browser.MustClose()
	slog.Info("browser closed")
}

// setRequestHeaders applies the fetch headers (minus Accept, which the
// browser sets per resource) to every request the page makes.
func setRequestHeaders(c proto.Client, req *FetchRequest) error {
	headers := requestHeaders(req)
	delete(headers, "Accept")
	if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}).Call(c); err != nil {
		slog.Debug("rod: failed to set request headers", "url", req.URL, "error", err)
		return fmt.Errorf("rod: set headers: %w", err)
	}
	return nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
