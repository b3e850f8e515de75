package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/quickview/api/handler"
	"github.com/use-agent/quickview/api/middleware"
	"github.com/use-agent/quickview/cache"
	"github.com/use-agent/quickview/config"
	"github.com/use-agent/quickview/events"
	"github.com/use-agent/quickview/fragment"
	"github.com/use-agent/quickview/quickview"
)

// Deps are the shared services behind the HTTP API.
type Deps struct {
	Registry *quickview.Registry
	Cache    *cache.Cache
	Bus      *events.Bus
	Engines  []string
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth so probes and scrapers always work.
func NewRouter(cfg *config.Config, deps Deps, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(deps.Registry, deps.Cache, deps.Engines, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Modal
	conv := fragment.NewMarkdownConverter()
	protected.POST("/quickview/open", handler.OpenQuickView(deps.Registry, conv, cfg.Storefront.BaseURL))
	protected.POST("/quickview/close", handler.CloseQuickView(deps.Registry))
	protected.GET("/quickview", handler.GetQuickView(deps.Registry))

	// Prefetch
	protected.POST("/prefetch/hover", handler.Hover(deps.Registry))
	protected.POST("/prefetch/leave", handler.Leave(deps.Registry))
	protected.POST("/prefetch", handler.Prefetch(deps.Registry))

	// Storefront events
	protected.POST("/events/cart-updated", handler.CartUpdated(deps.Bus))

	// Cache
	protected.DELETE("/cache", handler.ClearCache(deps.Cache))

	return r
}
