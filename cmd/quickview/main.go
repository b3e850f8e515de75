package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/use-agent/quickview/api"
	"github.com/use-agent/quickview/cache"
	"github.com/use-agent/quickview/config"
	"github.com/use-agent/quickview/engine"
	"github.com/use-agent/quickview/events"
	"github.com/use-agent/quickview/quickview"
	"github.com/use-agent/quickview/render"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("quickview starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"storefront", cfg.Storefront.BaseURL,
		"cacheSize", cfg.QuickView.CacheSize,
		"hoverDelay", cfg.QuickView.HoverDelay,
	)

	// ── 3. Fetch engines ────────────────────────────────────────────
	engines := []engine.Engine{engine.NewHTTPEngine(engine.HTTPOptions{
		ChromeTLS: cfg.Storefront.ChromeTLS,
		Proxy:     cfg.Storefront.Proxy,
	})}
	if cfg.Browser.Enabled {
		rod, err := engine.NewRodEngine(cfg.Browser)
		if err != nil {
			slog.Error("failed to launch browser engine", "error", err)
			os.Exit(1)
		}
		defer rod.Close()
		engines = append(engines, rod)
	}
	dispatcher := engine.NewDispatcher(engines...).WithMemory(engine.NewHostMemory(time.Hour))
	slog.Info("fetch engines ready", "engines", dispatcher.Names())

	// ── 4. Cache, events and sessions ───────────────────────────────
	cc := cache.New(cfg.QuickView.CacheSize)

	bus := events.NewBus()
	if cfg.Webhook.URL != "" {
		bus.Subscribe(events.NewWebhook(cfg.Webhook.URL, cfg.Webhook.Secret).Handler())
		slog.Info("event webhook enabled", "url", cfg.Webhook.URL)
	}

	messages := render.Messages{
		ErrorMessage: cfg.QuickView.ErrorMessage,
		GoToProduct:  cfg.QuickView.GoToProduct,
	}
	registry := quickview.NewRegistry(func(session string) *quickview.Manager {
		return quickview.New(cc, dispatcher, bus, quickview.Options{
			Session:       session,
			SectionID:     cfg.QuickView.SectionID,
			ProductPrefix: cfg.QuickView.ProductPrefix,
			BaseURL:       cfg.Storefront.BaseURL,
			HoverDelay:    cfg.QuickView.HoverDelay,
			Messages:      messages,
		})
	}, cfg.QuickView.SessionTTL)
	defer registry.Close()
	unsubscribe := registry.Listen(bus)
	defer unsubscribe()

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(cfg, api.Deps{
		Registry: registry,
		Cache:    cc,
		Bus:      bus,
		Engines:  dispatcher.Names(),
	}, time.Now())

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Deferred: sessions stop (timers and in-flight fetches cancelled), then
	// the browser engine, if any, is killed.
	slog.Info("quickview stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
