package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/quickview/models"
)

// mcpSession is the quick-view session the MCP server acts as.
const mcpSession = "mcp"

func main() {
	_ = godotenv.Load()

	apiURL := os.Getenv("QUICKVIEW_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	client := &apiClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  os.Getenv("QUICKVIEW_API_KEY"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}

	s := server.NewMCPServer(
		"quickview",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	quickViewTool := mcp.NewTool("quick_view",
		mcp.WithDescription("Open a storefront product in quick view and return its main product section. Served from the fragment cache when the product was viewed or prefetched recently."),
		mcp.WithString("url",
			mcp.Description("Product detail URL, e.g. '/p/trail-shoe'. Takes precedence over slug."),
		),
		mcp.WithString("slug",
			mcp.Description("Product slug; the URL becomes '/p/<slug>'"),
		),
		mcp.WithString("format",
			mcp.Description("Content format: 'markdown' (default) or 'html'"),
			mcp.Enum("markdown", "html"),
		),
	)
	s.AddTool(quickViewTool, handleQuickView(client))

	prefetchTool := mcp.NewTool("prefetch_product",
		mcp.WithDescription("Warm the fragment cache for a product so a later quick_view is instant. Returns immediately; failures are silent."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Product detail URL to prefetch"),
		),
	)
	s.AddTool(prefetchTool, handlePrefetch(client))

	statsTool := mcp.NewTool("cache_stats",
		mcp.WithDescription("Report fragment cache occupancy, hit/miss counters and active sessions."),
	)
	s.AddTool(statsTool, handleCacheStats(client))

	clearTool := mcp.NewTool("clear_cache",
		mcp.WithDescription("Drop every cached product fragment."),
	)
	s.AddTool(clearTool, handleClearCache(client))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

// apiClient calls the quick-view HTTP API.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// do sends a JSON request and decodes the JSON response into out.
func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", mcpSession)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func errorText(fallback string, e *models.ErrorDetail) string {
	if e == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func handleQuickView(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := models.OpenRequest{
			URL:    request.GetString("url", ""),
			Slug:   request.GetString("slug", ""),
			Format: request.GetString("format", "markdown"),
		}
		if req.URL == "" && req.Slug == "" {
			return mcp.NewToolResultError("one of url or slug is required"), nil
		}

		var resp models.QuickViewResponse
		if err := c.do(ctx, http.MethodPost, "/api/v1/quickview/open", req, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(errorText("quick view failed", resp.Error)), nil
		}
		if resp.State == "error" {
			return mcp.NewToolResultError(errorText("failed to load product", resp.Error) +
				"\nProduct page: " + resp.ProductURL), nil
		}

		result := fmt.Sprintf("Product: %s\nCache: %s\n\n", resp.ProductURL, resp.CacheStatus)
		result += resp.Content

		// The modal is a one-shot for MCP callers.
		var ack models.AckResponse
		_ = c.do(ctx, http.MethodPost, "/api/v1/quickview/close", nil, &ack)

		return mcp.NewToolResultText(result), nil
	}
}

func handlePrefetch(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var ack models.AckResponse
		if err := c.do(ctx, http.MethodPost, "/api/v1/prefetch", models.PrefetchRequest{URL: url}, &ack); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !ack.Success {
			return mcp.NewToolResultError(errorText("prefetch rejected", ack.Error)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Prefetch of %s started.", url)), nil
	}
}

func handleCacheStats(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var health models.HealthResponse
		if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &health); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		st := health.Cache
		return mcp.NewToolResultText(fmt.Sprintf(
			"Status: %s\nCache: %d/%d entries\nHits: %d\nMisses: %d\nEvictions: %d\nSessions: %d\nEngines: %s",
			health.Status, st.Entries, st.Capacity, st.Hits, st.Misses, st.Evictions,
			health.Sessions, strings.Join(health.Engines, ", "),
		)), nil
	}
}

func handleClearCache(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var ack models.AckResponse
		if err := c.do(ctx, http.MethodDelete, "/api/v1/cache", nil, &ack); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !ack.Success {
			return mcp.NewToolResultError(errorText("clear failed", ack.Error)), nil
		}
		return mcp.NewToolResultText("Fragment cache cleared."), nil
	}
}
