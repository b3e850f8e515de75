package handler

import (
	"log/slog"
	"net/http"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/gin-gonic/gin"
	"github.com/use-agent/quickview/fragment"
	"github.com/use-agent/quickview/models"
	"github.com/use-agent/quickview/quickview"
	"github.com/use-agent/quickview/render"
)

// OpenQuickView returns a handler for POST /api/v1/quickview/open.
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Record the storefront page so its theme reaches upstream fetches.
//  3. Manager.Open → cached fragment, fetched fragment, or error panel.
//  4. Convert the fragment to Markdown when asked.
//
// A modal that ends in the error state is still a 200: the response carries
// the panel markup for the client to show.
func OpenQuickView(reg *quickview.Registry, conv *converter.Converter, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.OpenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		req.Defaults()
		if req.URL == "" && req.Slug == "" {
			respondError(c, models.NewQuickViewError(models.ErrCodeInvalidInput, "one of url or slug is required", nil))
			return
		}

		m := reg.Get(sessionID(c))
		if req.PageURL != "" {
			m.SetPageURL(req.PageURL)
		}

		view := m.Open(c.Request.Context(), quickview.OpenRequest{Slug: req.Slug, URL: req.URL})
		resp := toResponse(view)

		if req.Format == "markdown" && view.State == render.StateContent {
			md, err := fragment.ToMarkdown(conv, view.ContentHTML, baseURL)
			if err != nil {
				slog.Error("markdown conversion failed", "url", view.ProductURL, "error", err)
				respondError(c, models.NewQuickViewError(models.ErrCodeInternal, "markdown conversion failed", err))
				return
			}
			resp.Content = md
		}

		c.JSON(http.StatusOK, resp)
	}
}

// CloseQuickView returns a handler for POST /api/v1/quickview/close.
func CloseQuickView(reg *quickview.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m, ok := reg.Lookup(sessionID(c)); ok {
			m.Close()
		}
		c.JSON(http.StatusOK, models.AckResponse{Success: true})
	}
}

// GetQuickView returns a handler for GET /api/v1/quickview. Unknown sessions
// report a closed modal.
func GetQuickView(reg *quickview.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		view := render.Closed()
		if m, ok := reg.Lookup(sessionID(c)); ok {
			view = m.View()
		}
		c.JSON(http.StatusOK, toResponse(view))
	}
}
