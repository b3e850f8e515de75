package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/quickview/models"
	"github.com/use-agent/quickview/quickview"
)

// Hover returns a handler for POST /api/v1/prefetch/hover. The prefetch it
// may trigger runs after the hover delay, outside the request.
func Hover(reg *quickview.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.HoverRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		m := reg.Get(sessionID(c))
		if req.PageURL != "" {
			m.SetPageURL(req.PageURL)
		}
		m.HoverOver(quickview.Card{ID: req.CardID, Href: req.Href, HTML: req.CardHTML})

		c.JSON(http.StatusAccepted, models.AckResponse{Success: true})
	}
}

// Leave returns a handler for POST /api/v1/prefetch/leave.
func Leave(reg *quickview.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LeaveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		if m, ok := reg.Lookup(sessionID(c)); ok {
			m.HoverOut(req.From, req.To)
		}
		c.JSON(http.StatusAccepted, models.AckResponse{Success: true})
	}
}

// Prefetch returns a handler for POST /api/v1/prefetch. The fetch runs in
// the background; it is cancelled by the session's next hover or prefetch,
// not by this request ending.
func Prefetch(reg *quickview.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.PrefetchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		m := reg.Get(sessionID(c))
		if req.PageURL != "" {
			m.SetPageURL(req.PageURL)
		}
		go m.Prefetch(context.Background(), req.URL)

		c.JSON(http.StatusAccepted, models.AckResponse{Success: true})
	}
}
