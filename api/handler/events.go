package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/quickview/cache"
	"github.com/use-agent/quickview/events"
	"github.com/use-agent/quickview/models"
)

// CartUpdated returns a handler for POST /api/v1/events/cart-updated. The
// event goes through the bus, which closes the session's modal and feeds any
// webhook subscriber.
func CartUpdated(bus *events.Bus) gin.HandlerFunc {
	return func(c *gin.Context) {
		bus.Publish(events.New(events.CartUpdated, sessionID(c), ""))
		c.JSON(http.StatusOK, models.AckResponse{Success: true})
	}
}

// ClearCache returns a handler for DELETE /api/v1/cache.
func ClearCache(cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		cc.Clear()
		c.JSON(http.StatusOK, models.AckResponse{Success: true})
	}
}
