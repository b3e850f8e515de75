package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/quickview/cache"
	"github.com/use-agent/quickview/models"
	"github.com/use-agent/quickview/quickview"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports cache and session counts. Status is "degraded" when no fetch
// engine is configured.
func Health(reg *quickview.Registry, cc *cache.Cache, engines []string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := cc.Stats()

		status := "healthy"
		if len(engines) == 0 {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status: status,
			Uptime: time.Since(startTime).Round(time.Second).String(),
			Cache: models.CacheStats{
				Entries:   stats.Entries,
				Capacity:  stats.Capacity,
				Hits:      stats.Hits,
				Misses:    stats.Misses,
				Evictions: stats.Evictions,
			},
			Sessions: reg.Len(),
			Engines:  engines,
			Version:  Version,
		})
	}
}
