package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/quickview/models"
	"github.com/use-agent/quickview/render"
)

// SessionHeader names the storefront session a request belongs to.
const SessionHeader = "X-Session-ID"

// sessionID resolves the caller's session: the X-Session-ID header, then the
// API key set by the auth middleware, then the client IP.
func sessionID(c *gin.Context) string {
	if id := c.GetHeader(SessionHeader); id != "" {
		return id
	}
	if key, ok := c.Get("api_key"); ok {
		if s, ok := key.(string); ok && s != "" {
			return "key:" + s
		}
	}
	return "ip:" + c.ClientIP()
}

// toResponse converts a modal view into its JSON shape.
func toResponse(v render.View) models.QuickViewResponse {
	resp := models.QuickViewResponse{
		Success:      true,
		State:        string(v.State),
		ShowSkeleton: v.ShowSkeleton,
		ShowContent:  v.ShowContent,
		ShowFooter:   v.ShowFooter,
		Content:      v.ContentHTML,
		ProductURL:   v.ProductURL,
		Product:      v.Product,
		SDKScriptURL: v.SDKScriptURL,
	}
	if v.State == render.StateContent {
		resp.CacheStatus = "miss"
		if v.FromCache {
			resp.CacheStatus = "hit"
		}
	}
	if v.Error != nil {
		resp.Error = &models.ErrorDetail{Code: v.Error.Code, Message: v.Error.Message}
	}
	return resp
}

// respondError maps err to an HTTP status and writes a failed response.
func respondError(c *gin.Context, err error) {
	var qerr *models.QuickViewError
	if !errors.As(err, &qerr) {
		qerr = models.NewQuickViewError(models.ErrCodeInternal, err.Error(), err)
	}
	c.JSON(mapErrorToStatus(qerr), models.AckResponse{
		Success: false,
		Error:   qerr.ToDetail(),
	})
}

// bindError rejects a malformed request body.
func bindError(c *gin.Context, err error) {
	respondError(c, models.NewQuickViewError(models.ErrCodeInvalidInput, err.Error(), err))
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.QuickViewError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUpstreamStatus, models.ErrCodeFetchFailed, models.ErrCodeSectionNotFound:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}
