package obs

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hackmate/pkg/response"
)

// HealthHandlers exposes endpoints for liveness and readiness checks.
type HealthHandlers struct {
	Ready func(ctx context.Context) error
}

func (h HealthHandlers) RegisterRoutes(router gin.IRouter) {
	router.GET("/livez", h.Livez)
	router.GET("/readyz", h.Readyz)
}

// @Summary Liveness probe
// @Tags health
// @Success 200
// @Router /livez [get]
func (h HealthHandlers) Livez(c *gin.Context) {
	c.Status(http.StatusOK)
}

// @Summary Readiness probe
// @Description Fails while the database is unreachable
// @Tags health
// @Produce json
// @Success 200 {object} response.APIResponse
// @Failure 503 {object} response.APIResponse
// @Router /readyz [get]
func (h HealthHandlers) Readyz(c *gin.Context) {
	if h.Ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ready(ctx); err != nil {
			response.SendError(c, http.StatusServiceUnavailable, "not ready: "+err.Error())
			return
		}
	}
	response.SendAPIResponse(c, http.StatusOK, true, "ready", nil)
}
