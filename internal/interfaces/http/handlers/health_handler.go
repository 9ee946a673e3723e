package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oljc/arcoserve/internal/application/dto"
)

// HealthHandler reports process and store liveness.
type HealthHandler struct {
	rdb *redis.Client
}

// NewHealthHandler creates the health endpoint handler.
func NewHealthHandler(rdb *redis.Client) *HealthHandler {
	return &HealthHandler{rdb: rdb}
}

// Health answers 200 when the store is reachable, 503 otherwise.
func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.rdb.Ping(c.Request.Context()).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.Err(503, "store unavailable"))
		return
	}
	c.JSON(http.StatusOK, dto.OK(gin.H{"status": "up"}))
}
