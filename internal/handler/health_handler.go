package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/kasi-it/incident-desk/pkg/response"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db      *sqlx.DB
	redis   *redis.Client
	version string
}

// NewHealthHandler constructs the handler. redis may be nil when the
// stats cache is disabled.
func NewHealthHandler(db *sqlx.DB, redis *redis.Client, version string) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, version: version}
}

// Health godoc
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"status": "ok", "version": h.version}, nil)
}

// Ready godoc
// @Summary Readiness probe
// @Tags Health
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	status := http.StatusOK

	// The CSV mirror keeps reads alive when the store is down, so a
	// failing store degrades readiness instead of failing it outright.
	if err := h.db.PingContext(ctx); err != nil {
		checks["store"] = "degraded: " + err.Error()
	} else {
		checks["store"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["cache"] = "degraded: " + err.Error()
		} else {
			checks["cache"] = "ok"
		}
	}

	response.JSON(c, status, checks, nil)
}
