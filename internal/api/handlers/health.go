package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dhima/reading-log/internal/logging"
	"github.com/dhima/reading-log/internal/readinglog"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthPingTimeout = 2 * time.Second

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	logger    logging.Logger
	db        Pinger
	readiness *readinglog.Readiness
	version   string
}

// NewHealthHandler creates a new health check handler.
func NewHealthHandler(logger logging.Logger, db Pinger, readiness *readinglog.Readiness, version string) *HealthHandler {
	return &HealthHandler{
		logger:    logger,
		db:        db,
		readiness: readiness,
		version:   version,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status" example:"ok"`
	Service     string `json:"service" example:"reading-log"`
	Version     string `json:"version" example:"1.0.0"`
	Database    string `json:"database" example:"ok"`
	Schema      string `json:"schema" example:"ok"`
	SchemaError string `json:"schema_error,omitempty"`
} // @name HealthResponse

// Health godoc
// @Summary Health check endpoint
// @Description Reports database connectivity and whether the log table is usable
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:   "ok",
		Service:  "reading-log",
		Version:  h.version,
		Database: "ok",
		Schema:   "ok",
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check database ping failed", zap.Error(err))
		resp.Database = "unreachable"
		resp.Status = "degraded"
	}

	if h.readiness != nil && !h.readiness.Ready() {
		resp.Schema = "degraded"
		resp.Status = "degraded"
		if err := h.readiness.LastError(); err != nil {
			resp.SchemaError = err.Error()
		}
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
