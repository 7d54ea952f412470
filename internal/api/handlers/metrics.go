package handlers

import (
	"net/http"

	"github.com/dhima/reading-log/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the Prometheus exposition.
type MetricsHandler struct {
	logger  logging.Logger
	handler http.Handler
}

// NewMetricsHandler creates a metrics handler over the given registry.
func NewMetricsHandler(logger logging.Logger, registry *prometheus.Registry) *MetricsHandler {
	return &MetricsHandler{
		logger: logger,
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorLog:      zapErrorLog{logger},
			ErrorHandling: promhttp.ContinueOnError,
		}),
	}
}

// Metrics godoc
// @Summary Prometheus metrics
// @Description Save, history and token counters plus pool and runtime metrics in text exposition format
// @Tags System
// @Produce plain
// @Success 200 {string} string "Prometheus exposition"
// @Router /metrics [get]
func (h *MetricsHandler) Metrics(c *gin.Context) {
	h.handler.ServeHTTP(c.Writer, c.Request)
}

// zapErrorLog adapts the logger to promhttp.Logger.
type zapErrorLog struct {
	logger logging.Logger
}

func (l zapErrorLog) Println(v ...interface{}) {
	l.logger.Zap().Sugar().Error(v...)
}
