package handlers

import (
	"net/http"

	"example.com/swiftcheck/internal/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsHandler exposes the in-process metrics collector
type MetricsHandler struct {
	metrics *metrics.Metrics
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(collector *metrics.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: collector}
}

// HandleMetrics returns all collected metrics as JSON
func (h *MetricsHandler) HandleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.GetAllMetrics())
}

// RegisterRoutes registers the handler's routes
func (h *MetricsHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/metrics", h.HandleMetrics)
}
