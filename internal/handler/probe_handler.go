package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type metricsExposer interface {
	Handler() http.Handler
}

type readinessChecker interface {
	Ready(ctx context.Context) error
}

// ProbeHandler serves the unauthenticated liveness, readiness and scrape
// endpoints.
type ProbeHandler struct {
	metrics metricsExposer
	ready   readinessChecker
}

// NewProbeHandler constructs a probe handler. Either dependency may be nil.
func NewProbeHandler(metrics metricsExposer, ready readinessChecker) *ProbeHandler {
	return &ProbeHandler{metrics: metrics, ready: ready}
}

// Live answers as long as the process can serve HTTP.
func (h *ProbeHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready returns 503 while a required dependency is unreachable.
func (h *ProbeHandler) Ready(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready.Ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Metrics hands the request to the Prometheus exposition handler.
func (h *ProbeHandler) Metrics(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "metrics disabled"})
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
