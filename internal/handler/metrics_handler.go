package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the Prometheus scrape endpoint.
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler wraps the registry in the standard scrape handler.
func NewMetricsHandler(registry *prometheus.Registry) *MetricsHandler {
	return &MetricsHandler{
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
}

// Register mounts /metrics on the root router, outside the API prefix.
func (h *MetricsHandler) Register(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(h.handler))
}
