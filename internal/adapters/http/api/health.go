package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/fightrank/pkg/metrics"
)

// HealthHandler answers liveness probes with the fightrank registry.
type HealthHandler struct {
	registry http.Handler
}

// NewHealthHandler exposes metrics.GetRegistry without the default Go
// collectors of the global registry.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{registry: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})}
}

// HandleHealth handles GET /healthz.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	h.registry.ServeHTTP(w, r)
}
