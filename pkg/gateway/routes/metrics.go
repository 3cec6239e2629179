package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sentinel-health/copd-monitor/pkg/observability/metrics"
)

type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Register mounts the JSON overview on r. The Prometheus endpoint lives at
// the server root; see ServePrometheus.
func (h *MetricsHandler) Register(r *mux.Router) {
	r.HandleFunc("/metrics/overview", h.handleOverview).Methods(http.MethodGet)
}

func (h *MetricsHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, metrics.Current())
}

func ServePrometheus(w http.ResponseWriter, r *http.Request) {
	metrics.WritePrometheus(w)
}
