package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
	"github.com/sentinel-health/copd-monitor/pkg/dashboard"
)

type AlertsHandler struct {
	service *dashboard.Service
}

type AlertSummary struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

type AlertsResponse struct {
	Summary AlertSummary          `json:"summary"`
	Items   []models.PatientAlert `json:"items"`
}

func NewAlertsHandler(service *dashboard.Service) *AlertsHandler {
	return &AlertsHandler{service: service}
}

func (h *AlertsHandler) Register(r *mux.Router) {
	r.HandleFunc("/alerts", h.handleList).Methods(http.MethodGet)
}

func (h *AlertsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.Alerts(r.Context())
	if err != nil {
		writeError(w, err, "failed to fetch alerts")
		return
	}

	var summary AlertSummary
	for _, a := range alerts {
		switch a.Severity {
		case models.SeverityHigh:
			summary.High++
		case models.SeverityMedium:
			summary.Medium++
		default:
			summary.Low++
		}
	}
	writeJSON(w, AlertsResponse{Summary: summary, Items: alerts})
}
