package routes

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
	"github.com/sentinel-health/copd-monitor/pkg/prediction"
)

type MonitoringHandler struct {
	coordinator   *prediction.Coordinator
	stream        http.Handler
	defaultLocale models.Locale
}

type StartRequest struct {
	PatientID string `json:"patient_id"`
	Locale    string `json:"locale"`
}

type MonitoringStatus struct {
	Session    *prediction.SessionInfo    `json:"session"`
	Prediction *models.CompletePrediction `json:"prediction"`
}

// NewMonitoringHandler serves the live session API. stream may be nil when
// websockets are disabled.
func NewMonitoringHandler(coordinator *prediction.Coordinator, stream http.Handler, defaultLocale models.Locale) *MonitoringHandler {
	return &MonitoringHandler{coordinator: coordinator, stream: stream, defaultLocale: defaultLocale}
}

func (h *MonitoringHandler) Register(r *mux.Router) {
	r.HandleFunc("/monitoring/start", h.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/monitoring/refresh", h.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/monitoring/stop", h.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/monitoring/prediction", h.handlePrediction).Methods(http.MethodGet)
	r.HandleFunc("/monitoring/session", h.handleSession).Methods(http.MethodGet)
	if h.stream != nil {
		r.Handle("/monitoring/stream", h.stream).Methods(http.MethodGet)
	}
}

func (h *MonitoringHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid start request", http.StatusBadRequest)
		return
	}
	if req.PatientID == "" {
		http.Error(w, "patient_id is required", http.StatusBadRequest)
		return
	}

	locale := requestLocale(r, req.Locale, h.defaultLocale)
	if err := h.coordinator.Start(r.Context(), req.PatientID, locale); err != nil {
		writeError(w, err, "failed to start monitoring")
		return
	}
	if err := h.coordinator.Refresh(r.Context()); err != nil {
		writeError(w, err, "failed to compute prediction")
		return
	}
	h.writeStatus(w)
}

func (h *MonitoringHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.coordinator.Session(); err != nil {
		writeError(w, err, "no session")
		return
	}
	if err := h.coordinator.Refresh(r.Context()); err != nil {
		writeError(w, err, "failed to compute prediction")
		return
	}
	h.writeStatus(w)
}

func (h *MonitoringHandler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.coordinator.Stop()
	w.WriteHeader(http.StatusNoContent)
}

func (h *MonitoringHandler) handlePrediction(w http.ResponseWriter, r *http.Request) {
	pred, ok := h.coordinator.Latest()
	if !ok {
		http.Error(w, "no prediction available", http.StatusNotFound)
		return
	}
	writeJSON(w, pred)
}

func (h *MonitoringHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w)
}

func (h *MonitoringHandler) writeStatus(w http.ResponseWriter) {
	var status MonitoringStatus
	if info, err := h.coordinator.Session(); err == nil {
		status.Session = &info
	}
	if pred, ok := h.coordinator.Latest(); ok {
		status.Prediction = &pred
	}
	writeJSON(w, status)
}
