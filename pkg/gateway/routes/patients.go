package routes

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
	"github.com/sentinel-health/copd-monitor/pkg/patient"
)

type WeatherLookup interface {
	GetWeather(ctx context.Context, city, country string, locale models.Locale) (models.WeatherData, error)
}

type ImpactAnalyzer interface {
	AnalyzeWeatherImpact(ctx context.Context, p *models.PatientSnapshot, w models.WeatherData, locale models.Locale) models.WeatherImpact
}

// Refresher is the slice of the coordinator the patient routes need so a new
// reading for the monitored patient shows up immediately.
type Refresher interface {
	ActivePatient() (string, bool)
	Refresh(ctx context.Context) error
}

type PatientsHandler struct {
	service       *patient.Service
	weather       WeatherLookup
	impact        ImpactAnalyzer
	refresher     Refresher
	defaultLocale models.Locale
}

type EnvironmentResponse struct {
	Weather models.WeatherData   `json:"weather"`
	Impact  models.WeatherImpact `json:"impact"`
}

func NewPatientsHandler(service *patient.Service, weather WeatherLookup, impact ImpactAnalyzer, refresher Refresher, defaultLocale models.Locale) *PatientsHandler {
	return &PatientsHandler{
		service:       service,
		weather:       weather,
		impact:        impact,
		refresher:     refresher,
		defaultLocale: defaultLocale,
	}
}

func (h *PatientsHandler) Register(r *mux.Router) {
	r.HandleFunc("/patients", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/patients", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/patients/code/{code}", h.handleByCode).Methods(http.MethodGet)
	r.HandleFunc("/patients/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/patients/{id}/measurements", h.handleMeasurement).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id}/doses", h.handleDose).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id}/risk", h.handleRisk).Methods(http.MethodGet)
	r.HandleFunc("/patients/{id}/environment", h.handleEnvironment).Methods(http.MethodGet)
}

func (h *PatientsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	patients, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err, "failed to list patients")
		return
	}
	writeJSON(w, patients)
}

func (h *PatientsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req models.NewPatient
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid patient payload", http.StatusBadRequest)
		return
	}

	p, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, err, "failed to create patient")
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *PatientsHandler) handleByCode(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err, "failed to load patient")
		return
	}
	writeJSON(w, p)
}

func (h *PatientsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, "failed to load patient")
		return
	}
	writeJSON(w, p)
}

func (h *PatientsHandler) handleMeasurement(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	id := mux.Vars(r)["id"]

	var m models.Measurement
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, "invalid measurement payload", http.StatusBadRequest)
		return
	}
	if err := h.service.RecordMeasurement(r.Context(), id, m); err != nil {
		writeError(w, err, "failed to record measurement")
		return
	}

	if active, ok := h.refresher.ActivePatient(); ok && active == id {
		if err := h.refresher.Refresh(r.Context()); err != nil {
			logger.ForPatient(id).WithError(err).Warn("refresh after measurement failed")
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *PatientsHandler) handleDose(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var dose models.MedicationDoseEvent
	if err := json.NewDecoder(r.Body).Decode(&dose); err != nil {
		http.Error(w, "invalid dose payload", http.StatusBadRequest)
		return
	}

	logged, err := h.service.LogDose(r.Context(), mux.Vars(r)["id"], dose)
	if err != nil {
		writeError(w, err, "failed to log dose")
		return
	}
	respondJSON(w, http.StatusCreated, logged)
}

func (h *PatientsHandler) handleRisk(w http.ResponseWriter, r *http.Request) {
	assessment, err := h.service.Assess(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, "failed to assess patient")
		return
	}
	writeJSON(w, assessment)
}

func (h *PatientsHandler) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, "failed to load patient")
		return
	}
	locale := requestLocale(r, "", h.defaultLocale)

	data, err := h.weather.GetWeather(r.Context(), p.City, p.Country, locale)
	if err != nil {
		writeError(w, err, "could not retrieve real-time weather data")
		return
	}

	writeJSON(w, EnvironmentResponse{
		Weather: data,
		Impact:  h.impact.AnalyzeWeatherImpact(r.Context(), p, data, locale),
	})
}
