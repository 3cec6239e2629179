package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
	"github.com/sentinel-health/copd-monitor/pkg/patient"
	"github.com/sentinel-health/copd-monitor/pkg/prediction"
	"github.com/sentinel-health/copd-monitor/pkg/weather"
)

func writeJSON(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, data)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.WithError(err).Error("failed to write json response")
	}
}

// writeError maps domain errors onto status codes. Unexpected errors are
// logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, patient.ErrNotFound):
		http.Error(w, "patient not found", http.StatusNotFound)
	case patient.IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, weather.ErrLocationRequired):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, weather.ErrCityNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, prediction.ErrNoSession):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Log.WithError(err).Error(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

// requestLocale picks the locale from an explicit value, then the lang query
// parameter, then Accept-Language.
func requestLocale(r *http.Request, explicit string, fallback models.Locale) models.Locale {
	candidates := []string{explicit, r.URL.Query().Get("lang")}
	if al := r.Header.Get("Accept-Language"); len(al) >= 2 {
		candidates = append(candidates, strings.ToLower(al[:2]))
	}
	for _, c := range candidates {
		switch models.Locale(c) {
		case models.LocaleFrench, models.LocaleEnglish, models.LocaleArabic:
			return models.Locale(c)
		}
	}
	return fallback
}
