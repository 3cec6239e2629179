package prediction

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

// Trigger probabilities. Only High can raise a vital sign alert and only
// Medium can raise a mobility alert.
const (
	vitalAlertThreshold    = 0.5
	mobilityAlertThreshold = 0.7

	vitalAlertConfidence    = 95
	mobilityAlertConfidence = 88
)

// DeriveAlerts regenerates the anomaly set for one cycle. At most one alert is
// returned and nothing carries over from the previous cycle.
func DeriveAlerts(level models.RiskLevel, p *models.PatientSnapshot, rng RandomSource, now time.Time) []models.AnomalyAlert {
	alerts := []models.AnomalyAlert{}

	switch level {
	case models.RiskHigh:
		if rng.Float64() <= vitalAlertThreshold {
			return alerts
		}
		current := "N/A"
		if m, ok := p.LatestMeasurement(); ok {
			current = fmt.Sprintf("%g%%", m.SpO2)
		}
		alerts = append(alerts, models.AnomalyAlert{
			ID:          "alert-" + uuid.New().String(),
			Type:        models.AlertVitalSignAnomaly,
			Severity:    models.SeverityHigh,
			Description: "SpO₂ drop detected. Current: " + current,
			Timestamp:   now,
			Confidence:  vitalAlertConfidence,
		})
	case models.RiskMedium:
		if rng.Float64() <= mobilityAlertThreshold {
			return alerts
		}
		alerts = append(alerts, models.AnomalyAlert{
			ID:          "alert-" + uuid.New().String(),
			Type:        models.AlertMobilityDecline,
			Severity:    models.SeverityMedium,
			Description: "Significant drop in daily steps detected.",
			Timestamp:   now,
			Confidence:  mobilityAlertConfidence,
		})
	}

	return alerts
}

// SortAlerts orders by severity, high first, then newest first.
func SortAlerts(alerts []models.AnomalyAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Severity.Rank(), alerts[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})
}
