// Package dashboard assembles the cross-patient alert feed shown on the
// clinician overview.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

const (
	declineThreshold  = 3.0
	declineWindow     = 3
	measurementMaxAge = 24 * time.Hour
)

type Scorer interface {
	Score(p *models.PatientSnapshot) models.RiskAssessment
}

type Lister interface {
	List(ctx context.Context) ([]*models.PatientSnapshot, error)
}

type Service struct {
	patients Lister
	scorer   Scorer
	now      func() time.Time
}

func NewService(patients Lister, scorer Scorer) *Service {
	return &Service{patients: patients, scorer: scorer, now: time.Now}
}

// Alerts scores every patient and returns the sorted alert feed.
func (s *Service) Alerts(ctx context.Context) ([]models.PatientAlert, error) {
	patients, err := s.patients.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return BuildAlerts(patients, s.scorer, s.now()), nil
}

// BuildAlerts emits at most one alert per patient and type, sorted by
// severity then newest first.
func BuildAlerts(patients []*models.PatientSnapshot, scorer Scorer, now time.Time) []models.PatientAlert {
	alerts := []models.PatientAlert{}
	seen := make(map[string]bool)

	add := func(p *models.PatientSnapshot, typ models.PatientAlertType, sev models.Severity, msg string, ts time.Time) {
		id := fmt.Sprintf("%s-%s", p.ID, typ)
		if seen[id] {
			return
		}
		seen[id] = true
		alerts = append(alerts, models.PatientAlert{
			ID:          id,
			PatientID:   p.ID,
			PatientName: p.Name,
			Type:        typ,
			Severity:    sev,
			Message:     msg,
			Timestamp:   ts,
		})
	}

	for _, p := range patients {
		latest, hasLatest := p.LatestMeasurement()

		if a := scorer.Score(p); a.Level == models.RiskHigh {
			msg := fmt.Sprintf("High risk score: %d.", a.Score)
			if hasLatest {
				msg += fmt.Sprintf(" Latest SpO₂: %g%%.", latest.SpO2)
			}
			add(p, models.PatientAlertHighRisk, models.SeverityHigh, msg, now)
		}

		if drop, ok := spo2Decline(p.Measurements); ok && drop >= declineThreshold {
			add(p, models.PatientAlertDecliningTrend, models.SeverityMedium,
				fmt.Sprintf("Declining SpO₂ trend: %.1f points below recent average.", drop), latest.Timestamp)
		}

		switch {
		case !hasLatest:
			add(p, models.PatientAlertMissedMeasurement, models.SeverityLow, "No measurement recorded yet.", now)
		case now.Sub(latest.Timestamp) > measurementMaxAge:
			add(p, models.PatientAlertMissedMeasurement, models.SeverityLow,
				"No measurement in the last 24 hours.", latest.Timestamp.Add(measurementMaxAge))
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Severity.Rank(), alerts[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})
	return alerts
}

// spo2Decline compares the latest SpO₂ against the mean of up to three
// preceding readings. Measurements are ordered oldest first.
func spo2Decline(ms []models.Measurement) (float64, bool) {
	if len(ms) < 2 {
		return 0, false
	}
	last := len(ms) - 1
	start := last - declineWindow
	if start < 0 {
		start = 0
	}

	var sum float64
	for _, m := range ms[start:last] {
		sum += m.SpO2
	}
	mean := sum / float64(last-start)
	return mean - ms[last].SpO2, true
}
