// Package risk converts a patient telemetry snapshot into a 0-100 exacerbation
// risk score using fixed weighted thresholds across three tiers of signals.
package risk

import (
	"math"
	"time"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

// Level thresholds.
const (
	HighThreshold   = 61
	MediumThreshold = 31
	MaxScore        = 100
)

// LevelFor maps a score onto the three categorical levels.
func LevelFor(score int) models.RiskLevel {
	switch {
	case score >= HighThreshold:
		return models.RiskHigh
	case score >= MediumThreshold:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// Scorer is safe for concurrent use. The clock only feeds the adherence window.
type Scorer struct {
	now func() time.Time
}

func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// NewScorerWithClock pins "now" for adherence calculations.
func NewScorerWithClock(now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{now: now}
}

func (s *Scorer) Score(p *models.PatientSnapshot) models.RiskAssessment {
	adherence := CalculateAdherence(p.Medications, p.MedicationLog, s.now())

	breakdown := models.TierBreakdown{
		Critical:  criticalPoints(p),
		Important: importantPoints(p, adherence),
		Secondary: secondaryPoints(p),
	}

	total := math.Round(breakdown.Critical + breakdown.Important + breakdown.Secondary)
	score := int(math.Max(0, math.Min(MaxScore, total)))

	return models.RiskAssessment{
		Score:     score,
		Level:     LevelFor(score),
		Breakdown: breakdown,
		Adherence: adherence,
	}
}

// Critical tier, ceiling 40.
func criticalPoints(p *models.PatientSnapshot) float64 {
	t := p.Telemetry
	var pts float64

	switch {
	case t.Activity.Steps < 1500:
		pts += 12
	case t.Activity.Steps < 2500:
		pts += 6
	}

	if t.Sleep.TotalSleepHours < 5 {
		pts += 5
	}
	if t.Sleep.SleepEfficiency < 70 {
		pts += 5
	}

	if t.Cough.CoughFrequencyPerHour > 10 {
		pts += 6
	}
	if t.Cough.NightCoughEpisodes > 5 {
		pts += 4
	}

	switch b := t.Reported.Symptoms.Breathlessness; {
	case b >= 8:
		pts += 8
	case b >= 6:
		pts += 4
	}

	return pts
}

// Important tier, ceiling 35. Vital sign rules read the latest measurement
// and are skipped when none exist.
func importantPoints(p *models.PatientSnapshot, adherence int) float64 {
	env := p.Telemetry.Environment
	var pts float64

	if m, ok := p.LatestMeasurement(); ok {
		switch {
		case m.HeartRate > 100:
			pts += 6
		case m.HeartRate > 90:
			pts += 3
		}

		switch {
		case m.SpO2 < 90:
			pts += 8
		case m.SpO2 < 92:
			pts += 5
		case m.SpO2 < 94:
			pts += 2.5
		}
	}

	switch {
	case env.AirQualityIndex > 100:
		pts += 5
	case env.AirQualityIndex > 75:
		pts += 2.5
	}

	if env.Weather.TemperatureC < 5 || env.Weather.TemperatureC > 30 {
		pts += 3.5
	}
	if env.Weather.HumidityPercent > 80 {
		pts += 3.5
	}

	switch {
	case adherence < 80:
		pts += 4
	case adherence < 90:
		pts += 2
	}

	switch {
	case env.HomeTimePercent > 95:
		pts += 5
	case env.HomeTimePercent > 85:
		pts += 2.5
	}

	return pts
}

// Secondary tier, ceiling 25.
func secondaryPoints(p *models.PatientSnapshot) float64 {
	var pts float64

	switch r := p.Telemetry.Environment.TravelRadiusKm; {
	case r < 1.0:
		pts += 15
	case r < 2.0:
		pts += 7
	}

	switch p.Telemetry.Sleep.SleepPosition {
	case models.SleepSitting:
		pts += 10
	case models.SleepSupine:
		pts += 3
	}

	return pts
}
