package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type stubScorer map[string]int

func (s stubScorer) Score(p *models.PatientSnapshot) models.RiskAssessment {
	score := s[p.ID]
	level := models.RiskLow
	switch {
	case score >= 61:
		level = models.RiskHigh
	case score >= 31:
		level = models.RiskMedium
	}
	return models.RiskAssessment{Score: score, Level: level}
}

type stubLister struct {
	patients []*models.PatientSnapshot
	err      error
}

func (l stubLister) List(context.Context) ([]*models.PatientSnapshot, error) {
	return l.patients, l.err
}

func patientWith(id string, readings ...models.Measurement) *models.PatientSnapshot {
	return &models.PatientSnapshot{ID: id, Name: "Patient " + id, Measurements: readings}
}

func reading(ago time.Duration, spo2 float64) models.Measurement {
	return models.Measurement{Timestamp: fixedNow.Add(-ago), SpO2: spo2, HeartRate: 80}
}

func TestHighRiskAlertCitesScoreAndSpO2(t *testing.T) {
	p := patientWith("p1", reading(2*time.Hour, 90), reading(time.Hour, 88))

	alerts := BuildAlerts([]*models.PatientSnapshot{p}, stubScorer{"p1": 84}, fixedNow)

	require.Len(t, alerts, 1)
	assert.Equal(t, "p1-high_risk", alerts[0].ID)
	assert.Equal(t, models.PatientAlertHighRisk, alerts[0].Type)
	assert.Equal(t, models.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, "High risk score: 84. Latest SpO₂: 88%.", alerts[0].Message)
	assert.Equal(t, "Patient p1", alerts[0].PatientName)
}

func TestDecliningTrend(t *testing.T) {
	tests := []struct {
		name     string
		readings []models.Measurement
		want     bool
	}{
		{"drop of three points", []models.Measurement{reading(4*time.Hour, 95), reading(3*time.Hour, 94), reading(2*time.Hour, 96), reading(time.Hour, 92)}, true},
		{"small drop", []models.Measurement{reading(3*time.Hour, 95), reading(2*time.Hour, 94), reading(time.Hour, 93)}, false},
		{"older readings ignored", []models.Measurement{reading(5*time.Hour, 99), reading(4*time.Hour, 93), reading(3*time.Hour, 93), reading(2*time.Hour, 93), reading(time.Hour, 91)}, false},
		{"single reading", []models.Measurement{reading(time.Hour, 85)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := BuildAlerts([]*models.PatientSnapshot{patientWith("p1", tt.readings...)}, stubScorer{}, fixedNow)
			found := false
			for _, a := range alerts {
				if a.Type == models.PatientAlertDecliningTrend {
					found = true
					assert.Equal(t, models.SeverityMedium, a.Severity)
					assert.Equal(t, fixedNow.Add(-time.Hour), a.Timestamp)
				}
			}
			assert.Equal(t, tt.want, found)
		})
	}
}

func TestMissedMeasurement(t *testing.T) {
	stale := patientWith("stale", reading(30*time.Hour, 95))
	never := patientWith("never")
	fresh := patientWith("fresh", reading(time.Hour, 95))

	alerts := BuildAlerts([]*models.PatientSnapshot{stale, never, fresh}, stubScorer{}, fixedNow)

	require.Len(t, alerts, 2)
	assert.Equal(t, "never-missed_measurement", alerts[0].ID)
	assert.Equal(t, fixedNow, alerts[0].Timestamp)
	assert.Equal(t, "stale-missed_measurement", alerts[1].ID)
	assert.Equal(t, fixedNow.Add(-6*time.Hour), alerts[1].Timestamp)
	for _, a := range alerts {
		assert.Equal(t, models.SeverityLow, a.Severity)
	}
}

func TestAlertsSortedBySeverityThenRecency(t *testing.T) {
	high := patientWith("high", reading(time.Hour, 90))
	declining := patientWith("declining", reading(3*time.Hour, 95), reading(2*time.Hour, 90))
	missed := patientWith("missed", reading(26*time.Hour, 95))

	alerts := BuildAlerts([]*models.PatientSnapshot{missed, declining, high}, stubScorer{"high": 70}, fixedNow)

	require.Len(t, alerts, 3)
	assert.Equal(t, models.PatientAlertHighRisk, alerts[0].Type)
	assert.Equal(t, models.PatientAlertDecliningTrend, alerts[1].Type)
	assert.Equal(t, models.PatientAlertMissedMeasurement, alerts[2].Type)
}

func TestOneAlertPerPatientAndType(t *testing.T) {
	p := patientWith("dup", reading(time.Hour, 90))

	alerts := BuildAlerts([]*models.PatientSnapshot{p, p}, stubScorer{"dup": 90}, fixedNow)

	require.Len(t, alerts, 1)
}

func TestServiceAlerts(t *testing.T) {
	svc := NewService(stubLister{patients: []*models.PatientSnapshot{patientWith("p1")}}, stubScorer{})
	svc.now = func() time.Time { return fixedNow }

	alerts, err := svc.Alerts(context.Background())
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	svc = NewService(stubLister{err: errors.New("db down")}, stubScorer{})
	_, err = svc.Alerts(context.Background())
	assert.Error(t, err)
}
