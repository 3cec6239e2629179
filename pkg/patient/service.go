package patient

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

const (
	pairingAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	pairingCodeLength = 6
	pairingAttempts   = 5
)

type Scorer interface {
	Score(p *models.PatientSnapshot) models.RiskAssessment
}

type Service struct {
	repo   Repository
	scorer Scorer
	now    func() time.Time
}

func NewService(repo Repository, scorer Scorer) *Service {
	return &Service{repo: repo, scorer: scorer, now: time.Now}
}

func (s *Service) Repository() Repository {
	return s.repo
}

func (s *Service) Get(ctx context.Context, id string) (*models.PatientSnapshot, error) {
	return s.repo.GetSnapshot(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*models.PatientSnapshot, error) {
	return s.repo.GetByCode(ctx, code)
}

func (s *Service) List(ctx context.Context) ([]*models.PatientSnapshot, error) {
	return s.repo.List(ctx)
}

// Create registers a patient with neutral telemetry and a fresh pairing code
// for the companion phone app.
func (s *Service) Create(ctx context.Context, in models.NewPatient) (*models.PatientSnapshot, error) {
	if err := ValidateNewPatient(in); err != nil {
		return nil, err
	}

	code, err := s.uniquePairingCode(ctx)
	if err != nil {
		return nil, err
	}

	condition := strings.TrimSpace(in.Condition)
	if condition == "" {
		condition = "COPD"
	}

	p := &models.PatientSnapshot{
		ID:           newID(),
		Code:         code,
		Name:         strings.TrimSpace(in.Name),
		Age:          in.Age,
		Condition:    condition,
		City:         strings.TrimSpace(in.City),
		Country:      strings.TrimSpace(in.Country),
		Measurements: []models.Measurement{},
		Telemetry:    DefaultTelemetry(),
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save patient: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"patient_id": p.ID, "code": p.Code}).Info("Patient registered")
	return p, nil
}

func (s *Service) RecordMeasurement(ctx context.Context, patientID string, m models.Measurement) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now().UTC()
	}
	if err := ValidateMeasurement(m, s.now()); err != nil {
		return err
	}
	return s.repo.AddMeasurement(ctx, patientID, m)
}

func (s *Service) LogDose(ctx context.Context, patientID string, dose models.MedicationDoseEvent) (models.MedicationDoseEvent, error) {
	p, err := s.repo.GetSnapshot(ctx, patientID)
	if err != nil {
		return models.MedicationDoseEvent{}, err
	}
	if dose.TakenAt.IsZero() {
		dose.TakenAt = s.now().UTC()
	}
	if err := ValidateDose(p, dose, s.now()); err != nil {
		return models.MedicationDoseEvent{}, err
	}
	if dose.ID == "" {
		dose.ID = newID()
	}
	if err := s.repo.LogDose(ctx, patientID, dose); err != nil {
		return models.MedicationDoseEvent{}, err
	}
	return dose, nil
}

// Assess returns the deterministic risk assessment with its tier breakdown.
func (s *Service) Assess(ctx context.Context, patientID string) (models.RiskAssessment, error) {
	p, err := s.repo.GetSnapshot(ctx, patientID)
	if err != nil {
		return models.RiskAssessment{}, err
	}
	return s.scorer.Score(p), nil
}

func (s *Service) uniquePairingCode(ctx context.Context) (string, error) {
	for i := 0; i < pairingAttempts; i++ {
		code, err := NewPairingCode()
		if err != nil {
			return "", err
		}
		_, err = s.repo.GetByCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free pairing code after %d attempts", pairingAttempts)
}

func NewPairingCode() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(pairingAlphabet)))
	for i := 0; i < pairingCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(pairingAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// DefaultTelemetry is the baseline before the phone app reports anything.
func DefaultTelemetry() models.Telemetry {
	return models.Telemetry{
		Activity: models.ActivityData{Steps: 4000, SedentaryMinutes: 600, ActiveMinutes: 30, DistanceKm: 2.5, FloorsClimbed: 2, MovementSpeedKmh: 3.5},
		Sleep: models.SleepData{
			TotalSleepHours:  7,
			SleepEfficiency:  85,
			AwakeMinutes:     30,
			DeepSleepMinutes: 90,
			RemSleepMinutes:  80,
			NightMovements:   10,
			SleepPosition:    models.SleepLateral,
		},
		Cough: models.CoughData{CoughFrequencyPerHour: 3, NightCoughEpisodes: 1, CoughPattern: "dry", CoughIntensityDb: 55, RespiratoryRate: 16},
		Environment: models.EnvironmentData{
			AirQualityIndex: 40,
			HomeTimePercent: 70,
			TravelRadiusKm:  5,
			Weather:         models.WeatherReading{TemperatureC: 18, HumidityPercent: 55},
		},
		Reported: models.ReportedData{
			Symptoms:                   models.Symptoms{Breathlessness: 3, Fatigue: 3, Cough: 2},
			MedicationAdherencePercent: 100,
			QualityOfLifeCAT:           12,
		},
	}
}
