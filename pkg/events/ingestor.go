package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
	"github.com/sentinel-health/copd-monitor/pkg/observability/metrics"
	"github.com/sentinel-health/copd-monitor/pkg/patient"
)

type MeasurementRecorder interface {
	RecordMeasurement(ctx context.Context, patientID string, m models.Measurement) error
}

type Refresher interface {
	ActivePatient() (string, bool)
	Refresh(ctx context.Context) error
}

type measurementPayload struct {
	PatientID string    `json:"patient_id"`
	SpO2      float64   `json:"spo2"`
	HeartRate float64   `json:"heart_rate"`
	Timestamp time.Time `json:"timestamp"`
}

type MeasurementIngestor struct {
	recorder  MeasurementRecorder
	refresher Refresher
}

func NewMeasurementIngestor(recorder MeasurementRecorder, refresher Refresher) *MeasurementIngestor {
	return &MeasurementIngestor{recorder: recorder, refresher: refresher}
}

// Handle stores one measurement event. Malformed, invalid or unknown-patient
// events are logged and acknowledged; storage failures are returned so the
// consumer redelivers.
func (i *MeasurementIngestor) Handle(ctx context.Context, event models.Event) error {
	if event.Type != MeasurementEvent {
		return nil
	}
	log := logger.WithFields(logrus.Fields{"event_id": event.ID, "source": event.Source})

	var payload measurementPayload
	raw, err := json.Marshal(event.Data)
	if err == nil {
		err = json.Unmarshal(raw, &payload)
	}
	if err != nil || payload.PatientID == "" {
		log.WithError(err).Warn("Skipping malformed measurement event")
		return nil
	}
	log = log.WithField("patient_id", payload.PatientID)

	m := models.Measurement{Timestamp: payload.Timestamp, SpO2: payload.SpO2, HeartRate: payload.HeartRate}
	if err := i.recorder.RecordMeasurement(ctx, payload.PatientID, m); err != nil {
		if patient.IsValidationError(err) || errors.Is(err, patient.ErrNotFound) {
			log.WithError(err).Warn("Rejected measurement event")
			return nil
		}
		return err
	}
	metrics.IncMeasurementsIngested()
	log.Debug("Measurement ingested")

	if active, ok := i.refresher.ActivePatient(); ok && active == payload.PatientID {
		if err := i.refresher.Refresh(ctx); err != nil {
			log.WithError(err).Warn("Refresh after measurement failed")
		}
	}
	return nil
}
