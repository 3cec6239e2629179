package patient

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

var (
	errOutOfRange   = errors.New("value out of range")
	errMissingField = errors.New("missing required field")
)

// Accepted sensor ranges; readings outside are treated as device errors.
const (
	minSpO2      = 50
	maxSpO2      = 100
	minHeartRate = 20
	maxHeartRate = 250
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// ValidateMeasurement rejects implausible readings and readings from the future.
func ValidateMeasurement(m models.Measurement, now time.Time) error {
	if m.Timestamp.IsZero() {
		return ValidationError{reason: fmt.Errorf("timestamp required: %w", errMissingField)}
	}
	if m.Timestamp.After(now.Add(5 * time.Minute)) {
		return ValidationError{reason: fmt.Errorf("timestamp %s is in the future: %w", m.Timestamp.Format(time.RFC3339), errOutOfRange)}
	}
	if m.SpO2 < minSpO2 || m.SpO2 > maxSpO2 {
		return ValidationError{reason: fmt.Errorf("spo2 %.1f outside %d..%d: %w", m.SpO2, minSpO2, maxSpO2, errOutOfRange)}
	}
	if m.HeartRate < minHeartRate || m.HeartRate > maxHeartRate {
		return ValidationError{reason: fmt.Errorf("heart rate %.0f outside %d..%d: %w", m.HeartRate, minHeartRate, maxHeartRate, errOutOfRange)}
	}
	return nil
}

func ValidateNewPatient(in models.NewPatient) error {
	if strings.TrimSpace(in.Name) == "" {
		return ValidationError{reason: fmt.Errorf("name required: %w", errMissingField)}
	}
	if in.Age <= 0 || in.Age > 120 {
		return ValidationError{reason: fmt.Errorf("age %d: %w", in.Age, errOutOfRange)}
	}
	return nil
}

func ValidateDose(p *models.PatientSnapshot, dose models.MedicationDoseEvent, now time.Time) error {
	if dose.ScheduleID == "" {
		return ValidationError{reason: fmt.Errorf("scheduleId required: %w", errMissingField)}
	}
	if dose.TakenAt.After(now.Add(5 * time.Minute)) {
		return ValidationError{reason: fmt.Errorf("takenAt is in the future: %w", errOutOfRange)}
	}
	for _, med := range p.Medications {
		for _, s := range med.Schedules {
			if s.ID == dose.ScheduleID {
				return nil
			}
		}
	}
	return ValidationError{reason: fmt.Errorf("schedule %s does not belong to patient %s", dose.ScheduleID, p.ID)}
}
