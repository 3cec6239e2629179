package patient

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

type PatientRecord struct {
	ID           string              `gorm:"primaryKey;column:id"`
	Code         string              `gorm:"uniqueIndex;column:code"`
	Name         string              `gorm:"column:name"`
	Age          int                 `gorm:"column:age"`
	Condition    string              `gorm:"column:condition"`
	City         string              `gorm:"column:city"`
	Country      string              `gorm:"column:country"`
	Telemetry    datatypes.JSON      `gorm:"column:telemetry"`
	CreatedAt    time.Time           `gorm:"column:created_at"`
	UpdatedAt    time.Time           `gorm:"column:updated_at"`
	Measurements []MeasurementRecord `gorm:"foreignKey:PatientID"`
	Medications  []MedicationRecord  `gorm:"foreignKey:PatientID"`
	Doses        []DoseRecord        `gorm:"foreignKey:PatientID"`
}

func (PatientRecord) TableName() string { return "patients" }

type MeasurementRecord struct {
	ID        string    `gorm:"primaryKey;column:id"`
	PatientID string    `gorm:"index;column:patient_id"`
	Timestamp time.Time `gorm:"index;column:timestamp"`
	SpO2      float64   `gorm:"column:spo2"`
	HeartRate float64   `gorm:"column:heart_rate"`
}

func (MeasurementRecord) TableName() string { return "measurements" }

type MedicationRecord struct {
	ID        string           `gorm:"primaryKey;column:id"`
	PatientID string           `gorm:"index;column:patient_id"`
	Name      string           `gorm:"column:name"`
	Dosage    string           `gorm:"column:dosage"`
	Active    bool             `gorm:"column:active"`
	Schedules []ScheduleRecord `gorm:"foreignKey:MedicationID"`
}

func (MedicationRecord) TableName() string { return "medications" }

type ScheduleRecord struct {
	ID           string `gorm:"primaryKey;column:id"`
	MedicationID string `gorm:"index;column:medication_id"`
	TimeOfDay    string `gorm:"column:time_of_day"`
	AsNeeded     bool   `gorm:"column:as_needed"`
}

func (ScheduleRecord) TableName() string { return "medication_schedules" }

type DoseRecord struct {
	ID         string    `gorm:"primaryKey;column:id"`
	PatientID  string    `gorm:"index;column:patient_id"`
	ScheduleID string    `gorm:"column:schedule_id"`
	TakenAt    time.Time `gorm:"index;column:taken_at"`
}

func (DoseRecord) TableName() string { return "medication_doses" }

func toSnapshot(rec *PatientRecord) (*models.PatientSnapshot, error) {
	p := &models.PatientSnapshot{
		ID:        rec.ID,
		Code:      rec.Code,
		Name:      rec.Name,
		Age:       rec.Age,
		Condition: rec.Condition,
		City:      rec.City,
		Country:   rec.Country,
	}
	if len(rec.Telemetry) > 0 {
		if err := json.Unmarshal(rec.Telemetry, &p.Telemetry); err != nil {
			return nil, err
		}
	}

	p.Measurements = make([]models.Measurement, 0, len(rec.Measurements))
	for _, m := range rec.Measurements {
		p.Measurements = append(p.Measurements, models.Measurement{Timestamp: m.Timestamp, SpO2: m.SpO2, HeartRate: m.HeartRate})
	}
	sortMeasurements(p.Measurements)

	for _, med := range rec.Medications {
		out := models.Medication{ID: med.ID, Name: med.Name, Dosage: med.Dosage, Active: med.Active}
		for _, s := range med.Schedules {
			out.Schedules = append(out.Schedules, models.MedicationSchedule{ID: s.ID, TimeOfDay: s.TimeOfDay, AsNeeded: s.AsNeeded})
		}
		p.Medications = append(p.Medications, out)
	}

	for _, d := range rec.Doses {
		p.MedicationLog = append(p.MedicationLog, models.MedicationDoseEvent{ID: d.ID, ScheduleID: d.ScheduleID, TakenAt: d.TakenAt})
	}
	return p, nil
}

func fromSnapshot(p *models.PatientSnapshot) (*PatientRecord, error) {
	telemetry, err := json.Marshal(p.Telemetry)
	if err != nil {
		return nil, err
	}
	rec := &PatientRecord{
		ID:        p.ID,
		Code:      p.Code,
		Name:      p.Name,
		Age:       p.Age,
		Condition: p.Condition,
		City:      p.City,
		Country:   p.Country,
		Telemetry: datatypes.JSON(telemetry),
	}
	for _, m := range p.Measurements {
		rec.Measurements = append(rec.Measurements, MeasurementRecord{
			ID:        newID(),
			PatientID: p.ID,
			Timestamp: m.Timestamp.UTC(),
			SpO2:      m.SpO2,
			HeartRate: m.HeartRate,
		})
	}
	for _, med := range p.Medications {
		mr := MedicationRecord{ID: med.ID, PatientID: p.ID, Name: med.Name, Dosage: med.Dosage, Active: med.Active}
		for _, s := range med.Schedules {
			mr.Schedules = append(mr.Schedules, ScheduleRecord{ID: s.ID, MedicationID: med.ID, TimeOfDay: s.TimeOfDay, AsNeeded: s.AsNeeded})
		}
		rec.Medications = append(rec.Medications, mr)
	}
	for _, d := range p.MedicationLog {
		rec.Doses = append(rec.Doses, DoseRecord{ID: d.ID, PatientID: p.ID, ScheduleID: d.ScheduleID, TakenAt: d.TakenAt.UTC()})
	}
	return rec, nil
}
