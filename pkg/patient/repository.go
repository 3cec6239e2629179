package patient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

var ErrNotFound = errors.New("patient not found")

// Repository is the patient store contract. Snapshots returned are owned by
// the caller.
type Repository interface {
	GetSnapshot(ctx context.Context, patientID string) (*models.PatientSnapshot, error)
	GetByCode(ctx context.Context, code string) (*models.PatientSnapshot, error)
	List(ctx context.Context) ([]*models.PatientSnapshot, error)
	Save(ctx context.Context, p *models.PatientSnapshot) error
	AddMeasurement(ctx context.Context, patientID string, m models.Measurement) error
	LogDose(ctx context.Context, patientID string, dose models.MedicationDoseEvent) error
}

func newID() string {
	return uuid.New().String()
}

func sortMeasurements(ms []models.Measurement) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Timestamp.Before(ms[j].Timestamp) })
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&PatientRecord{}, &MeasurementRecord{}, &MedicationRecord{}, &ScheduleRecord{}, &DoseRecord{})
}

func (r *GormRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Measurements", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp asc") }).
		Preload("Medications.Schedules").
		Preload("Doses")
}

func (r *GormRepository) GetSnapshot(ctx context.Context, patientID string) (*models.PatientSnapshot, error) {
	var rec PatientRecord
	result := r.preloaded(ctx).First(&rec, "id = ?", patientID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return toSnapshot(&rec)
}

func (r *GormRepository) GetByCode(ctx context.Context, code string) (*models.PatientSnapshot, error) {
	var rec PatientRecord
	result := r.preloaded(ctx).First(&rec, "code = ?", strings.ToUpper(strings.TrimSpace(code)))
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return toSnapshot(&rec)
}

func (r *GormRepository) List(ctx context.Context) ([]*models.PatientSnapshot, error) {
	var recs []PatientRecord
	if err := r.preloaded(ctx).Order("name asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*models.PatientSnapshot, 0, len(recs))
	for i := range recs {
		p, err := toSnapshot(&recs[i])
		if err != nil {
			return nil, fmt.Errorf("decode patient %s: %w", recs[i].ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Save upserts the patient row and replaces its measurements, medications and
// dose log.
func (r *GormRepository) Save(ctx context.Context, p *models.PatientSnapshot) error {
	rec, err := fromSnapshot(p)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rec.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		measurements, medications, doses := rec.Measurements, rec.Medications, rec.Doses
		rec.Measurements, rec.Medications, rec.Doses = nil, nil, nil
		rec.CreatedAt = now

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "name", "age", "condition", "city", "country", "telemetry", "updated_at"}),
		}).Create(rec).Error; err != nil {
			return err
		}

		var medIDs []string
		if err := tx.Model(&MedicationRecord{}).Where("patient_id = ?", p.ID).Pluck("id", &medIDs).Error; err != nil {
			return err
		}
		if len(medIDs) > 0 {
			if err := tx.Where("medication_id IN ?", medIDs).Delete(&ScheduleRecord{}).Error; err != nil {
				return err
			}
		}
		for _, model := range []interface{}{&MeasurementRecord{}, &MedicationRecord{}, &DoseRecord{}} {
			if err := tx.Where("patient_id = ?", p.ID).Delete(model).Error; err != nil {
				return err
			}
		}

		if len(measurements) > 0 {
			if err := tx.Create(&measurements).Error; err != nil {
				return err
			}
		}
		if len(medications) > 0 {
			if err := tx.Create(&medications).Error; err != nil {
				return err
			}
		}
		if len(doses) > 0 {
			if err := tx.Create(&doses).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormRepository) exists(ctx context.Context, patientID string) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&PatientRecord{}).Where("id = ?", patientID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) AddMeasurement(ctx context.Context, patientID string, m models.Measurement) error {
	if err := r.exists(ctx, patientID); err != nil {
		return err
	}
	rec := &MeasurementRecord{
		ID:        newID(),
		PatientID: patientID,
		Timestamp: m.Timestamp.UTC(),
		SpO2:      m.SpO2,
		HeartRate: m.HeartRate,
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *GormRepository) LogDose(ctx context.Context, patientID string, dose models.MedicationDoseEvent) error {
	if err := r.exists(ctx, patientID); err != nil {
		return err
	}
	if dose.ID == "" {
		dose.ID = newID()
	}
	rec := &DoseRecord{
		ID:         dose.ID,
		PatientID:  patientID,
		ScheduleID: dose.ScheduleID,
		TakenAt:    dose.TakenAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(rec).Error
}
