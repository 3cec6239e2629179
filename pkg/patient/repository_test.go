package patient

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

func setupMockDB(t *testing.T) (*GormRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db, PreferSimpleProtocol: true}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return NewGormRepository(gdb), mock
}

func TestGormGetSnapshotNotFound(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "patients"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name"}))

	_, err := repo.GetSnapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormGetSnapshotAssemblesAggregate(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.MatchExpectationsInOrder(false)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "patients"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "age", "condition", "city", "country", "telemetry", "created_at", "updated_at"}).
			AddRow("p-1", "ABC123", "Jean Dupont", 68, "COPD", "Lyon", "FR", []byte(`{"activity":{"steps":1200},"sleep":{"sleepPosition":"sitting"}}`), now, now))
	mock.ExpectQuery(`SELECT \* FROM "measurements"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "timestamp", "spo2", "heart_rate"}).
			AddRow("m-2", "p-1", now, 89.0, 104.0).
			AddRow("m-1", "p-1", now.Add(-time.Hour), 93.0, 90.0))
	mock.ExpectQuery(`SELECT \* FROM "medications"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "name", "dosage", "active"}).
			AddRow("med-1", "p-1", "Tiotropium", "18mcg", true))
	mock.ExpectQuery(`SELECT \* FROM "medication_schedules"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "medication_id", "time_of_day", "as_needed"}).
			AddRow("sch-1", "med-1", "08:00", false))
	mock.ExpectQuery(`SELECT \* FROM "medication_doses"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "schedule_id", "taken_at"}).
			AddRow("d-1", "p-1", "sch-1", now.Add(-4*time.Hour)))

	p, err := repo.GetSnapshot(context.Background(), "p-1")
	require.NoError(t, err)

	assert.Equal(t, "Jean Dupont", p.Name)
	assert.Equal(t, 1200, p.Telemetry.Activity.Steps)
	assert.Equal(t, models.SleepSitting, p.Telemetry.Sleep.SleepPosition)
	require.Len(t, p.Measurements, 2)
	latest, _ := p.LatestMeasurement()
	assert.Equal(t, 89.0, latest.SpO2)
	require.Len(t, p.Medications, 1)
	require.Len(t, p.Medications[0].Schedules, 1)
	assert.Equal(t, "08:00", p.Medications[0].Schedules[0].TimeOfDay)
	require.Len(t, p.MedicationLog, 1)
	assert.Equal(t, "sch-1", p.MedicationLog[0].ScheduleID)
}

func TestGormAddMeasurement(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "patients"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "measurements"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.AddMeasurement(context.Background(), "p-1", models.Measurement{
		Timestamp: time.Now(),
		SpO2:      94,
		HeartRate: 82,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormAddMeasurementUnknownPatient(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "patients"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	err := repo.AddMeasurement(context.Background(), "ghost", models.Measurement{Timestamp: time.Now(), SpO2: 94, HeartRate: 82})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLogDose(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "patients"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "medication_doses"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.LogDose(context.Background(), "p-1", models.MedicationDoseEvent{ScheduleID: "sch-1", TakenAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
