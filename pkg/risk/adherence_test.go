package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

func TestAdherenceFiveOfSeven(t *testing.T) {
	meds, doses := dailyRegimen(5)
	assert.Equal(t, 71, CalculateAdherence(meds, doses, fixedNow))
}

func TestAdherenceNoExpectedDoses(t *testing.T) {
	assert.Equal(t, 100, CalculateAdherence(nil, nil, fixedNow))

	meds := []models.Medication{
		{ID: "salbutamol", Active: true, Schedules: []models.MedicationSchedule{{ID: "a", TimeOfDay: "Au besoin"}}},
		{ID: "rescue", Active: true, Schedules: []models.MedicationSchedule{{ID: "b", TimeOfDay: "08:00", AsNeeded: true}}},
		{ID: "stopped", Active: false, Schedules: []models.MedicationSchedule{{ID: "c", TimeOfDay: "08:00"}}},
	}
	assert.Equal(t, 100, CalculateAdherence(meds, nil, fixedNow))
}

func TestAdherenceSkipsFutureDoses(t *testing.T) {
	meds := []models.Medication{{
		ID:     "med",
		Active: true,
		Schedules: []models.MedicationSchedule{
			{ID: "morning", TimeOfDay: "08:00"},
			{ID: "evening", TimeOfDay: "Evening 20:00"},
		},
	}}
	// Seven mornings plus six evenings; tonight's dose is still ahead.
	var doses []models.MedicationDoseEvent
	for i := 0; i < 13; i++ {
		doses = append(doses, models.MedicationDoseEvent{ScheduleID: "morning", TakenAt: fixedNow.Add(-time.Duration(i) * 10 * time.Hour)})
	}
	assert.Equal(t, 100, CalculateAdherence(meds, doses, fixedNow))
	assert.Equal(t, 54, CalculateAdherence(meds, doses[:7], fixedNow))
}

func TestAdherenceDefaultsUnlabelledScheduleToNine(t *testing.T) {
	meds := []models.Medication{{ID: "m", Active: true, Schedules: []models.MedicationSchedule{{ID: "s", TimeOfDay: "Morning"}}}}
	early := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	doses := []models.MedicationDoseEvent{{ScheduleID: "s", TakenAt: early.Add(-24 * time.Hour)}}
	// 6 expected doses at 08:30 since today's 09:00 has not happened.
	assert.Equal(t, 17, CalculateAdherence(meds, doses, early))
}

func TestAdherenceIgnoresLogsOutsideWindowAndCaps(t *testing.T) {
	meds, _ := dailyRegimen(0)
	doses := []models.MedicationDoseEvent{
		{TakenAt: time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)},
		{TakenAt: fixedNow.Add(time.Hour)},
	}
	assert.Equal(t, 0, CalculateAdherence(meds, doses, fixedNow))

	var many []models.MedicationDoseEvent
	for i := 0; i < 20; i++ {
		many = append(many, models.MedicationDoseEvent{TakenAt: fixedNow.Add(-time.Duration(i) * time.Hour)})
	}
	assert.Equal(t, 100, CalculateAdherence(meds, many, fixedNow))
}
