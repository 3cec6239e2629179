package patient

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

// Roster is the YAML fixture format. Measurement and dose times may be given
// as offsets relative to load time so a seeded roster never goes stale.
type Roster struct {
	Patients []FixturePatient `yaml:"patients"`
}

type FixturePatient struct {
	models.PatientSnapshot `yaml:",inline"`
	RecentMeasurements     []FixtureMeasurement `yaml:"recentMeasurements"`
	RecentDoses            []FixtureDose        `yaml:"recentDoses"`
}

type FixtureMeasurement struct {
	Ago       time.Duration `yaml:"ago"`
	SpO2      float64       `yaml:"spo2"`
	HeartRate float64       `yaml:"heartRate"`
}

type FixtureDose struct {
	ScheduleID string        `yaml:"scheduleId"`
	Ago        time.Duration `yaml:"ago"`
}

func LoadRoster(path string, now time.Time) ([]*models.PatientSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRoster(data, now)
}

func ParseRoster(data []byte, now time.Time) ([]*models.PatientSnapshot, error) {
	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	out := make([]*models.PatientSnapshot, 0, len(roster.Patients))
	seen := make(map[string]struct{}, len(roster.Patients))
	for i := range roster.Patients {
		fp := roster.Patients[i]
		p := fp.PatientSnapshot.Clone()
		if p.ID == "" {
			return nil, fmt.Errorf("roster entry %d: id required", i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("roster entry %d: duplicate id %s", i, p.ID)
		}
		seen[p.ID] = struct{}{}

		for _, m := range fp.RecentMeasurements {
			p.Measurements = append(p.Measurements, models.Measurement{
				Timestamp: now.Add(-m.Ago),
				SpO2:      m.SpO2,
				HeartRate: m.HeartRate,
			})
		}
		for _, d := range fp.RecentDoses {
			p.MedicationLog = append(p.MedicationLog, models.MedicationDoseEvent{
				ID:         newID(),
				ScheduleID: d.ScheduleID,
				TakenAt:    now.Add(-d.Ago),
			})
		}
		sortMeasurements(p.Measurements)
		out = append(out, p)
	}
	return out, nil
}
