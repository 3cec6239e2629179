package risk

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

const adherenceWindowDays = 7

var clockPattern = regexp.MustCompile(`(\d{2}):(\d{2})`)

// IsAsNeeded reports whether a schedule is taken on demand and therefore never expected.
func IsAsNeeded(s models.MedicationSchedule) bool {
	if s.AsNeeded {
		return true
	}
	label := strings.ToLower(s.TimeOfDay)
	return strings.Contains(label, "as needed") || strings.Contains(label, "au besoin")
}

// scheduleClock extracts HH:MM from a schedule label, defaulting to 09:00.
func scheduleClock(label string) (int, int) {
	m := clockPattern.FindStringSubmatch(label)
	if m == nil {
		return 9, 0
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return hour, minute
}

// CalculateAdherence returns the percentage of expected doses taken over the
// trailing seven calendar days, today included. Doses scheduled after now are
// not expected yet. A patient with nothing expected is fully adherent.
func CalculateAdherence(meds []models.Medication, doses []models.MedicationDoseEvent, now time.Time) int {
	expected := 0
	for day := 0; day < adherenceWindowDays; day++ {
		for _, med := range meds {
			if !med.Active {
				continue
			}
			for _, schedule := range med.Schedules {
				if IsAsNeeded(schedule) {
					continue
				}
				hour, minute := scheduleClock(schedule.TimeOfDay)
				scheduled := time.Date(now.Year(), now.Month(), now.Day()-day, hour, minute, 0, 0, now.Location())
				if scheduled.Before(now) {
					expected++
				}
			}
		}
	}

	if expected == 0 {
		return 100
	}

	windowStart := time.Date(now.Year(), now.Month(), now.Day()-adherenceWindowDays, 0, 0, 0, 0, now.Location())
	taken := 0
	for _, dose := range doses {
		if !dose.TakenAt.Before(windowStart) && !dose.TakenAt.After(now) {
			taken++
		}
	}

	pct := int(math.Round(float64(taken) / float64(expected) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}
