package prediction

import (
	"math"
	"time"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

const (
	activityPoints = 24
	heatmapRows    = 8
	heatmapCols    = 12
)

// SeriesGenerator produces the supporting charts attached to a prediction.
// No sensor backs them today; a real data source can replace the synthetic one.
type SeriesGenerator interface {
	Activity(now time.Time) []models.ActivityPoint
	Heatmap(level models.RiskLevel, locale models.Locale) []models.HeatmapDay
}

// Density per day, oldest first. High reads as worsening, Medium as a sharp
// decline and Low as stable.
var trendPatterns = map[models.RiskLevel][3]string{
	models.RiskHigh:   {"medium", "low", "low"},
	models.RiskMedium: {"high", "medium", "low"},
	models.RiskLow:    {"medium", "high", "high"},
}

// TrendPattern returns the three-day density pattern for a level, oldest first.
func TrendPattern(level models.RiskLevel) [3]string {
	if p, ok := trendPatterns[level]; ok {
		return p
	}
	return trendPatterns[models.RiskLow]
}

var dayLabels = map[models.Locale][3]string{
	models.LocaleEnglish: {"Day -2", "Day -1", "Today"},
	models.LocaleFrench:  {"Jour -2", "Jour -1", "Aujourd'hui"},
	models.LocaleArabic:  {"قبل يومين", "أمس", "اليوم"},
}

func DayLabels(locale models.Locale) [3]string {
	if l, ok := dayLabels[locale]; ok {
		return l
	}
	return dayLabels[models.LocaleEnglish]
}

type SyntheticSeries struct {
	rng RandomSource
}

func NewSyntheticSeries(rng RandomSource) *SyntheticSeries {
	return &SyntheticSeries{rng: rng}
}

// Activity returns hourly points for the last 24 hours ending at now, with
// daytime hours (08:00 to 20:00) markedly busier.
func (s *SyntheticSeries) Activity(now time.Time) []models.ActivityPoint {
	points := make([]models.ActivityPoint, 0, activityPoints)
	for i := activityPoints - 1; i >= 0; i-- {
		at := now.Add(-time.Duration(i) * time.Hour)
		hour := at.Hour()

		var steps, active float64
		if hour > 7 && hour < 21 {
			steps = s.rng.Float64() * 500
			active = s.rng.Float64() * 10
		} else {
			steps = s.rng.Float64() * 50
			active = s.rng.Float64() * 2
		}

		points = append(points, models.ActivityPoint{
			Time:          at.Format("15:04"),
			Steps:         int(math.Round(steps)),
			ActiveMinutes: int(math.Round(active)),
		})
	}
	return points
}

// Heatmap returns three days of positional density grids, oldest first.
func (s *SyntheticSeries) Heatmap(level models.RiskLevel, locale models.Locale) []models.HeatmapDay {
	pattern := TrendPattern(level)
	labels := DayLabels(locale)

	days := make([]models.HeatmapDay, 0, len(pattern))
	for i, density := range pattern {
		days = append(days, models.HeatmapDay{
			DayLabel: labels[i],
			Level:    density,
			Data:     s.grid(density),
		})
	}
	return days
}

func (s *SyntheticSeries) grid(density string) [][]float64 {
	data := make([][]float64, heatmapRows)
	for r := range data {
		data[r] = make([]float64, heatmapCols)
	}

	var n int
	switch density {
	case "high":
		n = 15 + s.rng.Intn(10)
	case "medium":
		n = 8 + s.rng.Intn(7)
	default:
		n = 3 + s.rng.Intn(5)
	}

	for i := 0; i < n; i++ {
		r := s.rng.Intn(heatmapRows)
		c := s.rng.Intn(heatmapCols)
		data[r][c] = s.rng.Float64()
	}
	return data
}
