package narrative

import (
	"fmt"
	"strings"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

var languageNames = map[models.Locale]string{
	models.LocaleFrench:  "French",
	models.LocaleEnglish: "English",
	models.LocaleArabic:  "Arabic",
}

var levelNames = map[models.Locale]map[models.RiskLevel]string{
	models.LocaleFrench:  {models.RiskHigh: "Élevé", models.RiskMedium: "Moyen", models.RiskLow: "Faible"},
	models.LocaleEnglish: {models.RiskHigh: "High", models.RiskMedium: "Medium", models.RiskLow: "Low"},
	models.LocaleArabic:  {models.RiskHigh: "مرتفع", models.RiskMedium: "متوسط", models.RiskLow: "منخفض"},
}

func localeOrDefault(l models.Locale) models.Locale {
	if _, ok := languageNames[l]; ok {
		return l
	}
	return models.LocaleFrench
}

func vital(p *models.PatientSnapshot, pick func(models.Measurement) float64) string {
	if m, ok := p.LatestMeasurement(); ok {
		return fmt.Sprintf("%g", pick(m))
	}
	return "N/A"
}

func predictionPrompt(p *models.PatientSnapshot, score int, level models.RiskLevel, locale models.Locale) string {
	locale = localeOrDefault(locale)
	t := p.Telemetry

	var b strings.Builder
	b.WriteString("As an expert medical AI, analyze the data for a COPD patient.\n")
	b.WriteString("Patient data:\n")
	fmt.Fprintf(&b, "- Age: %d\n", p.Age)
	fmt.Fprintf(&b, "- Condition: %s\n", p.Condition)
	fmt.Fprintf(&b, "- Latest vitals: SpO2=%s, HR=%s\n",
		vital(p, func(m models.Measurement) float64 { return m.SpO2 }),
		vital(p, func(m models.Measurement) float64 { return m.HeartRate }))
	fmt.Fprintf(&b, "- Recent smartphone data: Steps=%d, Sleep=%gh, Coughs/hr=%g\n",
		t.Activity.Steps, t.Sleep.TotalSleepHours, t.Cough.CoughFrequencyPerHour)
	fmt.Fprintf(&b, "Risk Score: %d (Level: %s).\n", score, levelNames[locale][level])
	b.WriteString("First, provide a concise summary (2-3 sentences) explaining the patient's overall situation. ")
	b.WriteString("Then, identify the 3 most important factors contributing to the score. ")
	b.WriteString("Finally, provide 3 clear, actionable recommendations for a doctor. ")
	fmt.Fprintf(&b, "The response must be in %s.", languageNames[locale])
	return b.String()
}

func weatherPrompt(p *models.PatientSnapshot, w models.WeatherData, locale models.Locale) string {
	locale = localeOrDefault(locale)
	return fmt.Sprintf(
		"As an AI medical expert, analyze the impact of the weather on a COPD patient. Patient: %s, Weather: %g°C, %g%% humidity, AQI: %g. "+
			"Write a concise summary (max 40 words, in %s) of the potential impact and rate it Low, Medium or High.",
		p.Condition, w.TemperatureC, w.HumidityPercent, w.AirQualityIndex, languageNames[locale],
	)
}
