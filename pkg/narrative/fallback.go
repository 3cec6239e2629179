package narrative

import (
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

type degradedText struct {
	summary        string
	factor         string
	recommendation string
}

var degraded = map[models.Locale]degradedText{
	models.LocaleFrench: {
		summary:        "L'analyse IA n'a pas pu être complétée.",
		factor:         "Erreur d'analyse IA",
		recommendation: "Vérifiez manuellement les signes vitaux et les données du smartphone.",
	},
	models.LocaleEnglish: {
		summary:        "The AI analysis could not be completed.",
		factor:         "AI Analysis Error",
		recommendation: "Manually check vitals and smartphone data.",
	},
	models.LocaleArabic: {
		summary:        "لم يتمكن تحليل الذكاء الاصطناعي من الاكتمال.",
		factor:         "خطأ في تحليل الذكاء الاصطناعي",
		recommendation: "تحقق يدويًا من العلامات الحيوية وبيانات الهاتف الذكي.",
	},
}

var weatherUnavailable = map[models.Locale]string{
	models.LocaleFrench:  "Analyse IA indisponible.",
	models.LocaleEnglish: "AI analysis unavailable.",
	models.LocaleArabic:  "تحليل الذكاء الاصطناعي غير متوفر.",
}

// Fallback is the localized degraded narrative published when enrichment
// fails. Error always carries a user facing message.
func Fallback(err error, locale models.Locale) models.NarrativeAnalysis {
	msg := predictionFailMessage
	if IsQuotaError(err) {
		msg = quotaMessage
	}
	text := degraded[localeOrDefault(locale)]
	return models.NarrativeAnalysis{
		Summary: text.summary,
		ContributingFactors: []models.FactorAnalysis{{
			Name:        text.factor,
			Impact:      "high",
			Description: msg,
		}},
		Recommendations: []string{text.recommendation},
		Error:           msg,
	}
}
