// Package narrative asks a generative model for the human readable part of a
// prediction: summary, contributing factors, recommendations and the weather
// impact note.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

const (
	predictionSystem = "You are an AI assistant for healthcare professionals, specializing in predictive analysis for chronic diseases like COPD."
	weatherSystem    = "You are an AI assistant specialized in environmental risk analysis for respiratory diseases."

	quotaMessage          = "API quota has been exceeded. Please check your plan and billing details."
	predictionFailMessage = "The AI prediction service failed to generate an analysis. Please try again."
	weatherFailMessage    = "The AI impact analysis could not be performed. Please try again later."
)

type Analyzer struct {
	gen Generator
}

func NewAnalyzer(gen Generator) *Analyzer {
	if gen == nil {
		gen = OfflineGenerator{}
	}
	return &Analyzer{gen: gen}
}

// NewFromConfig uses Gemini when an API key is configured and the offline
// generator otherwise. The returned close func releases the client.
func NewFromConfig(ctx context.Context, apiKey, model string) (*Analyzer, func() error, error) {
	if apiKey == "" {
		logger.Log.Warn("GEMINI_API_KEY not set, using offline narrative generator")
		return NewAnalyzer(OfflineGenerator{}), func() error { return nil }, nil
	}
	gen, err := NewGeminiGenerator(ctx, apiKey, model)
	if err != nil {
		return nil, nil, err
	}
	logger.Log.WithField("model", model).Info("Gemini narrative enrichment enabled")
	return NewAnalyzer(gen), gen.Close, nil
}

// Analyze returns the narrative for a scored snapshot. Errors are returned
// as-is; callers decide how to degrade.
func (a *Analyzer) Analyze(ctx context.Context, p *models.PatientSnapshot, score int, level models.RiskLevel, locale models.Locale) (models.NarrativeAnalysis, error) {
	raw, err := a.gen.Generate(ctx, predictionSystem, predictionPrompt(p, score, level, locale), predictionSchema)
	if err != nil {
		return models.NarrativeAnalysis{}, err
	}

	var out models.NarrativeAnalysis
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return models.NarrativeAnalysis{}, fmt.Errorf("failed to unmarshal AI response: %w", err)
	}
	if strings.TrimSpace(out.Summary) == "" {
		return models.NarrativeAnalysis{}, ErrEmptyResponse
	}

	for i := range out.ContributingFactors {
		out.ContributingFactors[i].Impact = normalizeImpact(out.ContributingFactors[i].Impact)
	}
	if out.ContributingFactors == nil {
		out.ContributingFactors = []models.FactorAnalysis{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	out.Error = ""
	return out, nil
}

// AnalyzeWeatherImpact never fails; problems come back as a Medium impact
// with Error set.
func (a *Analyzer) AnalyzeWeatherImpact(ctx context.Context, p *models.PatientSnapshot, w models.WeatherData, locale models.Locale) models.WeatherImpact {
	raw, err := a.gen.Generate(ctx, weatherSystem, weatherPrompt(p, w, locale), weatherImpactSchema)
	if err == nil {
		var out models.WeatherImpact
		if err = json.Unmarshal([]byte(stripFences(raw)), &out); err == nil && strings.TrimSpace(out.Summary) != "" {
			out.ImpactLevel = normalizeLevel(string(out.ImpactLevel))
			out.Error = ""
			return out
		}
		if err == nil {
			err = ErrEmptyResponse
		}
	}

	logger.ForPatient(p.ID).WithError(err).Warn("Weather impact analysis failed")
	msg := weatherFailMessage
	if IsQuotaError(err) {
		msg = quotaMessage
	}
	return models.WeatherImpact{
		ImpactLevel: models.RiskMedium,
		Summary:     weatherUnavailable[localeOrDefault(locale)],
		Error:       msg,
	}
}

// IsQuotaError reports whether the provider rejected the call for quota.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func normalizeImpact(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return "high"
	case "low":
		return "low"
	default:
		return "medium"
	}
}

func normalizeLevel(s string) models.RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return models.RiskHigh
	case "low":
		return models.RiskLow
	default:
		return models.RiskMedium
	}
}
