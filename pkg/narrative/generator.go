package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var ErrEmptyResponse = errors.New("no content returned from AI")

// Generator sends one prompt and returns the raw JSON text of the answer.
type Generator interface {
	Generate(ctx context.Context, system, prompt string, schema *genai.Schema) (string, error)
}

type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client init failed: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, system, prompt string, schema *genai.Schema) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = schema

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("response part is not text, received %T", resp.Candidates[0].Content.Parts[0])
	}
	return b.String(), nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

// OfflineGenerator answers with canned analyses so the dashboard works
// without an API key.
type OfflineGenerator struct{}

func (OfflineGenerator) Generate(_ context.Context, _, _ string, schema *genai.Schema) (string, error) {
	var payload interface{}
	if schema != nil && schema.Properties["impactLevel"] != nil {
		payload = map[string]string{
			"impactLevel": "Medium",
			"summary":     "High humidity may increase irritation. Caution advised.",
		}
	} else {
		payload = map[string]interface{}{
			"summary": "Patient shows signs of decline due to reduced mobility (offline analysis).",
			"contributingFactors": []map[string]string{
				{"name": "Mobility Drop", "impact": "high", "description": "Steps are 45% below average."},
			},
			"recommendations": []string{"Schedule consultation."},
		}
	}
	out, err := json.Marshal(payload)
	return string(out), err
}

var predictionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary": {Type: genai.TypeString},
		"contributingFactors": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":        {Type: genai.TypeString},
					"impact":      {Type: genai.TypeString, Enum: []string{"high", "medium", "low"}},
					"description": {Type: genai.TypeString},
				},
				Required: []string{"name", "impact", "description"},
			},
		},
		"recommendations": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"summary", "contributingFactors", "recommendations"},
}

var weatherImpactSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"impactLevel": {Type: genai.TypeString, Enum: []string{"Low", "Medium", "High"}},
		"summary":     {Type: genai.TypeString},
	},
	Required: []string{"impactLevel", "summary"},
}

// stripFences removes a markdown code fence around a JSON answer.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
