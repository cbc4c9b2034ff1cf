package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
)

const analysisSchemaName = "feedback_analysis"

const analysisSystemPrompt = `You are an assistant that outputs STRICT JSON only.
Return JSON matching the provided schema exactly.
Do not include markdown, comments, or extra keys.`

const analysisUserPromptFormat = `Analyze this customer feedback and output JSON with:
- sentiment (label + confidence 0..1)
- urgency score 0..100 with reason
- 2-4 themes with evidence_quote
- 1-2 sentence summary
- next_action: one actionable step for product/support/engineering

Feedback:
SOURCE: %s
TITLE: %s
BODY: %s`

// analysisSchema is the JSON schema sent as the structured response format. Strict mode requires
// every object to list all properties as required and to forbid additional properties.
func analysisSchema() map[string]any {
	str := map[string]any{"type": "string"}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sentiment": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"label":      map[string]any{"type": "string", "enum": []string{"positive", "neutral", "negative"}},
					"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				},
				"required":             []string{"label", "confidence"},
				"additionalProperties": false,
			},
			"urgency": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"score":  map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
					"reason": str,
				},
				"required":             []string{"score", "reason"},
				"additionalProperties": false,
			},
			"themes": map[string]any{
				"type":     "array",
				"minItems": 1,
				"maxItems": 4,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"theme":          str,
						"impact_area":    str,
						"evidence_quote": str,
					},
					"required":             []string{"theme", "impact_area", "evidence_quote"},
					"additionalProperties": false,
				},
			},
			"summary":     str,
			"next_action": str,
		},
		"required":             []string{"sentiment", "urgency", "themes", "summary", "next_action"},
		"additionalProperties": false,
	}
}

// buildAnalysisRequest embeds the item's fields verbatim in the user prompt.
func buildAnalysisRequest(f *models.Feedback) models.InferenceRequest {
	return models.InferenceRequest{
		SystemPrompt: analysisSystemPrompt,
		UserPrompt:   fmt.Sprintf(analysisUserPromptFormat, f.Source, f.Title, f.Body),
		SchemaName:   analysisSchemaName,
		Schema:       analysisSchema(),
	}
}

// Wire shapes use pointers so "required" means present in the payload; an empty string is accepted
// when the key exists, a missing key is not.
type sentimentWire struct {
	Label      *string  `json:"label" validate:"required,oneof=positive neutral negative"`
	Confidence *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
}

// Score is decoded as a number so whole values written as 50.0 are accepted.
type urgencyWire struct {
	Score  *float64 `json:"score" validate:"required,whole,gte=0,lte=100"`
	Reason *string  `json:"reason" validate:"required"`
}

type themeWire struct {
	Theme         *string `json:"theme" validate:"required"`
	ImpactArea    *string `json:"impact_area" validate:"required"`
	EvidenceQuote *string `json:"evidence_quote" validate:"required"`
}

type analysisWire struct {
	Sentiment  *sentimentWire `json:"sentiment" validate:"required"`
	Urgency    *urgencyWire   `json:"urgency" validate:"required"`
	Themes     []themeWire    `json:"themes" validate:"required,min=1,max=4,dive"`
	Summary    *string        `json:"summary" validate:"required"`
	NextAction *string        `json:"next_action" validate:"required"`
}

var outputValidator = newOutputValidator()

func newOutputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.RegisterValidation("whole", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()

		return math.Trunc(f) == f
	}); err != nil {
		slog.Error("Failed to register whole validator", "error", err)
	}

	return v
}

// parseAnalysisOutput normalizes the raw engine output and validates it.
// Accepted shapes: a JSON object, or a JSON string holding an object (optionally inside a
// markdown code fence). Every failure is a *huberrors.ParseError.
func parseAnalysisOutput(raw json.RawMessage) (*models.AIAnalysis, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 {
		return nil, huberrors.NewParseError("empty inference output", nil)
	}

	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return nil, huberrors.NewParseError("inference output is not valid JSON", err)
		}

		data = []byte(stripCodeFence(text))
	}

	var wire analysisWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, huberrors.NewParseError("inference output is not a valid analysis object", err)
	}

	if err := outputValidator.Struct(&wire); err != nil {
		return nil, huberrors.NewParseError("inference output failed schema validation", describeValidation(err))
	}

	return wire.toModel(), nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}

	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

// describeValidation flattens validator errors into one message listing each failing field.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}

	return errors.New(strings.Join(parts, "; "))
}

func (w *analysisWire) toModel() *models.AIAnalysis {
	themes := make([]models.Theme, len(w.Themes))
	for i, t := range w.Themes {
		themes[i] = models.Theme{
			Theme:         *t.Theme,
			ImpactArea:    *t.ImpactArea,
			EvidenceQuote: *t.EvidenceQuote,
		}
	}

	return &models.AIAnalysis{
		Sentiment: models.Sentiment{
			Label:      models.SentimentLabel(*w.Sentiment.Label),
			Confidence: *w.Sentiment.Confidence,
		},
		Urgency: models.Urgency{
			Score:  int(*w.Urgency.Score),
			Reason: *w.Urgency.Reason,
		},
		Themes:     themes,
		Summary:    *w.Summary,
		NextAction: *w.NextAction,
	}
}

// decodeThemes parses stored themes_json.
func decodeThemes(themesJSON string) ([]models.Theme, error) {
	var themes []models.Theme
	if err := json.Unmarshal([]byte(themesJSON), &themes); err != nil {
		return nil, fmt.Errorf("decode themes: %w", err)
	}

	return themes, nil
}
