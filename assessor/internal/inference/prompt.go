package inference

import (
	"encoding/json"
	"fmt"

	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

// Prompt is the batch context sent to the service.
type Prompt struct {
	BatchID       string
	Produce       string
	Environment   types.EnvironmentClass
	DaysStored    int
	ShelfLifeDays float64
	Temperature   float64
	Humidity      float64

	// SafeRange is the authoritative band when one is catalogued; nil asks the
	// service to infer a band itself.
	SafeRange *types.SafeRange
}

// Provenance reports where the band used for the assessment comes from.
func (p Prompt) Provenance() types.Provenance {
	if p.SafeRange != nil {
		return types.ProvenancePredefined
	}
	return types.ProvenanceInferred
}

const baseInstruction = "You are an expert agricultural storage analyst. Analyze the provided batch and " +
	"sensor data and evaluate the risk of spoilage based on produce type, time stored, temperature " +
	"and humidity. Output strictly to the requested schema."

const predefinedInstruction = " The payload includes safeRange, the authoritative acceptable band for this " +
	"produce and storage environment. Judge the readings against that band and do not substitute your own."

const inferInstruction = " No acceptable band is known for this produce and storage environment. Infer an " +
	"appropriate temperature and humidity band from domain knowledge and judge the readings against it."

func (p Prompt) instructions() string {
	if p.SafeRange != nil {
		return baseInstruction + predefinedInstruction
	}
	return baseInstruction + inferInstruction
}

type bandPayload struct {
	TempMin     float64 `json:"tempMin"`
	TempMax     float64 `json:"tempMax"`
	HumidityMin float64 `json:"humidityMin"`
	HumidityMax float64 `json:"humidityMax"`
}

type promptPayload struct {
	Produce     string       `json:"produce"`
	Environment string       `json:"environment"`
	DaysStored  int          `json:"daysStored"`
	ShelfLife   float64      `json:"shelfLife"`
	Temperature float64      `json:"temperature"`
	Humidity    float64      `json:"humidity"`
	SafeRange   *bandPayload `json:"safeRange,omitempty"`
}

func (p Prompt) payload() (string, error) {
	body := promptPayload{
		Produce:     p.Produce,
		Environment: string(p.Environment),
		DaysStored:  p.DaysStored,
		ShelfLife:   p.ShelfLifeDays,
		Temperature: p.Temperature,
		Humidity:    p.Humidity,
	}
	if p.SafeRange != nil {
		body.SafeRange = &bandPayload{
			TempMin:     p.SafeRange.Temp.Min,
			TempMax:     p.SafeRange.Temp.Max,
			HumidityMin: p.SafeRange.Humidity.Min,
			HumidityMax: p.SafeRange.Humidity.Max,
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode prompt: %w", err)
	}
	return string(b), nil
}

const schemaName = "spoilage_risk"

// riskSchema is the strict output format. Every property is required.
func riskSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"riskScore": map[string]any{
				"type":        "number",
				"description": "Spoilage risk from 0 to 100.",
			},
			"riskLevel": map[string]any{
				"type":        "string",
				"enum":        []string{"Low", "Medium", "High", "Critical"},
				"description": "Severity of the current storage conditions.",
			},
			"reason": map[string]any{
				"type":        "string",
				"description": "Concise explanation of the score and level.",
			},
			"recommendedAction": map[string]any{
				"type":        "string",
				"description": "Actionable advice for the warehouse manager.",
			},
			"timeToCriticalHours": map[string]any{
				"type":        "number",
				"description": "Estimated hours until the produce becomes critical if conditions persist.",
			},
		},
		"required": []string{"riskScore", "riskLevel", "reason", "recommendedAction", "timeToCriticalHours"},
	}
}
