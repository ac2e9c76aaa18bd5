package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// RiskLevel is the discrete severity tier derived from a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// Score thresholds that map a 0–100 risk score to a RiskLevel.
const (
	ThresholdCritical = 85
	ThresholdHigh     = 60
	ThresholdMedium   = 30
)

// LevelForScore maps score to its RiskLevel under the fixed thresholds.
// It is the only place the threshold table lives.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= ThresholdCritical:
		return RiskCritical
	case score >= ThresholdHigh:
		return RiskHigh
	case score >= ThresholdMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Valid reports whether l is one of the four known levels.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Provenance records where the safe band used for an assessment came from.
// It is carried for audit only and has no effect on scoring.
type Provenance string

const (
	ProvenancePredefined Provenance = "predefined"
	ProvenanceInferred   Provenance = "inferred"
	ProvenanceLocal      Provenance = "local"
)

// RiskResult is the structured outcome of one risk assessment.
type RiskResult struct {
	RiskScore           float64   `json:"riskScore" validate:"gte=0,lte=100"`
	RiskLevel           RiskLevel `json:"riskLevel" validate:"required,oneof=Low Medium High Critical"`
	Reason              string    `json:"reason" validate:"required"`
	RecommendedAction   string    `json:"recommendedAction" validate:"required"`
	TimeToCriticalHours float64   `json:"timeToCriticalHours" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks r against the result contract.
func (r RiskResult) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("risk result: %w", err)
	}
	return nil
}

// Validator returns the shared validator instance so other packages validate
// against the same tag set.
func Validator() *validator.Validate { return validate }
