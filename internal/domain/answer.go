package domain

import (
	"time"

	"github.com/google/uuid"
)

// StructuredAnswer is the schema-constrained output of the response generator.
type StructuredAnswer struct {
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
	KeyPoints  []string `json:"key_points"`
	Sources    []string `json:"sources,omitempty"`
}

// AssertedFood is a food item the user states is present in a photo. Asserted
// items are echoed into the analysis verbatim with maximum confidence.
type AssertedFood struct {
	Name          string  `json:"food_name"`
	QuantityGrams float64 `json:"quantity_in_grams"`
}

// DetectedFood is one food item in an image analysis, with per-nutrient
// {Min,Max} ranges. Each nutrient uses its own pair; ranges are never mixed
// across nutrients.
type DetectedFood struct {
	Name          string  `json:"name"`
	QuantityGrams float64 `json:"quantity_in_grams"`
	Confidence    float64 `json:"confidence"`
	CaloriesMin   float64 `json:"calories_min"`
	CaloriesMax   float64 `json:"calories_max"`
	ProteinMin    float64 `json:"protein_min"`
	ProteinMax    float64 `json:"protein_max"`
	CarbsMin      float64 `json:"carbs_min"`
	CarbsMax      float64 `json:"carbs_max"`
	FatMin        float64 `json:"fat_min"`
	FatMax        float64 `json:"fat_max"`
}

// AnalysisSession stores one food-photo analysis result.
type AnalysisSession struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Prompt    string         `json:"prompt,omitempty"`
	Notes     string         `json:"notes,omitempty"`
	Foods     []DetectedFood `json:"foods"`
	CreatedAt time.Time      `json:"created_at"`
}

// AnalysisCorrection is a user-adjusted revision of a session's food list.
type AnalysisCorrection struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"session_id"`
	Foods     []DetectedFood `json:"foods"`
	CreatedAt time.Time      `json:"created_at"`
}

// EstimationMode selects which end of the nutrient ranges a summary uses.
type EstimationMode string

const (
	EstimationMin EstimationMode = "min"
	EstimationAvg EstimationMode = "avg"
	EstimationMax EstimationMode = "max"
)

// AnalysisSummary totals a food list under one estimation mode.
type AnalysisSummary struct {
	Mode     EstimationMode `json:"mode"`
	Calories float64        `json:"calories"`
	Protein  float64        `json:"protein"`
	Carbs    float64        `json:"carbs"`
	Fat      float64        `json:"fat"`
}
