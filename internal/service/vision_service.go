package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutrichat/internal/domain"
	"nutrichat/internal/llm"
	"nutrichat/internal/repository"
)

const visionTemperature = 0.2

// foodSchema constrains the vision model to the detected-food list shape.
var foodSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"foods": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":              map[string]any{"type": "string"},
					"quantity_in_grams": map[string]any{"type": "number"},
					"confidence":        map[string]any{"type": "number"},
					"calories_min":      map[string]any{"type": "number"},
					"calories_max":      map[string]any{"type": "number"},
					"protein_min":       map[string]any{"type": "number"},
					"protein_max":       map[string]any{"type": "number"},
					"carbs_min":         map[string]any{"type": "number"},
					"carbs_max":         map[string]any{"type": "number"},
					"fat_min":           map[string]any{"type": "number"},
					"fat_max":           map[string]any{"type": "number"},
				},
				"required": []string{
					"name", "quantity_in_grams", "confidence",
					"calories_min", "calories_max", "protein_min", "protein_max",
					"carbs_min", "carbs_max", "fat_min", "fat_max",
				},
				"additionalProperties": false,
			},
		},
		"notes": map[string]any{"type": "string"},
	},
	"required":             []string{"foods"},
	"additionalProperties": false,
}

const visionSystemPrompt = `You are a nutrition analyst. Identify every distinct food item in the photo.
For each item estimate the portion in grams and give min/max ranges for calories, protein, carbs and fat.
Respond with a single JSON object only.`

// VisionService analyzes food photos and keeps analysis sessions with their
// user corrections.
type VisionService struct {
	client   llm.Client
	sessions repository.AnalysisRepository
	logger   *zap.Logger
}

func NewVisionService(client llm.Client, sessions repository.AnalysisRepository, logger *zap.Logger) *VisionService {
	return &VisionService{client: client, sessions: sessions, logger: logger}
}

type visionResult struct {
	Foods []domain.DetectedFood `json:"foods"`
	Notes string                `json:"notes"`
}

// AnalyzeImage runs the vision model over one photo. Foods the user asserts
// are echoed into the result at confidence 1.0 and shadow model detections of
// the same item; the session is persisted so corrections can reference it.
func (s *VisionService) AnalyzeImage(ctx context.Context, userID uuid.UUID, imageURL, prompt string, asserted []domain.AssertedFood) (domain.AnalysisSession, error) {
	if strings.TrimSpace(imageURL) == "" {
		return domain.AnalysisSession{}, fmt.Errorf("%w: empty image", domain.ErrInvalidArgument)
	}

	userPrompt := strings.TrimSpace(prompt)
	if userPrompt == "" {
		userPrompt = "Analyze the food in this photo."
	}
	if len(asserted) > 0 {
		names := make([]string, 0, len(asserted))
		for _, a := range asserted {
			names = append(names, fmt.Sprintf("%s (%.0fg)", a.Name, a.QuantityGrams))
		}
		userPrompt += "\nThe photo definitely contains: " + strings.Join(names, ", ") + "."
	}

	req := llm.CompletionRequest{
		System:      visionSystemPrompt,
		User:        userPrompt,
		Temperature: visionTemperature,
		SchemaName:  "food_analysis",
		Schema:      foodSchema,
		Image:       &llm.ImageInput{ImageURL: imageURL},
	}

	raw, err := s.client.Complete(ctx, req)
	if err != nil {
		return domain.AnalysisSession{}, fmt.Errorf("vision completion: %w", err)
	}

	result, parseErr := parseVisionResult(raw)
	if parseErr != nil {
		s.logger.Warn("vision output malformed, retrying once", zap.Error(parseErr))
		repair := req
		repair.System = repairSystemPrompt
		repair.User = buildVisionRepairPrompt(raw, userPrompt)
		raw, err = s.client.Complete(ctx, repair)
		if err != nil {
			return domain.AnalysisSession{}, fmt.Errorf("vision completion: %w", err)
		}
		result, parseErr = parseVisionResult(raw)
		if parseErr != nil {
			return domain.AnalysisSession{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, parseErr)
		}
	}

	session := domain.AnalysisSession{
		ID:        uuid.New(),
		UserID:    userID,
		Prompt:    prompt,
		Notes:     result.Notes,
		Foods:     mergeAssertedFoods(result.Foods, asserted),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return domain.AnalysisSession{}, fmt.Errorf("save analysis session: %w", err)
	}

	s.logger.Info("image analyzed",
		zap.String("session_id", session.ID.String()),
		zap.Int("foods", len(session.Foods)),
	)
	return session, nil
}

// SaveCorrection stores a user-adjusted food list for an existing session.
func (s *VisionService) SaveCorrection(ctx context.Context, userID, sessionID uuid.UUID, foods []domain.DetectedFood) (domain.AnalysisCorrection, error) {
	if len(foods) == 0 {
		return domain.AnalysisCorrection{}, fmt.Errorf("%w: empty food list", domain.ErrInvalidArgument)
	}
	if _, err := s.sessions.GetSession(ctx, userID, sessionID); err != nil {
		return domain.AnalysisCorrection{}, err
	}
	corr := domain.AnalysisCorrection{
		ID:        uuid.New(),
		SessionID: sessionID,
		Foods:     foods,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.CreateCorrection(ctx, corr); err != nil {
		return domain.AnalysisCorrection{}, fmt.Errorf("save correction: %w", err)
	}
	return corr, nil
}

// Summarize totals a session's foods under one estimation mode. When a
// correction id is given its food list replaces the session's.
func (s *VisionService) Summarize(ctx context.Context, userID, sessionID, correctionID uuid.UUID, mode domain.EstimationMode) (domain.AnalysisSummary, error) {
	session, err := s.sessions.GetSession(ctx, userID, sessionID)
	if err != nil {
		return domain.AnalysisSummary{}, err
	}
	foods := session.Foods
	if correctionID != uuid.Nil {
		corr, err := s.sessions.GetCorrection(ctx, sessionID, correctionID)
		if err != nil {
			return domain.AnalysisSummary{}, err
		}
		foods = corr.Foods
	}
	return summarizeFoods(foods, mode)
}

// summarizeFoods picks one consistent end of each nutrient's own range. The
// avg mode is the midpoint per nutrient.
func summarizeFoods(foods []domain.DetectedFood, mode domain.EstimationMode) (domain.AnalysisSummary, error) {
	pick := func(min, max float64) float64 {
		switch mode {
		case domain.EstimationMin:
			return min
		case domain.EstimationMax:
			return max
		case domain.EstimationAvg:
			return (min + max) / 2
		}
		return 0
	}
	switch mode {
	case domain.EstimationMin, domain.EstimationAvg, domain.EstimationMax:
	default:
		return domain.AnalysisSummary{}, fmt.Errorf("%w: unknown estimation mode %q", domain.ErrInvalidArgument, mode)
	}

	sum := domain.AnalysisSummary{Mode: mode}
	for _, f := range foods {
		sum.Calories += pick(f.CaloriesMin, f.CaloriesMax)
		sum.Protein += pick(f.ProteinMin, f.ProteinMax)
		sum.Carbs += pick(f.CarbsMin, f.CarbsMax)
		sum.Fat += pick(f.FatMin, f.FatMax)
	}
	return sum, nil
}

// mergeAssertedFoods puts user-asserted items first at confidence 1.0 and
// drops model detections that name the same food. Matching is case-insensitive
// and tolerates qualified variants ("Sliced Ham" matches "Ham").
func mergeAssertedFoods(detected []domain.DetectedFood, asserted []domain.AssertedFood) []domain.DetectedFood {
	if len(asserted) == 0 {
		return detected
	}

	out := make([]domain.DetectedFood, 0, len(asserted)+len(detected))
	for _, a := range asserted {
		item := domain.DetectedFood{
			Name:          a.Name,
			QuantityGrams: a.QuantityGrams,
			Confidence:    1.0,
		}
		// Carry the model's nutrient estimate for the matching detection so an
		// asserted item is not a zero-calorie row.
		for _, d := range detected {
			if sameFood(a.Name, d.Name) {
				item.CaloriesMin, item.CaloriesMax = d.CaloriesMin, d.CaloriesMax
				item.ProteinMin, item.ProteinMax = d.ProteinMin, d.ProteinMax
				item.CarbsMin, item.CarbsMax = d.CarbsMin, d.CarbsMax
				item.FatMin, item.FatMax = d.FatMin, d.FatMax
				break
			}
		}
		out = append(out, item)
	}

	for _, d := range detected {
		dup := false
		for _, a := range asserted {
			if sameFood(a.Name, d.Name) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, d)
		}
	}
	return out
}

// sameFood reports whether two names refer to the same item: equal after
// normalization, or one name's words are a subset of the other's.
func sameFood(a, b string) bool {
	wa := foodWords(a)
	wb := foodWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}
	return wordsSubset(wa, wb) || wordsSubset(wb, wa)
}

func foodWords(name string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(name)) {
		w = strings.Trim(w, ".,;:()")
		w = strings.TrimSuffix(w, "s")
		if w != "" {
			words[w] = true
		}
	}
	return words
}

func wordsSubset(sub, super map[string]bool) bool {
	for w := range sub {
		if !super[w] {
			return false
		}
	}
	return true
}

func parseVisionResult(raw string) (visionResult, error) {
	cleaned := cleanModelJSON(raw)
	if !strings.HasPrefix(cleaned, "{") || !strings.HasSuffix(cleaned, "}") {
		extracted := extractFirstJSONObject(cleaned)
		if extracted == "" {
			return visionResult{}, fmt.Errorf("no JSON object in vision output")
		}
		cleaned = extracted
	}
	var result visionResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return visionResult{}, fmt.Errorf("decode vision output: %w", err)
	}
	if len(result.Foods) == 0 {
		return visionResult{}, fmt.Errorf("vision output lists no foods")
	}
	return result, nil
}

func buildVisionRepairPrompt(malformed, prompt string) string {
	var sb strings.Builder
	sb.WriteString("The previous response was not valid JSON for the food_analysis schema.\n")
	sb.WriteString("Original request:\n")
	sb.WriteString(prompt)
	sb.WriteString("\n\nMalformed response:\n")
	sb.WriteString(malformed)
	sb.WriteString("\n\nReturn only the corrected JSON object.")
	return sb.String()
}
