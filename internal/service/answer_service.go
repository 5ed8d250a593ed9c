package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"nutrichat/internal/domain"
	"nutrichat/internal/llm"
)

// answerTemperature allows natural phrasing while staying grounded.
const answerTemperature = 0.4

// AnswerService builds a grounded prompt from retrieved chunks plus history,
// invokes the model with a JSON-schema constraint and validates the result.
// Malformed output gets exactly one repair pass; a second failure surfaces
// domain.ErrGenerationFailed so a broken model cannot burn unbounded cost.
type AnswerService struct {
	client llm.Client
	logger *zap.Logger
}

func NewAnswerService(client llm.Client, logger *zap.Logger) *AnswerService {
	return &AnswerService{client: client, logger: logger}
}

var answerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":      map[string]any{"type": "string"},
		"paragraphs": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"key_points": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"sources":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required":             []string{"title", "paragraphs", "key_points"},
	"additionalProperties": false,
}

// Generate answers prompt grounded in docs, with history as prior turns and
// responseTokens as the output budget.
func (s *AnswerService) Generate(ctx context.Context, prompt string, docs []domain.DocumentChunk, history []domain.Message, responseTokens int) (domain.StructuredAnswer, error) {
	docText := joinDocuments(docs)
	system := buildAnswerSystemPrompt(docText, responseTokens)

	turns := make([]llm.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, llm.Turn{Role: string(m.Role), Content: m.Content})
	}

	raw, err := s.client.Complete(ctx, llm.CompletionRequest{
		System:      system,
		History:     turns,
		User:        prompt,
		MaxTokens:   responseTokens,
		Temperature: answerTemperature,
		SchemaName:  "nutrition_answer",
		Schema:      answerSchema,
	})
	if err != nil {
		return domain.StructuredAnswer{}, fmt.Errorf("llm generate: %w", err)
	}

	answer, parseErr := parseAnswer(raw)
	if parseErr == nil {
		return answer, nil
	}

	s.logger.Warn("malformed answer, running repair pass", zap.Error(parseErr))
	repaired, err := s.client.Complete(ctx, llm.CompletionRequest{
		System:      repairSystemPrompt,
		User:        buildRepairPrompt(raw, prompt, docText),
		MaxTokens:   responseTokens,
		Temperature: answerTemperature,
		SchemaName:  "nutrition_answer",
		Schema:      answerSchema,
	})
	if err != nil {
		return domain.StructuredAnswer{}, fmt.Errorf("llm repair: %w", err)
	}

	answer, parseErr = parseAnswer(repaired)
	if parseErr != nil {
		return domain.StructuredAnswer{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, parseErr)
	}
	return answer, nil
}

// parseAnswer validates the brace envelope, then deserializes and checks the
// fields the schema requires.
func parseAnswer(raw string) (domain.StructuredAnswer, error) {
	cleaned := cleanModelJSON(raw)
	if !strings.HasPrefix(cleaned, "{") || !strings.HasSuffix(cleaned, "}") {
		if obj := extractFirstJSONObject(cleaned); obj != "" {
			cleaned = obj
		} else {
			return domain.StructuredAnswer{}, fmt.Errorf("response is not a JSON object")
		}
	}

	var answer domain.StructuredAnswer
	if err := json.Unmarshal([]byte(cleaned), &answer); err != nil {
		return domain.StructuredAnswer{}, fmt.Errorf("deserialize answer: %w", err)
	}
	if strings.TrimSpace(answer.Title) == "" {
		return domain.StructuredAnswer{}, fmt.Errorf("answer missing title")
	}
	if len(answer.Paragraphs) == 0 {
		return domain.StructuredAnswer{}, fmt.Errorf("answer missing paragraphs")
	}
	return answer, nil
}

const repairSystemPrompt = `You are a strict JSON repair assistant. You receive a malformed model response together with the original question and reference documents. Emit ONLY a corrected JSON object with the fields "title" (string), "paragraphs" (array of strings), "key_points" (array of strings) and optionally "sources" (array of strings). No prose, no markdown fences.`

func buildRepairPrompt(malformed, question, docText string) string {
	var sb strings.Builder
	sb.WriteString("Original question:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nReference documents:\n")
	sb.WriteString(docText)
	sb.WriteString("\n\nMalformed response to correct:\n")
	sb.WriteString(malformed)
	return sb.String()
}

// buildAnswerSystemPrompt embeds the retrieved documents and formatting rules
// scaled to the response budget: 200-token budgets get the minimal style,
// 500 the standard one, larger budgets the full style.
func buildAnswerSystemPrompt(docText string, responseTokens int) string {
	var sb strings.Builder
	sb.WriteString("You are a nutrition assistant. Answer ONLY from the reference documents below. ")
	sb.WriteString("If the documents do not cover the question, say so instead of guessing.\n\n")

	switch {
	case responseTokens <= 200:
		sb.WriteString("Formatting rules: be minimal. One short paragraph, at most two key points, no sources.\n")
	case responseTokens <= 500:
		sb.WriteString("Formatting rules: standard detail. Up to three paragraphs and four key points; cite document titles in sources when used.\n")
	default:
		sb.WriteString("Formatting rules: full detail. Thorough paragraphs, up to six key points, practical suggestions, and cite every document title you relied on in sources.\n")
	}

	sb.WriteString("Respond with a JSON object: {\"title\", \"paragraphs\", \"key_points\", \"sources\"}.\n\n")
	sb.WriteString("=== REFERENCE DOCUMENTS ===\n")
	sb.WriteString(docText)
	return sb.String()
}

func joinDocuments(docs []domain.DocumentChunk) string {
	var sb strings.Builder
	for i, d := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if strings.TrimSpace(d.Title) != "" {
			sb.WriteString(fmt.Sprintf("[%s]\n", d.Title))
		}
		sb.WriteString(strings.TrimSpace(d.Content))
	}
	return sb.String()
}
