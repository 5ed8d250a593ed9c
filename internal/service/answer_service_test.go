package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"nutrichat/internal/domain"
	"nutrichat/internal/llm"
)

const goodAnswer = `{"title":"Protein needs","paragraphs":["Adults need about 0.8g per kg."],"key_points":["0.8g/kg baseline"]}`

func testDocs() []domain.DocumentChunk {
	return []domain.DocumentChunk{
		{Title: "Protein guide", Content: "Adults need roughly 0.8 grams of protein per kilogram of body weight."},
	}
}

func TestGenerate_Success(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{goodAnswer}}
	svc := NewAnswerService(mock, zap.NewNop())

	answer, err := svc.Generate(context.Background(), "how much protein do I need?", testDocs(), nil, 500)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer.Title != "Protein needs" {
		t.Fatalf("title = %q", answer.Title)
	}
	if len(answer.Paragraphs) != 1 {
		t.Fatalf("paragraphs = %d", len(answer.Paragraphs))
	}
	if len(mock.CompleteCalls) != 1 {
		t.Fatalf("complete calls = %d, want 1", len(mock.CompleteCalls))
	}
	if mock.CompleteCalls[0].SchemaName != "nutrition_answer" {
		t.Fatalf("schema name = %q", mock.CompleteCalls[0].SchemaName)
	}
}

func TestGenerate_ToleratesFencesAndProse(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{"Here you go:\n```json\n" + goodAnswer + "\n```"}}
	svc := NewAnswerService(mock, zap.NewNop())

	answer, err := svc.Generate(context.Background(), "protein?", testDocs(), nil, 500)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer.Title != "Protein needs" {
		t.Fatalf("title = %q", answer.Title)
	}
	if len(mock.CompleteCalls) != 1 {
		t.Fatalf("complete calls = %d, want 1 (no repair needed)", len(mock.CompleteCalls))
	}
}

func TestGenerate_RepairPassRecovers(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{"not json at all", goodAnswer}}
	svc := NewAnswerService(mock, zap.NewNop())

	answer, err := svc.Generate(context.Background(), "protein?", testDocs(), nil, 500)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer.Title != "Protein needs" {
		t.Fatalf("title = %q", answer.Title)
	}
	if len(mock.CompleteCalls) != 2 {
		t.Fatalf("complete calls = %d, want 2", len(mock.CompleteCalls))
	}
}

func TestGenerate_SecondFailureStops(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{"garbage", `{"title":"","paragraphs":[]}`}}
	svc := NewAnswerService(mock, zap.NewNop())

	_, err := svc.Generate(context.Background(), "protein?", testDocs(), nil, 500)
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	// The repair pass is bounded: never a third model call.
	if len(mock.CompleteCalls) != 2 {
		t.Fatalf("complete calls = %d, want 2", len(mock.CompleteCalls))
	}
}

func TestGenerate_MissingTitleTriggersRepair(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{`{"paragraphs":["p"],"key_points":[]}`, goodAnswer}}
	svc := NewAnswerService(mock, zap.NewNop())

	if _, err := svc.Generate(context.Background(), "protein?", testDocs(), nil, 500); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(mock.CompleteCalls) != 2 {
		t.Fatalf("complete calls = %d, want 2", len(mock.CompleteCalls))
	}
}

func TestGenerate_ClientError(t *testing.T) {
	boom := errors.New("upstream down")
	mock := &llm.MockClient{Err: boom}
	svc := NewAnswerService(mock, zap.NewNop())

	_, err := svc.Generate(context.Background(), "protein?", testDocs(), nil, 500)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped upstream error", err)
	}
}

func TestGenerate_VerbosityFollowsBudget(t *testing.T) {
	cases := []struct {
		budget int
		want   string
	}{
		{200, "minimal"},
		{500, "standard"},
		{1000, "full"},
	}
	for _, tc := range cases {
		mock := &llm.MockClient{Responses: []string{goodAnswer}}
		svc := NewAnswerService(mock, zap.NewNop())
		if _, err := svc.Generate(context.Background(), "protein?", testDocs(), nil, tc.budget); err != nil {
			t.Fatalf("Generate(%d): %v", tc.budget, err)
		}
		sys := mock.CompleteCalls[0].System
		marker := map[string]string{
			"minimal":  "be minimal",
			"standard": "standard detail",
			"full":     "full detail",
		}[tc.want]
		if !strings.Contains(sys, marker) {
			t.Fatalf("budget %d: system prompt missing %q", tc.budget, marker)
		}
	}
}
