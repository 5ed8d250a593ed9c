package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutrichat/internal/domain"
	"nutrichat/internal/llm"
)

type mockAnalyses struct {
	sessions    map[uuid.UUID]domain.AnalysisSession
	corrections map[uuid.UUID]domain.AnalysisCorrection
}

func newMockAnalyses() *mockAnalyses {
	return &mockAnalyses{
		sessions:    map[uuid.UUID]domain.AnalysisSession{},
		corrections: map[uuid.UUID]domain.AnalysisCorrection{},
	}
}

func (m *mockAnalyses) CreateSession(ctx context.Context, s domain.AnalysisSession) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *mockAnalyses) GetSession(ctx context.Context, userID, id uuid.UUID) (domain.AnalysisSession, error) {
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		return domain.AnalysisSession{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func (m *mockAnalyses) CreateCorrection(ctx context.Context, c domain.AnalysisCorrection) error {
	m.corrections[c.ID] = c
	return nil
}

func (m *mockAnalyses) GetCorrection(ctx context.Context, sessionID, id uuid.UUID) (domain.AnalysisCorrection, error) {
	c, ok := m.corrections[id]
	if !ok || c.SessionID != sessionID {
		return domain.AnalysisCorrection{}, fmt.Errorf("correction %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

const visionResponse = `{"foods":[
	{"name":"Sliced Ham","quantity_in_grams":120,"confidence":0.8,
	 "calories_min":150,"calories_max":200,"protein_min":20,"protein_max":25,
	 "carbs_min":1,"carbs_max":3,"fat_min":7,"fat_max":12},
	{"name":"Eggs","quantity_in_grams":100,"confidence":0.9,
	 "calories_min":140,"calories_max":160,"protein_min":12,"protein_max":14,
	 "carbs_min":1,"carbs_max":2,"fat_min":9,"fat_max":11},
	{"name":"Toast","quantity_in_grams":60,"confidence":0.7,
	 "calories_min":150,"calories_max":180,"protein_min":5,"protein_max":6,
	 "carbs_min":28,"carbs_max":32,"fat_min":2,"fat_max":3}
],"notes":"breakfast plate"}`

func TestAnalyzeImage_AssertedFoodsShadowDetections(t *testing.T) {
	repo := newMockAnalyses()
	client := &llm.MockClient{Responses: []string{visionResponse}}
	svc := NewVisionService(client, repo, zap.NewNop())

	asserted := []domain.AssertedFood{
		{Name: "Ham", QuantityGrams: 150},
		{Name: "eggs", QuantityGrams: 110},
	}
	session, err := svc.AnalyzeImage(context.Background(), uuid.New(), "https://example.com/plate.jpg", "", asserted)
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}

	// "Ham" absorbs "Sliced Ham", "eggs" absorbs "Eggs"; Toast survives.
	if len(session.Foods) != 3 {
		t.Fatalf("foods = %d, want 3", len(session.Foods))
	}

	ham := session.Foods[0]
	if ham.Name != "Ham" || ham.Confidence != 1.0 || ham.QuantityGrams != 150 {
		t.Fatalf("asserted ham = %+v", ham)
	}
	if ham.CaloriesMin != 150 || ham.CaloriesMax != 200 {
		t.Fatalf("asserted ham lost the model's nutrient estimate: %+v", ham)
	}

	eggs := session.Foods[1]
	if eggs.Name != "eggs" || eggs.Confidence != 1.0 {
		t.Fatalf("asserted eggs = %+v", eggs)
	}

	if session.Foods[2].Name != "Toast" {
		t.Fatalf("third food = %q, want Toast", session.Foods[2].Name)
	}

	if _, ok := repo.sessions[session.ID]; !ok {
		t.Fatalf("session not persisted")
	}
	if client.CompleteCalls[0].Image == nil {
		t.Fatalf("vision request has no image")
	}
}

func TestAnalyzeImage_RepairBound(t *testing.T) {
	client := &llm.MockClient{Responses: []string{"garbage", "still garbage"}}
	svc := NewVisionService(client, newMockAnalyses(), zap.NewNop())

	_, err := svc.AnalyzeImage(context.Background(), uuid.New(), "https://example.com/p.jpg", "", nil)
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	if len(client.CompleteCalls) != 2 {
		t.Fatalf("complete calls = %d, want 2", len(client.CompleteCalls))
	}
}

func TestAnalyzeImage_EmptyImage(t *testing.T) {
	svc := NewVisionService(&llm.MockClient{}, newMockAnalyses(), zap.NewNop())
	_, err := svc.AnalyzeImage(context.Background(), uuid.New(), "  ", "", nil)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestSummarize_Modes(t *testing.T) {
	repo := newMockAnalyses()
	userID := uuid.New()
	session := domain.AnalysisSession{
		ID:     uuid.New(),
		UserID: userID,
		Foods: []domain.DetectedFood{
			{Name: "A", CaloriesMin: 100, CaloriesMax: 200, ProteinMin: 10, ProteinMax: 20, CarbsMin: 5, CarbsMax: 15, FatMin: 2, FatMax: 4},
			{Name: "B", CaloriesMin: 50, CaloriesMax: 70, ProteinMin: 1, ProteinMax: 3, CarbsMin: 8, CarbsMax: 10, FatMin: 1, FatMax: 2},
		},
	}
	repo.sessions[session.ID] = session
	svc := NewVisionService(&llm.MockClient{}, repo, zap.NewNop())

	min, err := svc.Summarize(context.Background(), userID, session.ID, uuid.Nil, domain.EstimationMin)
	if err != nil {
		t.Fatalf("Summarize min: %v", err)
	}
	if min.Calories != 150 || min.Protein != 11 || min.Carbs != 13 || min.Fat != 3 {
		t.Fatalf("min summary = %+v", min)
	}

	max, err := svc.Summarize(context.Background(), userID, session.ID, uuid.Nil, domain.EstimationMax)
	if err != nil {
		t.Fatalf("Summarize max: %v", err)
	}
	if max.Calories != 270 || max.Protein != 23 || max.Carbs != 25 || max.Fat != 6 {
		t.Fatalf("max summary = %+v", max)
	}

	avg, err := svc.Summarize(context.Background(), userID, session.ID, uuid.Nil, domain.EstimationAvg)
	if err != nil {
		t.Fatalf("Summarize avg: %v", err)
	}
	if avg.Calories != 210 || avg.Protein != 17 || avg.Carbs != 19 || avg.Fat != 4.5 {
		t.Fatalf("avg summary = %+v", avg)
	}

	if _, err := svc.Summarize(context.Background(), userID, session.ID, uuid.Nil, domain.EstimationMode("huge")); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("unknown mode: err = %v", err)
	}
}

func TestSaveCorrection_AndSummarizeWithIt(t *testing.T) {
	repo := newMockAnalyses()
	userID := uuid.New()
	session := domain.AnalysisSession{
		ID:     uuid.New(),
		UserID: userID,
		Foods:  []domain.DetectedFood{{Name: "A", CaloriesMin: 100, CaloriesMax: 200}},
	}
	repo.sessions[session.ID] = session
	svc := NewVisionService(&llm.MockClient{}, repo, zap.NewNop())

	corr, err := svc.SaveCorrection(context.Background(), userID, session.ID, []domain.DetectedFood{
		{Name: "A", CaloriesMin: 300, CaloriesMax: 300},
	})
	if err != nil {
		t.Fatalf("SaveCorrection: %v", err)
	}

	sum, err := svc.Summarize(context.Background(), userID, session.ID, corr.ID, domain.EstimationMin)
	if err != nil {
		t.Fatalf("Summarize with correction: %v", err)
	}
	if sum.Calories != 300 {
		t.Fatalf("calories = %v, want corrected 300", sum.Calories)
	}
}

func TestSaveCorrection_UnknownSession(t *testing.T) {
	svc := NewVisionService(&llm.MockClient{}, newMockAnalyses(), zap.NewNop())
	_, err := svc.SaveCorrection(context.Background(), uuid.New(), uuid.New(), []domain.DetectedFood{{Name: "A"}})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
