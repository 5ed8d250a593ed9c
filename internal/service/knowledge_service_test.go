package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutrichat/internal/llm"
)

func newTestKnowledge(t *testing.T, docs *mockDocs) (*KnowledgeService, *llm.MockClient) {
	t.Helper()
	client := &llm.MockClient{EmbedVec: []float32{1, 2, 3, 4}}
	embedder, err := NewEmbeddingService(client, nil, 4, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEmbeddingService: %v", err)
	}
	svc, err := NewKnowledgeService(NewChunker(40, 8), embedder, docs, zap.NewNop())
	if err != nil {
		t.Fatalf("NewKnowledgeService: %v", err)
	}
	return svc, client
}

func TestNewKnowledgeService_DimensionMismatch(t *testing.T) {
	embedder, err := NewEmbeddingService(&llm.MockClient{}, nil, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEmbeddingService: %v", err)
	}
	if _, err := NewKnowledgeService(NewChunker(0, 0), embedder, &mockDocs{}, zap.NewNop()); err == nil {
		t.Fatalf("expected dimension mismatch at construction")
	}
}

func TestIngest_ChunksAndUpserts(t *testing.T) {
	docs := &mockDocs{}
	svc, client := newTestKnowledge(t, docs)

	para := strings.Repeat("protein ", 30)
	content := para + "\n\n" + para + "\n\n" + para
	groupID := uuid.New()

	n, err := svc.Ingest(context.Background(), groupID, "Protein guide", content)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n == 0 || n != len(docs.upserted) {
		t.Fatalf("ingested %d, upserted %d", n, len(docs.upserted))
	}
	if client.EmbedCalls != n {
		t.Fatalf("embed calls = %d, want one per chunk (%d)", client.EmbedCalls, n)
	}
	for i, c := range docs.upserted {
		if c.GroupID != groupID {
			t.Fatalf("chunk %d group = %s", i, c.GroupID)
		}
		if c.Index != i {
			t.Fatalf("chunk %d index = %d", i, c.Index)
		}
		if c.Title != "Protein guide" {
			t.Fatalf("chunk %d title = %q", i, c.Title)
		}
		if len(c.Embedding.Slice()) != 4 {
			t.Fatalf("chunk %d embedding dim = %d", i, len(c.Embedding.Slice()))
		}
	}
}

func TestIngest_EmptyContent(t *testing.T) {
	docs := &mockDocs{}
	svc, client := newTestKnowledge(t, docs)

	n, err := svc.Ingest(context.Background(), uuid.New(), "Empty", "   \n\n  ")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 0 || len(docs.upserted) != 0 || client.EmbedCalls != 0 {
		t.Fatalf("empty content caused work: n=%d upserted=%d embeds=%d", n, len(docs.upserted), client.EmbedCalls)
	}
}

func TestRetrieve_PassesK(t *testing.T) {
	docs := &mockDocs{}
	svc, _ := newTestKnowledge(t, docs)

	if _, err := svc.Retrieve(context.Background(), []float32{1, 2, 3, 4}, 6); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if docs.lastK != 6 {
		t.Fatalf("k = %d, want 6", docs.lastK)
	}
}
