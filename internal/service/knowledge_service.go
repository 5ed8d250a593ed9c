package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"nutrichat/internal/domain"
	"nutrichat/internal/repository"
)

// KnowledgeService owns the document corpus: ingestion splits a source text
// into embedded chunks, retrieval answers k-nearest queries.
type KnowledgeService struct {
	chunker  *Chunker
	embedder *EmbeddingService
	docs     repository.DocumentRepository
	logger   *zap.Logger
}

func NewKnowledgeService(chunker *Chunker, embedder *EmbeddingService, docs repository.DocumentRepository, logger *zap.Logger) (*KnowledgeService, error) {
	if embedder.Dimension() != docs.Dimension() {
		return nil, fmt.Errorf("embedding generator dimension %d does not match store dimension %d",
			embedder.Dimension(), docs.Dimension())
	}
	return &KnowledgeService{
		chunker:  chunker,
		embedder: embedder,
		docs:     docs,
		logger:   logger,
	}, nil
}

// Ingest chunks and embeds one source document under groupID and upserts the
// result. Re-ingesting the same content under the same group overwrites the
// existing chunks in place.
func (s *KnowledgeService) Ingest(ctx context.Context, groupID uuid.UUID, title, content string) (int, error) {
	chunks := s.chunker.Chunk(content)
	if len(chunks) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	out := make([]domain.DocumentChunk, 0, len(chunks))
	for i, text := range chunks {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		chunk, err := domain.NewDocumentChunk(groupID, i, title, text, pgvector.NewVector(vec), now)
		if err != nil {
			return 0, err
		}
		out = append(out, chunk)
	}

	if err := s.docs.Upsert(ctx, out); err != nil {
		return 0, fmt.Errorf("upsert chunks: %w", err)
	}
	s.logger.Info("document ingested",
		zap.String("group_id", groupID.String()),
		zap.String("title", title),
		zap.Int("chunks", len(out)),
	)
	return len(out), nil
}

// Retrieve returns the k chunks nearest to the query embedding, ascending by
// cosine distance. An empty corpus yields an empty result, not an error.
func (s *KnowledgeService) Retrieve(ctx context.Context, embedding []float32, k int) ([]domain.DocumentChunk, error) {
	return s.docs.Search(ctx, pgvector.NewVector(embedding), k)
}
