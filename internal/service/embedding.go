package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nutrichat/internal/domain"
)

// EmbeddingClient is the slice of the model client the embedding service
// needs.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

var ErrEmbeddingServiceNotConfigured = errors.New("embedding service not configured")

// EmbeddingService converts text into fixed-dimension vectors, with an
// optional Redis read-through cache keyed by content hash.
type EmbeddingService struct {
	client EmbeddingClient
	cache  *redis.Client
	dim    int
	ttl    time.Duration
	logger *zap.Logger
}

// NewEmbeddingService validates the configured dimensionality up front; a
// generator/store mismatch is a configuration error, not a query-time one.
func NewEmbeddingService(client EmbeddingClient, cache *redis.Client, dim int, logger *zap.Logger) (*EmbeddingService, error) {
	if client == nil {
		return nil, ErrEmbeddingServiceNotConfigured
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension %d", domain.ErrInvalidArgument, dim)
	}
	return &EmbeddingService{
		client: client,
		cache:  cache,
		dim:    dim,
		ttl:    24 * time.Hour,
		logger: logger,
	}, nil
}

// Dimension is the vector length this service produces.
func (s *EmbeddingService) Dimension() int { return s.dim }

// Embed returns the vector for text. Empty or whitespace-only text is
// rejected before any I/O.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if s == nil || s.client == nil {
		return nil, ErrEmbeddingServiceNotConfigured
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text to embed", domain.ErrInvalidArgument)
	}

	key := s.cacheKey(text)
	if vec, ok := s.cacheGet(ctx, key); ok {
		return vec, nil
	}

	vec, err := s.client.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(vec) != s.dim {
		return nil, fmt.Errorf("embedding dimension %d, expected %d", len(vec), s.dim)
	}

	s.cacheSet(ctx, key, vec)
	return vec, nil
}

func (s *EmbeddingService) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func (s *EmbeddingService) cacheGet(ctx context.Context, key string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil || len(vec) != s.dim {
		return nil, false
	}
	return vec, true
}

func (s *EmbeddingService) cacheSet(ctx context.Context, key string, vec []float32) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warn("embedding cache set failed", zap.Error(err))
	}
}
