package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
)

// MaxChunkContentLen bounds the text stored per chunk.
const MaxChunkContentLen = 8000

// DocumentChunk is one retrievable unit of ingested knowledge. Chunks from the
// same source document share a GroupID; Index is unique within the group.
// Embedding dimensionality is fixed store-wide; changing it is a schema
// migration, not a runtime concern.
type DocumentChunk struct {
	ID         uuid.UUID       `json:"id"`
	GroupID    uuid.UUID       `json:"group_id"`
	Index      int             `json:"index"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Embedding  pgvector.Vector `json:"-"`
	AttachedAt time.Time       `json:"attached_at"`
}

// NewDocumentChunk validates and builds a chunk ready for the store.
func NewDocumentChunk(groupID uuid.UUID, index int, title, content string, embedding pgvector.Vector, at time.Time) (DocumentChunk, error) {
	if strings.TrimSpace(content) == "" {
		return DocumentChunk{}, fmt.Errorf("%w: empty chunk content", ErrInvalidArgument)
	}
	if len(content) > MaxChunkContentLen {
		return DocumentChunk{}, fmt.Errorf("%w: chunk content exceeds %d bytes", ErrInvalidArgument, MaxChunkContentLen)
	}
	if index < 0 {
		return DocumentChunk{}, fmt.Errorf("%w: negative chunk index", ErrInvalidArgument)
	}
	return DocumentChunk{
		ID:         uuid.New(),
		GroupID:    groupID,
		Index:      index,
		Title:      title,
		Content:    content,
		Embedding:  embedding,
		AttachedAt: at,
	}, nil
}
