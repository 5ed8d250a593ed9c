package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"nutrichat/internal/domain"
)

type DocumentRepository interface {
	Upsert(ctx context.Context, chunks []domain.DocumentChunk) error
	// Search returns the k chunks closest to the query embedding, ascending
	// by cosine distance. An empty store yields an empty slice, not an error.
	Search(ctx context.Context, embedding pgvector.Vector, k int) ([]domain.DocumentChunk, error)
	// Dimension is the store's fixed embedding dimensionality.
	Dimension() int
}

type PgDocumentRepository struct {
	pool *pgxpool.Pool
	dim  int
}

func NewPgDocumentRepository(pool *pgxpool.Pool, dim int) *PgDocumentRepository {
	return &PgDocumentRepository{pool: pool, dim: dim}
}

func (r *PgDocumentRepository) Dimension() int { return r.dim }

func (r *PgDocumentRepository) Upsert(ctx context.Context, chunks []domain.DocumentChunk) error {
	const query = `
		INSERT INTO document_chunks (id, group_id, chunk_index, title, content, embedding, attached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (group_id, chunk_index) DO UPDATE
		SET title = EXCLUDED.title,
		    content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    attached_at = EXCLUDED.attached_at,
		    deleted_at = NULL
	`
	for _, c := range chunks {
		if _, err := r.pool.Exec(ctx, query,
			c.ID,
			c.GroupID,
			c.Index,
			c.Title,
			c.Content,
			c.Embedding,
			c.AttachedAt,
		); err != nil {
			return fmt.Errorf("upsert chunk %d of group %s: %w", c.Index, c.GroupID, err)
		}
	}
	return nil
}

func (r *PgDocumentRepository) Search(ctx context.Context, embedding pgvector.Vector, k int) ([]domain.DocumentChunk, error) {
	if k <= 0 {
		k = 6
	}
	const query = `
		SELECT id, group_id, chunk_index, title, content, embedding, attached_at
		FROM document_chunks
		WHERE deleted_at IS NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, embedding, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.DocumentChunk
	for rows.Next() {
		var c domain.DocumentChunk
		if err := rows.Scan(
			&c.ID,
			&c.GroupID,
			&c.Index,
			&c.Title,
			&c.Content,
			&c.Embedding,
			&c.AttachedAt,
		); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}
