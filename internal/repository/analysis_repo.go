package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nutrichat/internal/domain"
)

type AnalysisRepository interface {
	CreateSession(ctx context.Context, s domain.AnalysisSession) error
	GetSession(ctx context.Context, userID, id uuid.UUID) (domain.AnalysisSession, error)
	CreateCorrection(ctx context.Context, c domain.AnalysisCorrection) error
	GetCorrection(ctx context.Context, sessionID, id uuid.UUID) (domain.AnalysisCorrection, error)
}

type PgAnalysisRepository struct {
	pool *pgxpool.Pool
}

func NewPgAnalysisRepository(pool *pgxpool.Pool) *PgAnalysisRepository {
	return &PgAnalysisRepository{pool: pool}
}

func (r *PgAnalysisRepository) CreateSession(ctx context.Context, s domain.AnalysisSession) error {
	foods, err := json.Marshal(s.Foods)
	if err != nil {
		return fmt.Errorf("marshal foods: %w", err)
	}
	const query = `
		INSERT INTO analysis_sessions (id, user_id, prompt, notes, foods, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query, s.ID, s.UserID, s.Prompt, s.Notes, foods, s.CreatedAt)
	return err
}

func (r *PgAnalysisRepository) GetSession(ctx context.Context, userID, id uuid.UUID) (domain.AnalysisSession, error) {
	const query = `
		SELECT id, user_id, prompt, notes, foods, created_at
		FROM analysis_sessions
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`
	var s domain.AnalysisSession
	var foods []byte
	err := r.pool.QueryRow(ctx, query, id, userID).Scan(&s.ID, &s.UserID, &s.Prompt, &s.Notes, &foods, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AnalysisSession{}, fmt.Errorf("analysis session %s: %w", id, domain.ErrNotFound)
		}
		return domain.AnalysisSession{}, err
	}
	if err := json.Unmarshal(foods, &s.Foods); err != nil {
		return domain.AnalysisSession{}, fmt.Errorf("unmarshal foods: %w", err)
	}
	return s, nil
}

func (r *PgAnalysisRepository) CreateCorrection(ctx context.Context, c domain.AnalysisCorrection) error {
	foods, err := json.Marshal(c.Foods)
	if err != nil {
		return fmt.Errorf("marshal foods: %w", err)
	}
	const query = `
		INSERT INTO analysis_corrections (id, session_id, foods, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = r.pool.Exec(ctx, query, c.ID, c.SessionID, foods, c.CreatedAt)
	return err
}

func (r *PgAnalysisRepository) GetCorrection(ctx context.Context, sessionID, id uuid.UUID) (domain.AnalysisCorrection, error) {
	const query = `
		SELECT id, session_id, foods, created_at
		FROM analysis_corrections
		WHERE id = $1 AND session_id = $2
	`
	var c domain.AnalysisCorrection
	var foods []byte
	err := r.pool.QueryRow(ctx, query, id, sessionID).Scan(&c.ID, &c.SessionID, &foods, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AnalysisCorrection{}, fmt.Errorf("analysis correction %s: %w", id, domain.ErrNotFound)
		}
		return domain.AnalysisCorrection{}, err
	}
	if err := json.Unmarshal(foods, &c.Foods); err != nil {
		return domain.AnalysisCorrection{}, fmt.Errorf("unmarshal foods: %w", err)
	}
	return c, nil
}
