package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nutrichat/internal/domain"
)

type ConversationRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	// AppendTurn commits one conversation turn atomically: it locks the user's
	// quota row, re-checks the daily prompt count against dailyLimit, then
	// persists the conversation upsert, the new messages and the pending
	// outbox events in a single transaction. Returns domain.ErrQuotaExceeded
	// when the locked re-check fails.
	AppendTurn(ctx context.Context, conv *domain.Conversation, newMessages []domain.Message, dailyLimit int, isNew bool) error
}

type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

func (r *PgConversationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	const convQuery = `
		SELECT id, user_id, COALESCE(title, ''), created_at, last_used_at
		FROM conversations
		WHERE id = $1 AND deleted_at IS NULL
	`

	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, convQuery, id).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.LastUsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}

	const msgQuery = `
		SELECT id, conversation_id, role, content, COALESCE(reply_to_id, '00000000-0000-0000-0000-000000000000'::uuid), created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, msgQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.ReplyToID, &m.CreatedAt); err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &conv, nil
}

func (r *PgConversationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	const query = `
		SELECT id, user_id, COALESCE(title, ''), created_at, last_used_at
		FROM conversations
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY last_used_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.LastUsedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PgConversationRepository) AppendTurn(ctx context.Context, conv *domain.Conversation, newMessages []domain.Message, dailyLimit int, isNew bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Row lock on the quota subject serializes concurrent turns per user,
	// including turns on the same conversation.
	const lockQuery = `SELECT user_id FROM chat_users WHERE user_id = $1 FOR UPDATE`
	var locked uuid.UUID
	if err := tx.QueryRow(ctx, lockQuery, conv.UserID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("chat user %s: %w", conv.UserID, domain.ErrNotFound)
		}
		return err
	}

	if dailyLimit != domain.UnlimitedDailyPrompts {
		const countQuery = `
			SELECT count(*)
			FROM conversation_messages m
			JOIN conversations c ON c.id = m.conversation_id
			WHERE c.user_id = $1
			  AND m.role = 'user'
			  AND m.created_at >= date_trunc('day', now() AT TIME ZONE 'utc')
		`
		var todayCount int
		if err := tx.QueryRow(ctx, countQuery, conv.UserID).Scan(&todayCount); err != nil {
			return err
		}
		if todayCount >= dailyLimit {
			return fmt.Errorf("daily prompts used %d of %d: %w", todayCount, dailyLimit, domain.ErrQuotaExceeded)
		}
	}

	if isNew {
		const insertConv = `
			INSERT INTO conversations (id, user_id, title, created_at, last_used_at)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		`
		if _, err := tx.Exec(ctx, insertConv, conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.LastUsedAt); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
	} else {
		const updateConv = `
			UPDATE conversations
			SET title = COALESCE(NULLIF($3, ''), title), last_used_at = $4
			WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		`
		tag, err := tx.Exec(ctx, updateConv, conv.ID, conv.UserID, conv.Title, conv.LastUsedAt)
		if err != nil {
			return fmt.Errorf("update conversation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("conversation %s: %w", conv.ID, domain.ErrNotFound)
		}
	}

	const insertMsg = `
		INSERT INTO conversation_messages (id, conversation_id, role, content, reply_to_id, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, '00000000-0000-0000-0000-000000000000'::uuid), $6)
	`
	for _, m := range newMessages {
		if m.ConversationID != conv.ID {
			return fmt.Errorf("message %s: %w", m.ID, domain.ErrOwnershipMismatch)
		}
		if _, err := tx.Exec(ctx, insertMsg, m.ID, m.ConversationID, m.Role, m.Content, m.ReplyToID, m.CreatedAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if err := insertEvents(ctx, tx, conv.PendingEvents()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
