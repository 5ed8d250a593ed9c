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

type ChatUserRepository interface {
	Create(ctx context.Context, u domain.ChatUser) error
	Get(ctx context.Context, userID uuid.UUID) (domain.ChatUser, error)
	// ReplaceTier overwrites the whole limits snapshot for the user.
	ReplaceTier(ctx context.Context, u domain.ChatUser) error
	// CountPromptsToday is the cheap read-only pre-check; the authoritative
	// count happens inside ConversationRepository.AppendTurn.
	CountPromptsToday(ctx context.Context, userID uuid.UUID) (int, error)
	CountConversations(ctx context.Context, userID uuid.UUID) (int, error)
}

type PgChatUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatUserRepository(pool *pgxpool.Pool) *PgChatUserRepository {
	return &PgChatUserRepository{pool: pool}
}

const chatUserColumns = `
	user_id, tier, conversations_limit, history_days, documents_limit,
	prompt_tokens_limit, response_tokens_limit, daily_prompts_limit,
	can_export_data, can_use_advanced_prompts, start_date, end_date
`

func (r *PgChatUserRepository) Create(ctx context.Context, u domain.ChatUser) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO chat_users (` + chatUserColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if _, err := tx.Exec(ctx, query,
		u.UserID,
		u.Tier,
		u.Limits.Conversations,
		u.Limits.HistoryDays,
		u.Limits.Documents,
		u.Limits.PromptTokens,
		u.Limits.ResponseTokens,
		u.Limits.DailyPrompts,
		u.Limits.CanExportData,
		u.Limits.CanUseAdvancedPrompts,
		u.StartDate,
		u.EndDate,
	); err != nil {
		return fmt.Errorf("insert chat user: %w", err)
	}

	if err := insertEvents(ctx, tx, u.PendingEvents()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgChatUserRepository) Get(ctx context.Context, userID uuid.UUID) (domain.ChatUser, error) {
	const query = `
		SELECT ` + chatUserColumns + `
		FROM chat_users
		WHERE user_id = $1 AND deleted_at IS NULL
	`
	var u domain.ChatUser
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&u.UserID,
		&u.Tier,
		&u.Limits.Conversations,
		&u.Limits.HistoryDays,
		&u.Limits.Documents,
		&u.Limits.PromptTokens,
		&u.Limits.ResponseTokens,
		&u.Limits.DailyPrompts,
		&u.Limits.CanExportData,
		&u.Limits.CanUseAdvancedPrompts,
		&u.StartDate,
		&u.EndDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ChatUser{}, fmt.Errorf("chat user %s: %w", userID, domain.ErrNotFound)
		}
		return domain.ChatUser{}, err
	}
	return u, nil
}

func (r *PgChatUserRepository) ReplaceTier(ctx context.Context, u domain.ChatUser) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const query = `
		UPDATE chat_users
		SET tier = $2, conversations_limit = $3, history_days = $4,
		    documents_limit = $5, prompt_tokens_limit = $6,
		    response_tokens_limit = $7, daily_prompts_limit = $8,
		    can_export_data = $9, can_use_advanced_prompts = $10,
		    start_date = $11, end_date = $12
		WHERE user_id = $1 AND deleted_at IS NULL
	`
	tag, err := tx.Exec(ctx, query,
		u.UserID,
		u.Tier,
		u.Limits.Conversations,
		u.Limits.HistoryDays,
		u.Limits.Documents,
		u.Limits.PromptTokens,
		u.Limits.ResponseTokens,
		u.Limits.DailyPrompts,
		u.Limits.CanExportData,
		u.Limits.CanUseAdvancedPrompts,
		u.StartDate,
		u.EndDate,
	)
	if err != nil {
		return fmt.Errorf("replace tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chat user %s: %w", u.UserID, domain.ErrNotFound)
	}

	if err := insertEvents(ctx, tx, u.PendingEvents()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgChatUserRepository) CountPromptsToday(ctx context.Context, userID uuid.UUID) (int, error) {
	const query = `
		SELECT count(*)
		FROM conversation_messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.user_id = $1
		  AND m.role = 'user'
		  AND m.created_at >= date_trunc('day', now() AT TIME ZONE 'utc')
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PgChatUserRepository) CountConversations(ctx context.Context, userID uuid.UUID) (int, error) {
	const query = `
		SELECT count(*)
		FROM conversations
		WHERE user_id = $1 AND deleted_at IS NULL
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
