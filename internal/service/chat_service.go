package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutrichat/internal/domain"
	"nutrichat/internal/repository"
)

// conversationPreamble is the system message stored as the first link of every
// reply chain.
const conversationPreamble = "Nutrition assistant conversation. Answers are grounded in the knowledge base."

// ChatService composes the RAG pipeline: quota gate, prompt embedding,
// retrieval, history build, structured generation, atomic append.
type ChatService struct {
	users     repository.ChatUserRepository
	convs     repository.ConversationRepository
	embedder  *EmbeddingService
	knowledge *KnowledgeService
	answers   *AnswerService
	retrieveK int
	logger    *zap.Logger
}

func NewChatService(
	users repository.ChatUserRepository,
	convs repository.ConversationRepository,
	embedder *EmbeddingService,
	knowledge *KnowledgeService,
	answers *AnswerService,
	retrieveK int,
	logger *zap.Logger,
) *ChatService {
	if retrieveK <= 0 {
		retrieveK = 6
	}
	return &ChatService{
		users:     users,
		convs:     convs,
		embedder:  embedder,
		knowledge: knowledge,
		answers:   answers,
		retrieveK: retrieveK,
		logger:    logger,
	}
}

// StartConversation handles a first prompt with no existing conversation: it
// creates the aggregate, runs one turn and persists system+user+assistant
// messages plus the title in a single transaction.
func (s *ChatService) StartConversation(ctx context.Context, userID uuid.UUID, prompt string) (*domain.Conversation, domain.StructuredAnswer, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, domain.StructuredAnswer{}, err
	}

	convCount, err := s.users.CountConversations(ctx, userID)
	if err != nil {
		return nil, domain.StructuredAnswer{}, err
	}
	if convCount >= user.Limits.Conversations {
		return nil, domain.StructuredAnswer{}, fmt.Errorf("conversations used %d of %d: %w",
			convCount, user.Limits.Conversations, domain.ErrQuotaExceeded)
	}

	now := time.Now().UTC()
	conv := domain.NewConversation(userID, now)

	answer, messages, err := s.runTurn(ctx, user, conv, prompt, now)
	if err != nil {
		return nil, domain.StructuredAnswer{}, err
	}

	if err := conv.SetTitle(answer.Title); err != nil {
		return nil, domain.StructuredAnswer{}, err
	}

	if err := s.convs.AppendTurn(ctx, conv, messages, user.Limits.DailyPrompts, true); err != nil {
		return nil, domain.StructuredAnswer{}, err
	}

	s.logger.Info("conversation started",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return conv, answer, nil
}

// ContinueConversation appends one turn to an existing conversation.
func (s *ChatService) ContinueConversation(ctx context.Context, userID, conversationID uuid.UUID, prompt string) (*domain.Conversation, domain.StructuredAnswer, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, domain.StructuredAnswer{}, err
	}

	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, domain.StructuredAnswer{}, err
	}
	if conv.UserID != userID {
		// Do not leak another user's conversation ids.
		return nil, domain.StructuredAnswer{}, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	now := time.Now().UTC()
	answer, messages, err := s.runTurn(ctx, user, conv, prompt, now)
	if err != nil {
		return nil, domain.StructuredAnswer{}, err
	}

	if conv.Title == "" {
		if err := conv.SetTitle(answer.Title); err != nil {
			return nil, domain.StructuredAnswer{}, err
		}
	}

	if err := s.convs.AppendTurn(ctx, conv, messages, user.Limits.DailyPrompts, false); err != nil {
		return nil, domain.StructuredAnswer{}, err
	}
	return conv, answer, nil
}

// ListConversations returns the user's conversations, most recently used
// first.
func (s *ChatService) ListConversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	return s.convs.ListByUser(ctx, userID)
}

// GetConversation loads one conversation with its messages, enforcing
// ownership.
func (s *ChatService) GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	return conv, nil
}

// runTurn executes the per-request pipeline up to (but not including) the
// commit. The quota gates run before any embedding or generation spend; the
// authoritative daily-count re-check happens later inside AppendTurn.
func (s *ChatService) runTurn(ctx context.Context, user domain.ChatUser, conv *domain.Conversation, prompt string, now time.Time) (domain.StructuredAnswer, []domain.Message, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.StructuredAnswer{}, nil, fmt.Errorf("%w: empty prompt", domain.ErrInvalidArgument)
	}
	if CountTokens(prompt) > user.Limits.PromptTokens {
		return domain.StructuredAnswer{}, nil, fmt.Errorf("prompt of %d tokens exceeds limit %d: %w",
			CountTokens(prompt), user.Limits.PromptTokens, domain.ErrPromptTooLong)
	}

	todayCount, err := s.users.CountPromptsToday(ctx, user.UserID)
	if err != nil {
		return domain.StructuredAnswer{}, nil, err
	}
	if !user.AllowPrompt(todayCount) {
		return domain.StructuredAnswer{}, nil, fmt.Errorf("daily prompts used %d of %d: %w",
			todayCount, user.Limits.DailyPrompts, domain.ErrQuotaExceeded)
	}

	embedding, err := s.embedder.Embed(ctx, prompt)
	if err != nil {
		return domain.StructuredAnswer{}, nil, err
	}

	docs, err := s.knowledge.Retrieve(ctx, embedding, s.retrieveK)
	if err != nil {
		return domain.StructuredAnswer{}, nil, fmt.Errorf("retrieve documents: %w", err)
	}
	if len(docs) == 0 {
		// Never ask the model to answer from zero grounding.
		return domain.StructuredAnswer{}, nil, domain.ErrNoRelevantDocuments
	}

	history := conv.HistoryForGeneration(now, user.Limits.HistoryDays)

	answer, err := s.answers.Generate(ctx, prompt, docs, history, user.Limits.ResponseTokens)
	if err != nil {
		return domain.StructuredAnswer{}, nil, err
	}

	messages, err := s.buildTurnMessages(conv, prompt, answer, now)
	if err != nil {
		return domain.StructuredAnswer{}, nil, err
	}
	return answer, messages, nil
}

// buildTurnMessages extends the reply chain: a new conversation starts with a
// system message replying to the nil sentinel; the user message replies to
// the previous chain tail, the assistant message to the user message.
func (s *ChatService) buildTurnMessages(conv *domain.Conversation, prompt string, answer domain.StructuredAnswer, now time.Time) ([]domain.Message, error) {
	var out []domain.Message
	replyTo := uuid.Nil

	if len(conv.Messages) == 0 {
		sys, err := domain.NewMessage(conv.ID, domain.RoleSystem, conversationPreamble, uuid.Nil, now)
		if err != nil {
			return nil, err
		}
		if err := conv.AddMessage(sys); err != nil {
			return nil, err
		}
		out = append(out, sys)
		replyTo = sys.ID
	} else if tail, err := conv.LastMessage(); err == nil {
		replyTo = tail.ID
	}

	userMsg, err := domain.NewMessage(conv.ID, domain.RoleUser, prompt, replyTo, now.Add(time.Microsecond))
	if err != nil {
		return nil, err
	}
	if err := conv.AddMessage(userMsg); err != nil {
		return nil, err
	}

	asstMsg, err := domain.NewMessage(conv.ID, domain.RoleAssistant, renderAnswerText(answer), userMsg.ID, now.Add(2*time.Microsecond))
	if err != nil {
		return nil, err
	}
	if err := conv.AddMessage(asstMsg); err != nil {
		return nil, err
	}

	return append(out, userMsg, asstMsg), nil
}

// renderAnswerText flattens the structured answer into the message content
// stored in the transcript and replayed as history.
func renderAnswerText(a domain.StructuredAnswer) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(a.Paragraphs, "\n\n"))
	if len(a.KeyPoints) > 0 {
		sb.WriteString("\n")
		for _, kp := range a.KeyPoints {
			sb.WriteString("\n- ")
			sb.WriteString(kp)
		}
	}
	return sb.String()
}
