package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"nutrichat/internal/domain"
	"nutrichat/internal/repository"
)

// UserService handles signup, login and tier changes. Signup also creates the
// chat quota subject so every account has exactly one active tier.
type UserService struct {
	logger    *zap.Logger
	users     repository.UserRepository
	chatUsers repository.ChatUserRepository
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password too short")
)

const minPasswordLen = 8

func NewUserService(logger *zap.Logger, users repository.UserRepository, chatUsers repository.ChatUserRepository) *UserService {
	return &UserService{logger: logger, users: users, chatUsers: chatUsers}
}

type SignupInput struct {
	Email       string
	DisplayName string
	Password    string
}

func (s *UserService) Signup(ctx context.Context, input SignupInput) (domain.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return domain.User{}, ErrInvalidEmail
	}
	if len(strings.TrimSpace(input.Password)) < minPasswordLen {
		return domain.User{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, err
	}

	chatUser := domain.NewChatUser(user.ID, now)
	if err := s.chatUsers.Create(ctx, chatUser); err != nil {
		return domain.User{}, fmt.Errorf("create chat user: %w", err)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *UserService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ChangeTier swaps the user's quota snapshot for the target tier's limits.
func (s *UserService) ChangeTier(ctx context.Context, userID uuid.UUID, tier domain.Tier) (domain.ChatUser, error) {
	current, err := s.chatUsers.Get(ctx, userID)
	if err != nil {
		return domain.ChatUser{}, err
	}
	next, err := current.ChangeTier(tier, time.Now().UTC())
	if err != nil {
		return domain.ChatUser{}, err
	}
	if err := s.chatUsers.ReplaceTier(ctx, next); err != nil {
		return domain.ChatUser{}, err
	}
	s.logger.Info("tier changed",
		zap.String("user_id", userID.String()),
		zap.String("tier", string(tier)),
	)
	return next, nil
}

func (s *UserService) GetChatUser(ctx context.Context, userID uuid.UUID) (domain.ChatUser, error) {
	return s.chatUsers.Get(ctx, userID)
}

func normalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at+1:], ".") {
		return ""
	}
	return email
}
