package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"nutrichat/internal/domain"
)

type mockUsers struct {
	byEmail map[string]domain.User
}

func newMockUsers() *mockUsers {
	return &mockUsers{byEmail: map[string]domain.User{}}
}

func (m *mockUsers) Create(ctx context.Context, u domain.User) error {
	m.byEmail[u.Email] = u
	return nil
}

func (m *mockUsers) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	return u, nil
}

func (m *mockUsers) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
}

type recordingChatUsers struct {
	mockChatUsers
	created []domain.ChatUser
}

func (m *recordingChatUsers) Create(ctx context.Context, u domain.ChatUser) error {
	m.created = append(m.created, u)
	m.user = u
	return nil
}

func TestSignup_CreatesUserAndQuotaSubject(t *testing.T) {
	users := newMockUsers()
	chatUsers := &recordingChatUsers{}
	svc := NewUserService(zap.NewNop(), users, chatUsers)

	user, err := svc.Signup(context.Background(), SignupInput{
		Email:       "  User@Example.COM ",
		DisplayName: "User",
		Password:    "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if user.Email != "user@example.com" {
		t.Fatalf("email = %q, want normalized", user.Email)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter2hunter2")) != nil {
		t.Fatalf("password hash does not verify")
	}

	if len(chatUsers.created) != 1 {
		t.Fatalf("chat users created = %d, want 1", len(chatUsers.created))
	}
	cu := chatUsers.created[0]
	if cu.UserID != user.ID {
		t.Fatalf("chat user id = %s, want %s", cu.UserID, user.ID)
	}
	if cu.Tier != domain.TierFree {
		t.Fatalf("new user tier = %s, want free", cu.Tier)
	}
}

func TestSignup_Validation(t *testing.T) {
	svc := NewUserService(zap.NewNop(), newMockUsers(), &recordingChatUsers{})

	if _, err := svc.Signup(context.Background(), SignupInput{Email: "not-an-email", Password: "hunter2hunter2"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("bad email: err = %v", err)
	}
	if _, err := svc.Signup(context.Background(), SignupInput{Email: "a@b.com", Password: "short"}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("short password: err = %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	users := newMockUsers()
	svc := NewUserService(zap.NewNop(), users, &recordingChatUsers{})

	created, err := svc.Signup(context.Background(), SignupInput{Email: "a@b.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	got, err := svc.Authenticate(context.Background(), "A@B.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("authenticated wrong user")
	}

	if _, err := svc.Authenticate(context.Background(), "a@b.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "missing@b.com", "hunter2hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: err = %v", err)
	}
}

func TestChangeTier_ReplacesLimits(t *testing.T) {
	chatUsers := &recordingChatUsers{}
	svc := NewUserService(zap.NewNop(), newMockUsers(), chatUsers)

	userID := uuid.New()
	if err := chatUsers.Create(context.Background(), domain.NewChatUser(userID, time.Now().UTC())); err != nil {
		t.Fatalf("Create: %v", err)
	}

	upgraded, err := svc.ChangeTier(context.Background(), userID, domain.TierPremium)
	if err != nil {
		t.Fatalf("ChangeTier: %v", err)
	}
	if upgraded.Tier != domain.TierPremium {
		t.Fatalf("tier = %s", upgraded.Tier)
	}
	if upgraded.Limits.DailyPrompts != domain.UnlimitedDailyPrompts {
		t.Fatalf("premium daily prompts = %d, want unlimited", upgraded.Limits.DailyPrompts)
	}
	if chatUsers.user.Tier != domain.TierPremium {
		t.Fatalf("replacement not persisted")
	}

	if _, err := svc.ChangeTier(context.Background(), userID, domain.Tier("platinum")); err == nil {
		t.Fatalf("unknown tier accepted")
	}
}
