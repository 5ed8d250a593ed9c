package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the authenticated account. The chat quota subject (ChatUser) is
// created alongside it on signup.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
