package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tier is the subscription level gating usage.
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// UnlimitedDailyPrompts disables the daily prompt cap.
const UnlimitedDailyPrompts = -1

// Limits is the bundle of numeric limits derived from a tier.
type Limits struct {
	Conversations         int  `json:"conversations_limit"`
	HistoryDays           int  `json:"history_days"`
	Documents             int  `json:"documents_limit"`
	PromptTokens          int  `json:"prompt_tokens_limit"`
	ResponseTokens        int  `json:"response_tokens_limit"`
	DailyPrompts          int  `json:"daily_prompts_limit"`
	CanExportData         bool `json:"can_export_data"`
	CanUseAdvancedPrompts bool `json:"can_use_advanced_prompts"`
}

// TierLimits is the pure tier-to-limits mapping. The numbers are load-bearing:
// billing, gating and prompt budgets all depend on them staying exact.
func TierLimits(t Tier) (Limits, error) {
	switch t {
	case TierFree:
		return Limits{
			Conversations:  2,
			HistoryDays:    7,
			Documents:      5,
			PromptTokens:   200,
			ResponseTokens: 200,
			DailyPrompts:   10,
		}, nil
	case TierStandard:
		return Limits{
			Conversations:  5,
			HistoryDays:    30,
			Documents:      20,
			PromptTokens:   500,
			ResponseTokens: 500,
			DailyPrompts:   50,
			CanExportData:  true,
		}, nil
	case TierPremium:
		return Limits{
			Conversations:         20,
			HistoryDays:           90,
			Documents:             100,
			PromptTokens:          1000,
			ResponseTokens:        1000,
			DailyPrompts:          UnlimitedDailyPrompts,
			CanExportData:         true,
			CanUseAdvancedPrompts: true,
		}, nil
	default:
		return Limits{}, fmt.Errorf("%w: unknown tier %q", ErrInvalidArgument, t)
	}
}

// ChatUser is the quota subject, keyed by user identity. Exactly one active
// tier configuration exists per user; ChangeTier replaces the whole snapshot.
type ChatUser struct {
	UserID    uuid.UUID  `json:"user_id"`
	Tier      Tier       `json:"tier"`
	Limits    Limits     `json:"limits"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	events []Event
}

// NewChatUser creates the quota subject with Free defaults, as done on signup.
func NewChatUser(userID uuid.UUID, now time.Time) ChatUser {
	limits, _ := TierLimits(TierFree)
	u := ChatUser{
		UserID:    userID,
		Tier:      TierFree,
		Limits:    limits,
		StartDate: now,
	}
	u.events = append(u.events, newEvent(EventChatUserCreated, map[string]any{
		"user_id": userID.String(),
		"tier":    string(TierFree),
	}, now))
	return u
}

// ChangeTier returns a fresh snapshot with tier-specific limit values. Limits
// are never edited incrementally.
func (u ChatUser) ChangeTier(t Tier, now time.Time) (ChatUser, error) {
	limits, err := TierLimits(t)
	if err != nil {
		return ChatUser{}, err
	}
	next := ChatUser{
		UserID:    u.UserID,
		Tier:      t,
		Limits:    limits,
		StartDate: now,
	}
	next.events = append(next.events, newEvent(EventTierChanged, map[string]any{
		"user_id": u.UserID.String(),
		"from":    string(u.Tier),
		"to":      string(t),
	}, now))
	return next, nil
}

// AllowPrompt reports whether one more prompt fits under the daily cap given
// the count of prompts already consumed today.
func (u ChatUser) AllowPrompt(todayCount int) bool {
	if u.Limits.DailyPrompts == UnlimitedDailyPrompts {
		return true
	}
	return todayCount < u.Limits.DailyPrompts
}

// PendingEvents drains and returns events recorded since the last drain.
func (u *ChatUser) PendingEvents() []Event {
	out := u.events
	u.events = nil
	return out
}
