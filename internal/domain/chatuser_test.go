package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTierLimits_ExactTable(t *testing.T) {
	cases := []struct {
		tier Tier
		want Limits
	}{
		{TierFree, Limits{Conversations: 2, HistoryDays: 7, Documents: 5, PromptTokens: 200, ResponseTokens: 200, DailyPrompts: 10}},
		{TierStandard, Limits{Conversations: 5, HistoryDays: 30, Documents: 20, PromptTokens: 500, ResponseTokens: 500, DailyPrompts: 50, CanExportData: true}},
		{TierPremium, Limits{Conversations: 20, HistoryDays: 90, Documents: 100, PromptTokens: 1000, ResponseTokens: 1000, DailyPrompts: UnlimitedDailyPrompts, CanExportData: true, CanUseAdvancedPrompts: true}},
	}
	// Call twice in mixed order: the mapping must be pure.
	for round := 0; round < 2; round++ {
		for i := len(cases) - 1; i >= 0; i-- {
			got, err := TierLimits(cases[i].tier)
			if err != nil {
				t.Fatalf("tier %s: %v", cases[i].tier, err)
			}
			if got != cases[i].want {
				t.Fatalf("tier %s: got %+v want %+v", cases[i].tier, got, cases[i].want)
			}
		}
	}
}

func TestTierLimits_Unknown(t *testing.T) {
	if _, err := TierLimits(Tier("platinum")); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestAllowPrompt(t *testing.T) {
	now := time.Now().UTC()
	free := NewChatUser(uuid.New(), now)
	if !free.AllowPrompt(9) {
		t.Fatalf("expected prompt 10 of 10 allowed")
	}
	if free.AllowPrompt(10) {
		t.Fatalf("expected 11th prompt denied")
	}

	premium, err := free.ChangeTier(TierPremium, now)
	if err != nil {
		t.Fatalf("change tier: %v", err)
	}
	if !premium.AllowPrompt(1_000_000) {
		t.Fatalf("expected unlimited tier to always allow")
	}
}

func TestChangeTier_ReplacesSnapshot(t *testing.T) {
	now := time.Now().UTC()
	u := NewChatUser(uuid.New(), now)

	later := now.Add(time.Hour)
	next, err := u.ChangeTier(TierStandard, later)
	if err != nil {
		t.Fatalf("change tier: %v", err)
	}
	if next.Tier != TierStandard {
		t.Fatalf("expected standard tier, got %s", next.Tier)
	}
	want, _ := TierLimits(TierStandard)
	if next.Limits != want {
		t.Fatalf("expected full standard snapshot, got %+v", next.Limits)
	}
	if !next.StartDate.Equal(later) {
		t.Fatalf("expected new start date")
	}
	// Original value untouched.
	if u.Tier != TierFree {
		t.Fatalf("expected original snapshot unchanged, got %s", u.Tier)
	}

	events := next.PendingEvents()
	if len(events) != 1 || events[0].Type != EventTierChanged {
		t.Fatalf("expected one TierChanged event, got %+v", events)
	}
}
