package ai

import (
	"testing"

	"github.com/lifeos/lifeosd/internal/session"
)

func userMsg(text string) []session.Message {
	return []session.Message{{Role: "user", Content: text}}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	classifier := NewTierClassifier(DefaultRules(), TierFree)

	tests := []struct {
		name     string
		message  string
		wantTier Tier
		wantWhy  string
	}{
		{
			name:     "high stakes keyword",
			message:  "what's the max bid recommendation",
			wantTier: TierCritical,
			wantWhy:  "high_stakes_keyword",
		},
		{
			name:     "analytical keyword",
			message:  "compare these two meal plans for me",
			wantTier: TierProduction,
			wantWhy:  "analytical_keyword",
		},
		{
			name:     "narrow domain keyword",
			message:  "log my swim from this morning",
			wantTier: TierUltraCheap,
			wantWhy:  "narrow_domain_keyword",
		},
		{
			name:     "no match falls to default",
			message:  "hello there",
			wantTier: TierFree,
			wantWhy:  "default",
		},
		{
			// Matches both the CRITICAL and PRODUCTION rule sets; the
			// earlier rule must win.
			name:     "overlapping rules resolve to higher priority",
			message:  "analyze the auction and tell me what to do",
			wantTier: TierCritical,
			wantWhy:  "high_stakes_keyword",
		},
		{
			name:     "keyword matching is case insensitive",
			message:  "What Is The MAX BID here?",
			wantTier: TierCritical,
			wantWhy:  "high_stakes_keyword",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := classifier.Classify(userMsg(tt.message))
			if decision.Tier != tt.wantTier {
				t.Errorf("Classify(%q) tier = %s, want %s", tt.message, decision.Tier, tt.wantTier)
			}
			if decision.Reason != tt.wantWhy {
				t.Errorf("Classify(%q) reason = %s, want %s", tt.message, decision.Reason, tt.wantWhy)
			}
			if decision.Timestamp.IsZero() {
				t.Error("Classify should stamp the decision")
			}
		})
	}
}

func TestClassifyIsTotal(t *testing.T) {
	classifier := NewTierClassifier(DefaultRules(), TierFree)

	// No messages at all still resolves to the default tier.
	decision := classifier.Classify(nil)
	if decision.Tier != TierFree || decision.Reason != "default" {
		t.Errorf("Classify(nil) = %s/%s, want FREE/default", decision.Tier, decision.Reason)
	}

	// Transcript with no user message.
	decision = classifier.Classify([]session.Message{{Role: "assistant", Content: "hi"}})
	if decision.Tier != TierFree {
		t.Errorf("Classify with no user message = %s, want FREE", decision.Tier)
	}
}

func TestClassifyUsesLatestUserMessage(t *testing.T) {
	classifier := NewTierClassifier(DefaultRules(), TierFree)

	msgs := []session.Message{
		{Role: "user", Content: "what's the max bid recommendation"},
		{Role: "assistant", Content: "Here is my analysis..."},
		{Role: "user", Content: "thanks, what did I have for my last meal"},
	}
	decision := classifier.Classify(msgs)
	if decision.Tier != TierUltraCheap {
		t.Errorf("Classify should use the latest user message, got %s", decision.Tier)
	}
}

func TestNewTierClassifierInvalidDefault(t *testing.T) {
	classifier := NewTierClassifier(nil, Tier("BOGUS"))
	decision := classifier.Classify(userMsg("anything"))
	if decision.Tier != TierFree {
		t.Errorf("invalid default tier should fall back to FREE, got %s", decision.Tier)
	}
}
