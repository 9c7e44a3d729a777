package ai

import (
	"strings"
	"time"

	"github.com/lifeos/lifeosd/internal/session"
)

// Tier is a routing bucket selecting which provider chain handles a turn.
// Ordered cheapest first.
type Tier string

const (
	TierFree       Tier = "FREE"
	TierUltraCheap Tier = "ULTRA_CHEAP"
	TierProduction Tier = "PRODUCTION"
	TierCritical   Tier = "CRITICAL"
)

// ValidTier reports whether s names a known tier.
func ValidTier(s string) bool {
	switch Tier(s) {
	case TierFree, TierUltraCheap, TierProduction, TierCritical:
		return true
	}
	return false
}

// Rule maps message keywords to a tier. Rules are evaluated in list order and
// the first rule with any matching keyword wins, so overlapping rule sets
// resolve to the earlier rule.
type Rule struct {
	Reason   string   `yaml:"reason"`
	Tier     Tier     `yaml:"tier"`
	Keywords []string `yaml:"keywords"`
}

// RoutingDecision records why a turn landed on a tier. Logged, not persisted.
type RoutingDecision struct {
	Tier      Tier      `json:"tier"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// TierClassifier classifies messages into tiers with an ordered rule list.
// The rule list is fixed at construction; the classifier holds no mutable
// state and is safe for concurrent use.
type TierClassifier struct {
	rules       []Rule
	defaultTier Tier
}

// NewTierClassifier builds a classifier from an ordered rule list. An empty
// or invalid default falls back to FREE, the cheapest tier.
func NewTierClassifier(rules []Rule, defaultTier Tier) *TierClassifier {
	if !ValidTier(string(defaultTier)) {
		defaultTier = TierFree
	}
	return &TierClassifier{rules: rules, defaultTier: defaultTier}
}

// DefaultRules is the built-in rule order used when routing.yaml carries
// none. High-stakes wording outranks analytical wording, which outranks the
// narrow-domain topics the cheap models handle fine.
func DefaultRules() []Rule {
	return []Rule{
		{
			Reason: "high_stakes_keyword",
			Tier:   TierCritical,
			Keywords: []string{
				"max bid", "bid recommendation", "auction", "offer price",
				"contract", "legal", "tax", "invest", "mortgage", "negotiate",
			},
		},
		{
			Reason: "analytical_keyword",
			Tier:   TierProduction,
			Keywords: []string{
				"analyze", "compare", "plan", "review", "summarize", "explain why",
				"trade-off", "tradeoff", "pros and cons", "strategy",
			},
		},
		{
			Reason: "narrow_domain_keyword",
			Tier:   TierUltraCheap,
			Keywords: []string{
				"swim", "meal", "calorie", "protein", "task list", "todo",
				"reminder", "grocery", "workout",
			},
		},
	}
}

// Classify returns the routing decision for a transcript. It inspects the
// latest user message; rules are checked in priority order and the first
// match wins. The function is total: no match resolves to the default tier.
func (c *TierClassifier) Classify(messages []session.Message) RoutingDecision {
	var latest string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" && messages[i].Content != "" {
			latest = strings.ToLower(messages[i].Content)
			break
		}
	}

	now := time.Now()
	if latest != "" {
		for _, rule := range c.rules {
			for _, kw := range rule.Keywords {
				if strings.Contains(latest, kw) {
					return RoutingDecision{Tier: rule.Tier, Reason: rule.Reason, Timestamp: now}
				}
			}
		}
	}

	return RoutingDecision{Tier: c.defaultTier, Reason: "default", Timestamp: now}
}
