package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Tier keys
const (
	TierFree    = "free"
	TierPro     = "pro"
	TierPremium = "premium"
)

// Tier is a subscription plan bounding inventory size and trend insights
type Tier struct {
	Key              string          `json:"tier"`
	Name             string          `json:"name"`
	MaxCards         int             `json:"max_cards"`
	MaxTrendInsights int             `json:"max_trend_insights"`
	Price            decimal.Decimal `json:"price"`
	PricePeriod      string          `json:"price_period"`
}

// TierTable is an immutable lookup of subscription tiers by key
type TierTable struct {
	tiers map[string]Tier
}

// NewTierTable builds a table from the given tiers. Later duplicates win.
func NewTierTable(tiers ...Tier) TierTable {
	m := make(map[string]Tier, len(tiers))
	for _, t := range tiers {
		m[t.Key] = t
	}
	return TierTable{tiers: m}
}

// DefaultTiers returns the product's plan catalogue
func DefaultTiers() TierTable {
	return NewTierTable(
		Tier{Key: TierFree, Name: "Free", MaxCards: 100, MaxTrendInsights: 3, Price: decimal.Zero, PricePeriod: "month"},
		Tier{Key: TierPro, Name: "Pro", MaxCards: 1000, MaxTrendInsights: 20, Price: decimal.RequireFromString("9.99"), PricePeriod: "month"},
		Tier{Key: TierPremium, Name: "Premium", MaxCards: 10000, MaxTrendInsights: 100, Price: decimal.RequireFromString("19.99"), PricePeriod: "month"},
	)
}

// Lookup returns the tier for key and whether it exists
func (t TierTable) Lookup(key string) (Tier, bool) {
	tier, ok := t.tiers[key]
	return tier, ok
}

// Resolve returns the tier for key. Unknown keys resolve to the free tier,
// or to the most restrictive tier when the table has no free tier.
func (t TierTable) Resolve(key string) Tier {
	if tier, ok := t.tiers[key]; ok {
		return tier
	}
	if tier, ok := t.tiers[TierFree]; ok {
		return tier
	}
	var fallback Tier
	first := true
	for _, tier := range t.tiers {
		if first || tier.MaxCards < fallback.MaxCards {
			fallback = tier
			first = false
		}
	}
	return fallback
}

// All returns every tier ordered by card ceiling
func (t TierTable) All() []Tier {
	out := make([]Tier, 0, len(t.tiers))
	for _, tier := range t.tiers {
		out = append(out, tier)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MaxCards == out[j].MaxCards {
			return out[i].Key < out[j].Key
		}
		return out[i].MaxCards < out[j].MaxCards
	})
	return out
}
