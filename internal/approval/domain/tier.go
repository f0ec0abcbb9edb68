package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creatorpay/internal/config"
)

// Tier is one row of the approval table. A nil MaxAmount is unbounded.
type Tier struct {
	Level             int
	MaxAmount         *decimal.Decimal
	RequiredApprovals int
	Delay             time.Duration
}

// TiersFromPolicy parses the configured tier table, keeping its order.
func TiersFromPolicy(rows []config.ApprovalTier) ([]Tier, error) {
	tiers := make([]Tier, 0, len(rows))
	for i, row := range rows {
		tier := Tier{
			Level:             i + 1,
			RequiredApprovals: row.RequiredApprovals,
			Delay:             time.Duration(row.DelayMinutes) * time.Minute,
		}
		if raw := strings.TrimSpace(row.MaxAmount); raw != "" {
			max, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("approval tier %d: %w", i+1, err)
			}
			tier.MaxAmount = &max
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}

// SelectTier returns the first tier whose MaxAmount covers amount. ok is false
// only when the table has no unbounded tier and amount exceeds every bound.
func SelectTier(tiers []Tier, amount decimal.Decimal) (Tier, bool) {
	for _, tier := range tiers {
		if tier.MaxAmount == nil || amount.LessThanOrEqual(*tier.MaxAmount) {
			return tier, true
		}
	}
	return Tier{}, false
}
