package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PayoutPolicy holds the money-movement constants operators may tune without a deploy.
type PayoutPolicy struct {
	ClearingDays        int            `mapstructure:"clearing_days"`
	EvidenceWindowHours int            `mapstructure:"evidence_window_hours"`
	ApprovalExpiryHours int            `mapstructure:"approval_expiry_hours"`
	ApprovalTiers       []ApprovalTier `mapstructure:"approval_tiers"`
	Fraud               FraudPolicy    `mapstructure:"fraud"`
}

// ApprovalTier is one row of the crypto payout approval table. An empty MaxAmount is unbounded.
type ApprovalTier struct {
	MaxAmount         string `mapstructure:"max_amount"`
	RequiredApprovals int    `mapstructure:"required_approvals"`
	DelayMinutes      int    `mapstructure:"delay_minutes"`
}

type FraudPolicy struct {
	ReviewAmount      string `mapstructure:"review_amount"`
	EvidenceAmount    string `mapstructure:"evidence_amount"`
	MinAccountAgeDays int    `mapstructure:"min_account_age_days"`
}

func DefaultPayoutPolicy() PayoutPolicy {
	return PayoutPolicy{
		ClearingDays:        7,
		EvidenceWindowHours: 48,
		ApprovalExpiryHours: 24,
		ApprovalTiers: []ApprovalTier{
			{MaxAmount: "50", RequiredApprovals: 1, DelayMinutes: 0},
			{MaxAmount: "500", RequiredApprovals: 2, DelayMinutes: 0},
			{MaxAmount: "", RequiredApprovals: 3, DelayMinutes: 60},
		},
		Fraud: FraudPolicy{
			ReviewAmount:      "250",
			EvidenceAmount:    "1000",
			MinAccountAgeDays: 3,
		},
	}
}

func (p PayoutPolicy) ClearingPeriod() time.Duration {
	return time.Duration(p.ClearingDays) * 24 * time.Hour
}

func (p PayoutPolicy) EvidenceWindow() time.Duration {
	return time.Duration(p.EvidenceWindowHours) * time.Hour
}

func (p PayoutPolicy) ApprovalExpiry() time.Duration {
	return time.Duration(p.ApprovalExpiryHours) * time.Hour
}

type PolicyHolder struct {
	current atomic.Value // holds PayoutPolicy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(policy PayoutPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewPolicyHolder(log *zap.Logger) (*PolicyHolder, error) {
	log = log.Named("config.policy")
	v := viper.New()

	v.SetConfigName("payout")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/creatorpay/config")
	v.AddConfigPath("/etc/creatorpay")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CREATORPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	policy := DefaultPayoutPolicy()
	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fromFile = false
	}
	if fromFile {
		loaded, err := decodePolicy(v)
		if err != nil {
			return nil, err
		}
		policy = loaded
	}
	if err := ValidatePayoutPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !fromFile {
		log.Info("payout policy file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePolicy(v)
		if err != nil {
			log.Warn("payout policy reload failed", zap.Error(err))
			return
		}
		if err := ValidatePayoutPolicy(updated); err != nil {
			log.Warn("invalid payout policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("payout policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() PayoutPolicy {
	return h.current.Load().(PayoutPolicy)
}

func decodePolicy(v *viper.Viper) (PayoutPolicy, error) {
	policy := DefaultPayoutPolicy()
	if err := v.UnmarshalKey("payout", &policy); err != nil {
		return PayoutPolicy{}, err
	}
	return policy, nil
}

func ValidatePayoutPolicy(p PayoutPolicy) error {
	if p.ClearingDays <= 0 {
		return errors.New("payout.clearing_days must be positive")
	}
	if p.EvidenceWindowHours <= 0 {
		return errors.New("payout.evidence_window_hours must be positive")
	}
	if p.ApprovalExpiryHours <= 0 {
		return errors.New("payout.approval_expiry_hours must be positive")
	}
	if len(p.ApprovalTiers) == 0 {
		return errors.New("payout.approval_tiers cannot be empty")
	}

	prev := decimal.Zero
	for i, tier := range p.ApprovalTiers {
		if tier.RequiredApprovals < 1 {
			return fmt.Errorf("payout.approval_tiers[%d].required_approvals must be at least 1", i)
		}
		if tier.DelayMinutes < 0 {
			return fmt.Errorf("payout.approval_tiers[%d].delay_minutes cannot be negative", i)
		}
		last := i == len(p.ApprovalTiers)-1
		raw := strings.TrimSpace(tier.MaxAmount)
		if raw == "" {
			if !last {
				return fmt.Errorf("payout.approval_tiers[%d] is unbounded but not last", i)
			}
			continue
		}
		max, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("payout.approval_tiers[%d].max_amount: %w", i, err)
		}
		if !max.GreaterThan(prev) {
			return fmt.Errorf("payout.approval_tiers[%d].max_amount must be ascending", i)
		}
		prev = max
	}
	if strings.TrimSpace(p.ApprovalTiers[len(p.ApprovalTiers)-1].MaxAmount) != "" {
		return errors.New("payout.approval_tiers must end with an unbounded tier")
	}

	for name, raw := range map[string]string{
		"review_amount":   p.Fraud.ReviewAmount,
		"evidence_amount": p.Fraud.EvidenceAmount,
	} {
		if _, err := decimal.NewFromString(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("payout.fraud.%s: %w", name, err)
		}
	}
	return nil
}
