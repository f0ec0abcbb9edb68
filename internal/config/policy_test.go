package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPayoutPolicyIsValid(t *testing.T) {
	policy := DefaultPayoutPolicy()
	assert.NoError(t, ValidatePayoutPolicy(policy))
	assert.Equal(t, 7*24, int(policy.ClearingPeriod().Hours()))
	assert.Equal(t, 48, int(policy.EvidenceWindow().Hours()))
	assert.Equal(t, 24, int(policy.ApprovalExpiry().Hours()))
}

func TestValidatePayoutPolicyRejectsBadTiers(t *testing.T) {
	cases := map[string][]ApprovalTier{
		"empty":         {},
		"not_ascending": {{MaxAmount: "500", RequiredApprovals: 1}, {MaxAmount: "50", RequiredApprovals: 2}, {RequiredApprovals: 3}},
		"bounded_last":  {{MaxAmount: "50", RequiredApprovals: 1}, {MaxAmount: "500", RequiredApprovals: 2}},
		"unbounded_mid": {{MaxAmount: "", RequiredApprovals: 1}, {MaxAmount: "500", RequiredApprovals: 2}},
		"zero_votes":    {{MaxAmount: "50", RequiredApprovals: 0}, {RequiredApprovals: 3}},
		"bad_amount":    {{MaxAmount: "fifty", RequiredApprovals: 1}, {RequiredApprovals: 3}},
	}
	for name, tiers := range cases {
		t.Run(name, func(t *testing.T) {
			policy := DefaultPayoutPolicy()
			policy.ApprovalTiers = tiers
			assert.Error(t, ValidatePayoutPolicy(policy))
		})
	}
}

func TestStaticPolicyHolder(t *testing.T) {
	policy := DefaultPayoutPolicy()
	policy.ClearingDays = 3
	holder := NewStaticPolicyHolder(policy)
	assert.Equal(t, 3, holder.Get().ClearingDays)
}
