package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSumOutstandingFloorsEachEntry(t *testing.T) {
	entries := []Entry{
		{AccruedAmount: decimal.RequireFromString("10"), PaidAmount: decimal.Zero},
		{AccruedAmount: decimal.RequireFromString("5"), PaidAmount: decimal.RequireFromString("2")},
		{AccruedAmount: decimal.RequireFromString("1"), PaidAmount: decimal.RequireFromString("4")},
	}

	total := SumOutstanding(entries)
	require.Equal(t, "13.00", total.StringFixed(2))
}

func TestSumOutstandingRoundsToCents(t *testing.T) {
	entries := []Entry{
		{AccruedAmount: decimal.RequireFromString("0.005"), PaidAmount: decimal.Zero},
		{AccruedAmount: decimal.RequireFromString("0.001"), PaidAmount: decimal.Zero},
	}
	require.Equal(t, "0.01", SumOutstanding(entries).StringFixed(2))
}
