package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creatorpay/internal/ledger/domain"
	"github.com/smallbiznis/creatorpay/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestLockAndUnlockRoundTrip(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	ctx := context.Background()
	repo := Provide()

	first := testutil.SeedLedgerEntry(t, db, node, testutil.LedgerSeed{UserID: "creator-1", Accrued: "10"})
	second := testutil.SeedLedgerEntry(t, db, node, testutil.LedgerSeed{UserID: "creator-1", Accrued: "5", Paid: "2", SourceID: "camp-9"})
	testutil.SeedLedgerEntry(t, db, node, testutil.LedgerSeed{UserID: "creator-2", Accrued: "7"})

	pending, err := repo.ListPending(ctx, db, domain.PendingFilter{UserID: "creator-1"}, true)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	filtered, err := repo.ListPending(ctx, db, domain.PendingFilter{UserID: "creator-1", SourceID: "camp-9"}, false)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, second, filtered[0].ID)

	// Request rows are referenced by payout_request_id.
	requestID := node.Generate()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.Exec(
		`INSERT INTO submission_payout_requests (id, user_id, total_amount, status, clearing_ends_at, created_at, updated_at)
		 VALUES (?, 'creator-1', 13, 'pending', ?, ?, ?)`,
		requestID, now.AddDate(0, 0, 7), now, now,
	).Error)

	locked, err := repo.LockEntries(ctx, db, domain.LockParams{
		IDs:             []snowflake.ID{first, second},
		PayoutRequestID: requestID,
		LockedAt:        now,
		ClearingEndsAt:  now.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, locked)

	again, err := repo.LockEntries(ctx, db, domain.LockParams{IDs: []snowflake.ID{first}, PayoutRequestID: requestID, LockedAt: now, ClearingEndsAt: now})
	require.NoError(t, err)
	require.Zero(t, again)

	byRequest, err := repo.ListByPayoutRequest(ctx, db, requestID)
	require.NoError(t, err)
	require.Len(t, byRequest, 2)
	for _, entry := range byRequest {
		require.Equal(t, domain.EntryStatusLocked, entry.Status)
		require.NotNil(t, entry.ClearingEndsAt)
	}

	unlocked, err := repo.UnlockByPayoutRequest(ctx, db, requestID, now.Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 2, unlocked)

	pending, err = repo.ListPending(ctx, db, domain.PendingFilter{UserID: "creator-1"}, false)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, entry := range pending {
		require.Nil(t, entry.PayoutRequestID)
		require.Nil(t, entry.LockedAt)
		require.Nil(t, entry.ClearingEndsAt)
	}
}
