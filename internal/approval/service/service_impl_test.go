package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creatorpay/internal/approval/domain"
	"github.com/smallbiznis/creatorpay/internal/approval/repository"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	"github.com/smallbiznis/creatorpay/internal/clock"
	"github.com/smallbiznis/creatorpay/internal/config"
	"github.com/smallbiznis/creatorpay/internal/notification"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	payoutrepo "github.com/smallbiznis/creatorpay/internal/payout/repository"
	"github.com/smallbiznis/creatorpay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type admins map[string]bool

func (a admins) Authorize(ctx context.Context, subject, object, action string) error {
	if !a[subject] {
		return authorization.ErrForbidden
	}
	return nil
}

func (a admins) Can(ctx context.Context, subject, object, action string) (bool, error) {
	return a[subject], nil
}

type fixture struct {
	svc      domain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	audit    *testutil.AuditRecorder
	notifier *notification.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 6, 5, 8, 0, 0, 0, time.UTC))
	audit := &testutil.AuditRecorder{}
	notifier := &notification.Recorder{}
	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Policy:     config.NewStaticPolicyHolder(config.DefaultPayoutPolicy()),
		Repo:       repository.Provide(),
		PayoutRepo: payoutrepo.Provide(),
		Authz: admins{
			authorization.UserSubject("admin-1"): true,
			authorization.UserSubject("admin-2"): true,
			authorization.UserSubject("admin-3"): true,
		},
		AuditSvc: audit,
		Notifier: notifier,
	})
	return &fixture{svc: svc, db: db, node: node, clock: clk, audit: audit, notifier: notifier}
}

func (f *fixture) seedCrypto(t *testing.T, total string) snowflake.ID {
	t.Helper()
	return testutil.SeedPayoutRequest(t, f.db, f.node, testutil.RequestSeed{
		UserID: "creator-1",
		Total:  total,
		Method: "crypto",
	})
}

func (f *fixture) requestStatus(t *testing.T, id snowflake.ID) string {
	t.Helper()
	var status string
	require.NoError(t, f.db.Raw(`SELECT status FROM submission_payout_requests WHERE id = ?`, id).Scan(&status).Error)
	return status
}

func TestRequestCryptoPayoutTiers(t *testing.T) {
	tests := []struct {
		amount     string
		tier       int
		required   int
		delay      int
		canExecute bool
		status     domain.Status
	}{
		{"50", 1, 1, 0, true, domain.StatusApproved},
		{"50.01", 2, 2, 0, false, domain.StatusPending},
		{"500.01", 3, 3, 60, false, domain.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			f := newFixture(t)
			requestID := f.seedCrypto(t, tt.amount)

			detail, err := f.svc.RequestCryptoPayout(context.Background(), domain.RequestInput{PayoutRequestID: requestID, AdminID: "admin-1"})
			require.NoError(t, err)
			assert.Equal(t, tt.tier, detail.Tier)
			assert.Equal(t, tt.required, detail.RequiredApprovals)
			assert.Equal(t, 1, detail.CurrentApprovals)
			assert.Equal(t, tt.delay, detail.DelayMinutes)
			assert.Equal(t, tt.canExecute, detail.CanExecute)
			assert.Equal(t, tt.status, detail.Status)
			assert.Equal(t, f.clock.Now().Add(24*time.Hour), detail.ExpiresAt)
			require.Len(t, detail.Votes, 1)
			assert.Equal(t, "admin-1", detail.Votes[0].AdminID)

			assert.Equal(t, "in_transit", f.requestStatus(t, requestID))
			assert.True(t, f.audit.Has("payout.approval_requested"))
			assert.Len(t, f.notifier.OfType(notification.EventApprovalRequested), 1)
		})
	}
}

func TestRequestCryptoPayoutPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bank := testutil.SeedPayoutRequest(t, f.db, f.node, testutil.RequestSeed{UserID: "creator-1", Total: "20"})
	_, err := f.svc.RequestCryptoPayout(ctx, domain.RequestInput{PayoutRequestID: bank, AdminID: "admin-1"})
	assert.ErrorIs(t, err, payoutdomain.ErrInvalidState)

	cancelled := testutil.SeedPayoutRequest(t, f.db, f.node, testutil.RequestSeed{UserID: "creator-1", Total: "20", Method: "crypto", Status: "cancelled"})
	_, err = f.svc.RequestCryptoPayout(ctx, domain.RequestInput{PayoutRequestID: cancelled, AdminID: "admin-1"})
	assert.ErrorIs(t, err, payoutdomain.ErrInvalidState)

	_, err = f.svc.RequestCryptoPayout(ctx, domain.RequestInput{PayoutRequestID: f.node.Generate(), AdminID: "admin-1"})
	assert.ErrorIs(t, err, payoutdomain.ErrNotFound)

	crypto := f.seedCrypto(t, "20")
	_, err = f.svc.RequestCryptoPayout(ctx, domain.RequestInput{PayoutRequestID: crypto, AdminID: "creator-1"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = f.svc.RequestCryptoPayout(ctx, domain.RequestInput{PayoutRequestID: crypto, AdminID: "admin-1"})
	require.NoError(t, err)

	// Put the request back to pending to reach the duplicate check.
	require.NoError(t, f.db.Exec(`UPDATE submission_payout_requests SET status = 'pending' WHERE id = ?`, crypto).Error)
	_, err = f.svc.RequestCryptoPayout(ctx, domain.RequestInput{PayoutRequestID: crypto, AdminID: "admin-2"})
	assert.ErrorIs(t, err, domain.ErrDuplicateApproval)
}

func TestVotesReachQuorum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requestID := f.seedCrypto(t, "900")

	opened, err := f.svc.RequestCryptoPayout(ctx, domain.RequestInput{PayoutRequestID: requestID, AdminID: "admin-1"})
	require.NoError(t, err)

	_, err = f.svc.CastVote(ctx, domain.VoteInput{ApprovalID: opened.ID, AdminID: "admin-1", Vote: domain.VoteApprove})
	assert.ErrorIs(t, err, domain.ErrDuplicateApproval)

	detail, err := f.svc.CastVote(ctx, domain.VoteInput{ApprovalID: opened.ID, AdminID: "admin-2", Vote: domain.VoteApprove, Comment: "checked wallet"})
	require.NoError(t, err)
	assert.Equal(t, 2, detail.CurrentApprovals)
	assert.Equal(t, domain.StatusPending, detail.Status)

	detail, err = f.svc.CastVote(ctx, domain.VoteInput{ApprovalID: opened.ID, AdminID: "admin-3", Vote: domain.VoteApprove})
	require.NoError(t, err)
	assert.Equal(t, 3, detail.CurrentApprovals)
	assert.Equal(t, domain.StatusApproved, detail.Status)
	assert.Len(t, detail.Votes, 3)
	assert.False(t, detail.CanExecute)

	f.clock.Advance(time.Hour)
	got, err := f.svc.Get(ctx, "admin-2", opened.ID)
	require.NoError(t, err)
	assert.True(t, got.CanExecute)

	_, err = f.svc.CastVote(ctx, domain.VoteInput{ApprovalID: opened.ID, AdminID: "admin-2", Vote: domain.VoteReject})
	assert.ErrorIs(t, err, payoutdomain.ErrInvalidState)
	assert.Len(t, f.notifier.OfType(notification.EventApprovalVoted), 2)
}

func TestRejectVoteReturnsRequestToPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requestID := f.seedCrypto(t, "120")

	opened, err := f.svc.RequestCryptoPayout(ctx, domain.RequestInput{PayoutRequestID: requestID, AdminID: "admin-1"})
	require.NoError(t, err)

	detail, err := f.svc.CastVote(ctx, domain.VoteInput{ApprovalID: opened.ID, AdminID: "admin-2", Vote: domain.VoteReject})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, detail.Status)
	assert.False(t, detail.CanExecute)
	assert.Equal(t, "pending", f.requestStatus(t, requestID))

	_, err = f.svc.RequestCryptoPayout(ctx, domain.RequestInput{PayoutRequestID: requestID, AdminID: "admin-2"})
	require.NoError(t, err)
}

func TestExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.seedCrypto(t, "120")
	second := f.seedCrypto(t, "130")

	a, err := f.svc.RequestCryptoPayout(ctx, domain.RequestInput{PayoutRequestID: first, AdminID: "admin-1"})
	require.NoError(t, err)
	b, err := f.svc.RequestCryptoPayout(ctx, domain.RequestInput{PayoutRequestID: second, AdminID: "admin-1"})
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)

	_, err = f.svc.CastVote(ctx, domain.VoteInput{ApprovalID: a.ID, AdminID: "admin-2", Vote: domain.VoteApprove})
	assert.ErrorIs(t, err, payoutdomain.ErrInvalidState)
	assert.Equal(t, "pending", f.requestStatus(t, first))

	expired, err := f.svc.ExpireStale(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, "pending", f.requestStatus(t, second))

	got, err := f.svc.Get(ctx, "admin-1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)

	expired, err = f.svc.ExpireStale(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
	assert.Len(t, f.notifier.OfType(notification.EventApprovalExpired), 2)
}
