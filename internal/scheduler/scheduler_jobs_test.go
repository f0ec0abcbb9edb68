package scheduler

import (
	"context"
	"testing"
	"time"

	approvaldomain "github.com/smallbiznis/creatorpay/internal/approval/domain"
	approvalrepo "github.com/smallbiznis/creatorpay/internal/approval/repository"
	approvalservice "github.com/smallbiznis/creatorpay/internal/approval/service"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	"github.com/smallbiznis/creatorpay/internal/clock"
	"github.com/smallbiznis/creatorpay/internal/config"
	fraudrepo "github.com/smallbiznis/creatorpay/internal/fraud/repository"
	ledgerrepo "github.com/smallbiznis/creatorpay/internal/ledger/repository"
	"github.com/smallbiznis/creatorpay/internal/notification"
	payoutrepo "github.com/smallbiznis/creatorpay/internal/payout/repository"
	schedtesting "github.com/smallbiznis/creatorpay/internal/scheduler/testing"
	sweeperservice "github.com/smallbiznis/creatorpay/internal/sweeper/service"
	"github.com/smallbiznis/creatorpay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type subjects map[string]bool

func (s subjects) Authorize(ctx context.Context, subject, object, action string) error {
	if !s[subject] {
		return authorization.ErrForbidden
	}
	return nil
}

func (s subjects) Can(ctx context.Context, subject, object, action string) (bool, error) {
	return s[subject], nil
}

func TestRunOnceSettlesAcceleratedDeadlines(t *testing.T) {
	useTestRegistry(t)
	ctx := context.Background()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC))
	audit := &testutil.AuditRecorder{}
	notifier := &notification.Recorder{}
	authz := subjects{
		authorization.SubjectCron:             true,
		authorization.UserSubject("admin-1"): true,
	}

	approvals := approvalservice.NewService(approvalservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Policy:     config.NewStaticPolicyHolder(config.DefaultPayoutPolicy()),
		Repo:       approvalrepo.Provide(),
		PayoutRepo: payoutrepo.Provide(),
		Authz:      authz,
		AuditSvc:   audit,
		Notifier:   notifier,
	})
	sweeper := sweeperservice.NewService(sweeperservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clk,
		PayoutRepo: payoutrepo.Provide(),
		LedgerRepo: ledgerrepo.Provide(),
		FraudRepo:  fraudrepo.Provide(),
		AuditSvc:   audit,
		Notifier:   notifier,
	})
	s, err := New(Params{
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Sweeper:   sweeper,
		Approvals: approvals,
		AuditSvc:  audit,
		AuthzSvc:  authz,
	})
	require.NoError(t, err)

	deadline := clk.Now().Add(72 * time.Hour)
	evidenceID := testutil.SeedPayoutRequest(t, db, node, testutil.RequestSeed{
		UserID:           "creator-1",
		Total:            "1200",
		AutoApproval:     "pending_evidence",
		EvidenceDeadline: &deadline,
		CreatedAt:        clk.Now(),
	})
	cryptoID := testutil.SeedPayoutRequest(t, db, node, testutil.RequestSeed{
		UserID: "creator-2",
		Total:  "120",
		Method: "crypto",
	})
	opened, err := approvals.RequestCryptoPayout(ctx, approvaldomain.RequestInput{PayoutRequestID: cryptoID, AdminID: "admin-1"})
	require.NoError(t, err)

	// Nothing is due yet.
	require.NoError(t, s.RunOnce(ctx))
	assert.Equal(t, int64(1), testutil.CountRows(t, db,
		`SELECT COUNT(*) FROM submission_payout_requests WHERE id = ? AND auto_approval_status = 'pending_evidence'`, evidenceID))

	accel := schedtesting.NewDeadlineAccelerator(db)
	require.NoError(t, accel.ExpireEvidenceWindow(ctx, evidenceID, clk.Now()))
	require.NoError(t, accel.ExpireApproval(ctx, opened.ID, clk.Now()))

	require.NoError(t, s.RunOnce(ctx))
	assert.Equal(t, int64(1), testutil.CountRows(t, db,
		`SELECT COUNT(*) FROM submission_payout_requests WHERE id = ? AND status = 'cancelled' AND auto_approval_status = 'failed'`, evidenceID))
	assert.Equal(t, int64(1), testutil.CountRows(t, db,
		`SELECT COUNT(*) FROM submission_payout_requests WHERE id = ? AND status = 'pending'`, cryptoID))
	assert.Equal(t, int64(1), testutil.CountRows(t, db,
		`SELECT COUNT(*) FROM payout_approvals WHERE id = ? AND status = 'expired'`, opened.ID))

	assert.True(t, audit.Has("payout.evidence_rejected"))
	assert.True(t, audit.Has("payout.approval_expired"))
	assert.True(t, audit.Has("sweeper.run_completed"))
	assert.Len(t, notifier.OfType(notification.EventEvidenceRejected), 1)
	assert.Len(t, notifier.OfType(notification.EventApprovalExpired), 1)
}
