package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/creatorpay/internal/clock"
	"github.com/smallbiznis/creatorpay/internal/config"
	"github.com/smallbiznis/creatorpay/internal/fraud/domain"
	fraudrepo "github.com/smallbiznis/creatorpay/internal/fraud/repository"
	"github.com/smallbiznis/creatorpay/internal/notification"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	payoutrepo "github.com/smallbiznis/creatorpay/internal/payout/repository"
	"github.com/smallbiznis/creatorpay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc      *Service
	db       *gorm.DB
	clock    *clock.FakeClock
	audit    *testutil.AuditRecorder
	notifier *notification.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC))
	audit := &testutil.AuditRecorder{}
	rec := &notification.Recorder{}
	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      testutil.NewNode(t),
		Clock:      clk,
		Policy:     config.NewStaticPolicyHolder(config.DefaultPayoutPolicy()),
		Repo:       fraudrepo.Provide(),
		PayoutRepo: payoutrepo.Provide(),
		AuditSvc:   audit,
		Notifier:   rec,
	})
	return fixture{svc: svc, db: db, clock: clk, audit: audit, notifier: rec}
}

func TestCheckAutoApprovesSmallRequest(t *testing.T) {
	f := newFixture(t)
	node := testutil.NewNode(t)
	testutil.SeedProfile(t, f.db, "creator-1", "c1@example.com", "", f.clock.Now().AddDate(-1, 0, 0))
	id := testutil.SeedPayoutRequest(t, f.db, node, testutil.RequestSeed{UserID: "creator-1", Total: "13.00"})

	verdict, err := f.svc.Check(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, payoutdomain.AutoApprovalApproved, verdict.AutoApprovalStatus)
	assert.Equal(t, scoreClean, verdict.RiskScore)
	assert.Nil(t, verdict.EvidenceDeadline)
	assert.Zero(t, testutil.CountRows(t, f.db, `SELECT COUNT(1) FROM fraud_flags`))
}

func TestCheckHighValueRequiresEvidenceAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	node := testutil.NewNode(t)
	id := testutil.SeedPayoutRequest(t, f.db, node, testutil.RequestSeed{UserID: "creator-1", Total: "1000"})

	first, err := f.svc.Check(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, payoutdomain.AutoApprovalPendingEvidence, first.AutoApprovalStatus)
	require.NotNil(t, first.EvidenceDeadline)
	assert.True(t, first.EvidenceDeadline.Equal(f.clock.Now().Add(48*time.Hour)))

	f.clock.Advance(time.Hour)
	second, err := f.svc.Check(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first.AutoApprovalStatus, second.AutoApprovalStatus)
	assert.Equal(t, first.RiskScore, second.RiskScore)
	assert.True(t, first.EvidenceDeadline.Equal(*second.EvidenceDeadline))
	assert.EqualValues(t, 1, testutil.CountRows(t, f.db,
		`SELECT COUNT(1) FROM fraud_flags WHERE payout_request_id = ? AND flag_type = ?`, id, domain.FlagTypeHighValue))
}

func TestCheckRoutesNewAccountsToReview(t *testing.T) {
	f := newFixture(t)
	node := testutil.NewNode(t)
	testutil.SeedProfile(t, f.db, "creator-new", "", "", f.clock.Now().Add(-24*time.Hour))
	id := testutil.SeedPayoutRequest(t, f.db, node, testutil.RequestSeed{UserID: "creator-new", Total: "20"})

	verdict, err := f.svc.Check(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, payoutdomain.AutoApprovalPendingReview, verdict.AutoApprovalStatus)
	assert.Equal(t, scoreReview, verdict.RiskScore)
}

func TestCheckRepeatFlagTakesPrecedence(t *testing.T) {
	f := newFixture(t)
	node := testutil.NewNode(t)
	earlier := testutil.SeedPayoutRequest(t, f.db, node, testutil.RequestSeed{UserID: "creator-1", Total: "300"})
	_, err := f.svc.Check(context.Background(), earlier)
	require.NoError(t, err)

	id := testutil.SeedPayoutRequest(t, f.db, node, testutil.RequestSeed{UserID: "creator-1", Total: "5000"})
	verdict, err := f.svc.Check(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, payoutdomain.AutoApprovalPendingReview, verdict.AutoApprovalStatus)
	assert.Equal(t, scoreRepeatFlag, verdict.RiskScore)
	assert.Len(t, verdict.Reasons, 2)
	assert.EqualValues(t, 1, testutil.CountRows(t, f.db,
		`SELECT COUNT(1) FROM fraud_flags WHERE payout_request_id = ? AND flag_type = ?`, id, domain.FlagTypeRepeat))
}

func TestCheckUnknownRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Check(context.Background(), testutil.NewNode(t).Generate())
	assert.ErrorIs(t, err, payoutdomain.ErrNotFound)
}

func TestSubmitEvidence(t *testing.T) {
	f := newFixture(t)
	node := testutil.NewNode(t)
	ctx := context.Background()
	id := testutil.SeedPayoutRequest(t, f.db, node, testutil.RequestSeed{UserID: "creator-1", Total: "1500"})
	_, err := f.svc.Check(ctx, id)
	require.NoError(t, err)

	_, err = f.svc.SubmitEvidence(ctx, domain.SubmitEvidenceInput{
		PayoutRequestID: id, UserID: "creator-1", EvidenceType: "selfie", URL: "https://example.com/a.png",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEvidence)

	_, err = f.svc.SubmitEvidence(ctx, domain.SubmitEvidenceInput{
		PayoutRequestID: id, UserID: "creator-1", EvidenceType: domain.EvidenceTypeScreenshot, URL: "ftp://example.com/a.png",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEvidence)

	_, err = f.svc.SubmitEvidence(ctx, domain.SubmitEvidenceInput{
		PayoutRequestID: id, UserID: "someone-else", EvidenceType: domain.EvidenceTypeScreenshot, URL: "https://example.com/a.png",
	})
	assert.ErrorIs(t, err, payoutdomain.ErrNotFound)

	evidence, err := f.svc.SubmitEvidence(ctx, domain.SubmitEvidenceInput{
		PayoutRequestID: id,
		UserID:          "creator-1",
		EvidenceType:    domain.EvidenceTypeAnalyticsExport,
		URL:             " https://example.com/stats.csv ",
		Notes:           "tiktok analytics",
	})
	require.NoError(t, err)
	require.NotNil(t, evidence.FraudFlagID)
	assert.Equal(t, "https://example.com/stats.csv", evidence.URL)
	assert.True(t, f.audit.Has("payout.evidence_submitted"))
	assert.Len(t, f.notifier.OfType(notification.EventEvidenceSubmitted), 1)
}

func TestSubmitEvidenceRequiresPendingEvidence(t *testing.T) {
	f := newFixture(t)
	node := testutil.NewNode(t)
	id := testutil.SeedPayoutRequest(t, f.db, node, testutil.RequestSeed{UserID: "creator-1", Total: "10", AutoApproval: "auto_approved"})

	_, err := f.svc.SubmitEvidence(context.Background(), domain.SubmitEvidenceInput{
		PayoutRequestID: id, UserID: "creator-1", EvidenceType: domain.EvidenceTypeOther, URL: "https://example.com/x",
	})
	assert.ErrorIs(t, err, payoutdomain.ErrInvalidState)
}
