package service

import (
	"context"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	"github.com/smallbiznis/creatorpay/internal/audit/repository"
	"github.com/smallbiznis/creatorpay/internal/auditcontext"
	"github.com/smallbiznis/creatorpay/internal/clock"
	obscontext "github.com/smallbiznis/creatorpay/internal/observability/context"
	"github.com/smallbiznis/creatorpay/internal/testutil"
	"github.com/smallbiznis/creatorpay/pkg/db/pagination"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock) {
	t.Helper()
	db := testutil.NewDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clk,
		Repo:  repository.Provide(),
	}).(*Service)
	return svc, clk
}

func TestAuditLogUsesContextActorAndMasksSecrets(t *testing.T) {
	svc, _ := newTestService(t)

	ctx := auditcontext.WithActor(context.Background(), "user", "admin-7")
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	ctx = auditcontext.WithIPAddress(ctx, "10.0.0.1")

	target := "42"
	err := svc.AuditLog(ctx, "", nil, "payout.approval_requested", "payout_request", &target, map[string]any{
		"wallet_address": "0x1234567890abcdef",
		"tier":           2,
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{TargetID: "42"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	require.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	require.Equal(t, "admin-7", *entry.ActorID)
	require.Equal(t, "0x****cdef", entry.Metadata["wallet_address"])
	require.Equal(t, "req-1", entry.Metadata["request_id"])
	require.NotNil(t, entry.IPAddress)
}

func TestAuditLogRejectsEmptyAction(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.AuditLog(context.Background(), "system", nil, " ", "payout_request", nil, nil)
	require.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginates(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(ctx, "system", nil, "payout.evidence_rejected", "payout_request", nil, nil))
		clk.Advance(time.Minute)
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "payout.evidence_rejected", Pagination: paginationOf(2, "")})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	require.True(t, first.HasMore)

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "payout.evidence_rejected", Pagination: paginationOf(2, first.NextPageToken)})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	require.False(t, second.HasMore)
}

func paginationOf(size int, token string) pagination.Pagination {
	return pagination.Pagination{PageSize: size, PageToken: token}
}

func TestTrailReturnsTargetHistoryInOrder(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := obscontext.WithRunID(context.Background(), "run-1")
	target := "77"
	other := "78"

	require.NoError(t, svc.AuditLog(ctx, "user", nil, "payout.requested", "payout_request", &target, nil))
	clk.Advance(time.Minute)
	require.NoError(t, svc.AuditLog(ctx, "system", nil, "payout.evidence_rejected", "payout_request", &other, nil))
	clk.Advance(time.Minute)
	require.NoError(t, svc.AuditLog(ctx, "system", nil, "payout.evidence_rejected", "payout_request", &target, nil))

	trail, err := svc.Trail(ctx, "payout_request", "77")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	require.Equal(t, "payout.requested", trail[0].Action)
	require.Equal(t, "payout.evidence_rejected", trail[1].Action)
	require.Equal(t, "run-1", trail[1].Metadata["run_id"])

	empty, err := svc.Trail(ctx, "payout_request", "1")
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	_, err = svc.Trail(ctx, "payout_request", " ")
	require.ErrorIs(t, err, auditdomain.ErrInvalidTarget)
}

func TestListFiltersByActorAndWindow(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	start := clk.Now()
	admin := "admin-1"

	require.NoError(t, svc.AuditLog(ctx, "user", &admin, "payout.approval_voted", "payout_approval", nil, nil))
	clk.Advance(time.Hour)
	require.NoError(t, svc.AuditLog(ctx, "user", &admin, "payout.approval_voted", "payout_approval", nil, nil))
	require.NoError(t, svc.AuditLog(ctx, "cron", nil, "payout.approval_expired", "payout_approval", nil, nil))

	since := start.Add(30 * time.Minute)
	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{ActorID: admin, Since: &since})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	until := start
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{Since: &since, Until: &until})
	require.ErrorIs(t, err, auditdomain.ErrInvalidRange)
}
