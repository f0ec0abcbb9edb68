package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	approvaldomain "github.com/smallbiznis/creatorpay/internal/approval/domain"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	authdomain "github.com/smallbiznis/creatorpay/internal/auth/domain"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	clawbackdomain "github.com/smallbiznis/creatorpay/internal/clawback/domain"
	"github.com/smallbiznis/creatorpay/internal/config"
	frauddomain "github.com/smallbiznis/creatorpay/internal/fraud/domain"
	ledgerdomain "github.com/smallbiznis/creatorpay/internal/ledger/domain"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
	sweeperdomain "github.com/smallbiznis/creatorpay/internal/sweeper/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeVerifier struct{}

func (fakeVerifier) Verify(raw string) (authdomain.Principal, error) {
	switch raw {
	case "creator":
		return authdomain.Principal{Kind: authdomain.PrincipalUser, UserID: "creator-1"}, nil
	case "admin":
		return authdomain.Principal{Kind: authdomain.PrincipalUser, UserID: "admin-1"}, nil
	case "cron":
		return authdomain.Principal{Kind: authdomain.PrincipalCron}, nil
	case "expired":
		return authdomain.Principal{}, authdomain.ErrTokenExpired
	default:
		return authdomain.Principal{}, authdomain.ErrInvalidToken
	}
}

type fakeAuthz map[string]bool

func (f fakeAuthz) Authorize(ctx context.Context, subject, object, action string) error {
	if !f[subject] {
		return authorization.ErrForbidden
	}
	return nil
}

func (f fakeAuthz) Can(ctx context.Context, subject, object, action string) (bool, error) {
	return f[subject], nil
}

type fakeAudit struct {
	auditdomain.Service
	targetID string
	listReq  auditdomain.ListAuditLogRequest
}

func (f *fakeAudit) Trail(ctx context.Context, targetType, targetID string) ([]auditdomain.AuditLog, error) {
	f.targetID = targetID
	return []auditdomain.AuditLog{{ID: 5, ActorType: "system", Action: "payout.evidence_rejected", TargetType: targetType}}, nil
}

func (f *fakeAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	f.listReq = req
	return auditdomain.ListAuditLogResponse{AuditLogs: []auditdomain.AuditLog{}}, nil
}

type fakePayouts struct {
	payoutdomain.Service
	result *payoutdomain.RequestPayoutResult
	err    error
	input  payoutdomain.RequestPayoutInput
}

func (f *fakePayouts) RequestPayout(ctx context.Context, input payoutdomain.RequestPayoutInput) (*payoutdomain.RequestPayoutResult, error) {
	f.input = input
	return f.result, f.err
}

type fakeSweeper struct {
	limit int
}

func (f *fakeSweeper) ProcessEvidenceDeadlines(ctx context.Context, limit int) (*sweeperdomain.Result, error) {
	f.limit = limit
	return &sweeperdomain.Result{RunID: "01J0RUN", Processed: 3, Rejected: 1, Skipped: 1, Errors: []string{"42: boom"}}, nil
}

type fakeClawback struct {
	result *clawbackdomain.Result
	err    error
	input  clawbackdomain.ExecuteInput
}

func (f *fakeClawback) Execute(ctx context.Context, input clawbackdomain.ExecuteInput) (*clawbackdomain.Result, error) {
	f.input = input
	return f.result, f.err
}

type fakeApprovals struct {
	approvaldomain.Service
	detail *approvaldomain.ApprovalDetail
	err    error
}

func (f *fakeApprovals) RequestCryptoPayout(ctx context.Context, input approvaldomain.RequestInput) (*approvaldomain.ApprovalDetail, error) {
	return f.detail, f.err
}

type fakeSubmissions struct {
	submissiondomain.Service
	err error
}

func (f *fakeSubmissions) UpdatePlatformStatus(ctx context.Context, input submissiondomain.UpdatePlatformStatusInput) (*submissiondomain.SubmissionDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &submissiondomain.SubmissionDetail{Submission: submissiondomain.Submission{ID: input.SubmissionID, Status: input.Status}}, nil
}

type fakeEvidence struct{}

func (fakeEvidence) SubmitEvidence(ctx context.Context, input frauddomain.SubmitEvidenceInput) (*frauddomain.Evidence, error) {
	return nil, frauddomain.ErrInvalidEvidence
}

type testServer struct {
	srv       *Server
	payouts   *fakePayouts
	sweeper   *fakeSweeper
	clawback  *fakeClawback
	approvals *fakeApprovals
	subs      *fakeSubmissions
	audit     *fakeAudit
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	cfg := config.Config{}
	cfg.Scheduler.BatchSize = 25

	ts := &testServer{
		payouts:   &fakePayouts{},
		sweeper:   &fakeSweeper{},
		clawback:  &fakeClawback{},
		approvals: &fakeApprovals{},
		subs:      &fakeSubmissions{},
		audit:     &fakeAudit{},
	}
	ts.srv = NewServer(ServerParams{
		Gin:      engine,
		Cfg:      cfg,
		Verifier: fakeVerifier{},
		AuthzSvc: fakeAuthz{
			authorization.UserSubject("admin-1"): true,
			authorization.SubjectCron:            true,
		},
		PayoutSvc:     ts.payouts,
		EvidenceSvc:   fakeEvidence{},
		SweeperSvc:    ts.sweeper,
		ClawbackSvc:   ts.clawback,
		ApprovalSvc:   ts.approvals,
		SubmissionSvc: ts.subs,
		AuditSvc:      ts.audit,
	})
	ts.srv.RegisterRoutes()
	return ts
}

func (ts *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	for _, token := range []string{"", "garbage", "expired"} {
		resp := ts.do(http.MethodPost, "/request-payout", token, "")
		assert.Equal(t, http.StatusUnauthorized, resp.Code, token)
		assert.Equal(t, "unauthorized", decode(t, resp)["error"])
	}

	resp := ts.do(http.MethodPost, "/request-payout", "cron", "")
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestRequestPayout(t *testing.T) {
	ts := newTestServer(t)
	ts.payouts.result = &payoutdomain.RequestPayoutResult{
		ID:             snowflake.ID(42),
		TotalAmount:    decimal.RequireFromString("13"),
		EntriesCount:   2,
		ClearingEndsAt: fixedNow.Add(7 * 24 * time.Hour),
		Status:         payoutdomain.RequestStatusPending,
	}

	resp := ts.do(http.MethodPost, "/request-payout", "creator", `{"sourceType":"campaign","sourceId":"camp-1","videoSubmissionId":"77"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"totalAmount":13.00`)

	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	payout := body["payoutRequest"].(map[string]any)
	assert.Equal(t, "42", payout["id"])
	assert.Equal(t, float64(2), payout["entriesCount"])
	assert.Equal(t, "pending", payout["status"])
	assert.Nil(t, payout["fraudCheck"])

	assert.Equal(t, "creator-1", ts.payouts.input.UserID)
	assert.Equal(t, "camp-1", ts.payouts.input.SourceID)
	require.NotNil(t, ts.payouts.input.VideoSubmissionID)
	assert.Equal(t, snowflake.ID(77), *ts.payouts.input.VideoSubmissionID)
}

func TestRequestPayoutErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{payoutdomain.ErrNoPendingBalance, http.StatusBadRequest, "no_pending_balance"},
		{payoutdomain.ErrConflict, http.StatusConflict, "conflict"},
		{ledgerdomain.ErrEntriesConflict, http.StatusConflict, "conflict"},
		{payoutdomain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{context.DeadlineExceeded, http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ts := newTestServer(t)
			ts.payouts.err = tt.err

			resp := ts.do(http.MethodPost, "/request-payout", "creator", "")
			assert.Equal(t, tt.status, resp.Code)
			assert.Equal(t, tt.code, decode(t, resp)["error"])
		})
	}

	ts := newTestServer(t)
	resp := ts.do(http.MethodPost, "/request-payout", "creator", `{"videoSubmissionId":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "validation_error", decode(t, resp)["error"])
}

func TestProcessEvidenceDeadlines(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/process-evidence-deadlines", "creator", "")
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.do(http.MethodPost, "/process-evidence-deadlines", "cron", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["processed"])
	assert.Equal(t, float64(1), body["rejected"])
	assert.Equal(t, float64(1), body["skipped"])
	assert.Equal(t, []any{"42: boom"}, body["errors"])
	assert.Equal(t, 25, ts.sweeper.limit)

	resp = ts.do(http.MethodPost, "/process-evidence-deadlines", "admin", "")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestExecuteClawback(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/execute-clawback", "admin", `{"reason":"fake views"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "validation_error", decode(t, resp)["error"])

	ts.clawback.err = payoutdomain.ErrNotFound
	resp = ts.do(http.MethodPost, "/execute-clawback", "admin", `{"payout_item_id":"9"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	ts.clawback.err = authorization.ErrForbidden
	resp = ts.do(http.MethodPost, "/execute-clawback", "creator", `{"payout_item_id":"9"}`)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	brand := "brand-9"
	ts.clawback.err = nil
	ts.clawback.result = &clawbackdomain.Result{
		PayoutItemID:   snowflake.ID(9),
		RefundedAmount: decimal.RequireFromString("10"),
		BrandID:        &brand,
		RequestStatus:  payoutdomain.RequestStatusPartialClawback,
	}
	resp = ts.do(http.MethodPost, "/execute-clawback", "admin", `{"payout_item_id":"9","reason":"fake views"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(10), body["refunded_amount"])
	assert.Equal(t, "brand-9", body["brand_id"])
	assert.Equal(t, "admin-1", ts.clawback.input.ActorID)
	assert.Equal(t, "fake views", ts.clawback.input.Reason)
}

func TestRequestCryptoPayout(t *testing.T) {
	ts := newTestServer(t)

	ts.approvals.err = approvaldomain.ErrDuplicateApproval
	resp := ts.do(http.MethodPost, "/request-crypto-payout", "admin", `{"payout_request_id":"5"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "duplicate_approval", decode(t, resp)["error"])

	ts.approvals.err = payoutdomain.ErrInvalidState
	resp = ts.do(http.MethodPost, "/request-crypto-payout", "admin", `{"payout_request_id":"5"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_state", decode(t, resp)["error"])

	ts.approvals.err = nil
	ts.approvals.detail = &approvaldomain.ApprovalDetail{
		Approval: approvaldomain.Approval{
			ID:                snowflake.ID(11),
			Tier:              3,
			RequiredApprovals: 3,
			CurrentApprovals:  1,
			DelayMinutes:      60,
			Status:            approvaldomain.StatusPending,
			ExpiresAt:         fixedNow.Add(24 * time.Hour),
		},
	}
	resp = ts.do(http.MethodPost, "/request-crypto-payout", "admin", `{"payout_request_id":"5"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	body := decode(t, resp)
	assert.Equal(t, "11", body["approval_id"])
	assert.Equal(t, float64(3), body["required_approvals"])
	assert.Equal(t, float64(1), body["current_approvals"])
	assert.Equal(t, float64(3), body["tier"])
	assert.Equal(t, float64(60), body["delay_minutes"])
	assert.Equal(t, false, body["can_execute"])
	assert.Equal(t, "2026-06-02T12:00:00Z", body["expires_at"])
}

func TestSubmissionRoutes(t *testing.T) {
	ts := newTestServer(t)

	ts.subs.err = submissiondomain.ErrMissingPostedURL
	resp := ts.do(http.MethodPatch, "/submissions/3/platforms/tiktok", "admin", `{"status":"posted"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "missing_posted_url", decode(t, resp)["error"])

	ts.subs.err = nil
	resp = ts.do(http.MethodPatch, "/submissions/3/platforms/tiktok", "admin", `{"status":"posted","posted_url":"https://tiktok.com/@a/1"}`)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.do(http.MethodPatch, "/submissions/not-an-id/platforms/tiktok", "admin", `{"status":"posted"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSubmitEvidenceMapsValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/payout-requests/8/evidence", "creator", `{"evidence_type":"selfie","url":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_evidence", decode(t, resp)["error"])
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken("Bearer"))
}

func TestPayoutAuditTrail(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/payout-requests/42/audit-trail", "creator", "")
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.do(http.MethodGet, "/payout-requests/42/audit-trail", "admin", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "42", ts.audit.targetID)
	body := decode(t, resp)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	assert.Equal(t, "payout.evidence_rejected", data[0].(map[string]any)["action"])

	resp = ts.do(http.MethodGet, "/payout-requests/nope/audit-trail", "admin", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListAuditLogsParsesWindow(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/audit-logs?actor_id=admin-2&since=2026-06-01T00:00:00Z", "admin", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "admin-2", ts.audit.listReq.ActorID)
	require.NotNil(t, ts.audit.listReq.Since)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), ts.audit.listReq.Since.UTC())
	assert.Nil(t, ts.audit.listReq.Until)

	resp = ts.do(http.MethodGet, "/audit-logs?until=yesterday", "admin", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "validation_error", decode(t, resp)["error"])
}
