package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creatorpay/pkg/db/pagination"
)

// FraudVerdict is the routing decision recorded for a payout request.
type FraudVerdict struct {
	PayoutRequestID    snowflake.ID       `json:"payout_request_id"`
	AutoApprovalStatus AutoApprovalStatus `json:"auto_approval_status"`
	RiskScore          int                `json:"risk_score"`
	Reasons            []string           `json:"reasons"`
	EvidenceDeadline   *time.Time         `json:"evidence_deadline,omitempty"`
	CheckedAt          time.Time          `json:"checked_at"`
}

// FraudGate decides how a freshly created request is routed. Check must be
// idempotent per request id.
type FraudGate interface {
	Check(ctx context.Context, payoutRequestID snowflake.ID) (*FraudVerdict, error)
}

type RequestPayoutInput struct {
	UserID            string
	SourceType        string
	SourceID          string
	VideoSubmissionID *snowflake.ID
	BoostSubmissionID *snowflake.ID
	PayoutMethod      PayoutMethod
}

type RequestPayoutResult struct {
	ID             snowflake.ID
	TotalAmount    decimal.Decimal
	EntriesCount   int
	ClearingEndsAt time.Time
	Status         RequestStatus
	FraudCheck     *FraudVerdict
}

type PayoutRequestDetail struct {
	PayoutRequest
	Items []PayoutItem `json:"items"`
}

type ListPayoutRequestsRequest struct {
	pagination.Pagination
	UserID string
}

type ListPayoutRequestsResponse struct {
	pagination.PageInfo
	PayoutRequests []PayoutRequest `json:"payout_requests"`
}

type Service interface {
	RequestPayout(ctx context.Context, input RequestPayoutInput) (*RequestPayoutResult, error)
	Get(ctx context.Context, actorID string, id snowflake.ID) (*PayoutRequestDetail, error)
	List(ctx context.Context, req ListPayoutRequestsRequest) (ListPayoutRequestsResponse, error)
	Statement(ctx context.Context, actorID string, id snowflake.ID) ([]byte, error)
}
