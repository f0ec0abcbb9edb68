package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type RequestStatus string

const (
	RequestStatusPending         RequestStatus = "pending"
	RequestStatusInTransit       RequestStatus = "in_transit"
	RequestStatusClawedBack      RequestStatus = "clawed_back"
	RequestStatusPartialClawback RequestStatus = "partial_clawback"
	RequestStatusCancelled       RequestStatus = "cancelled"
	RequestStatusCompleted       RequestStatus = "completed"
)

type AutoApprovalStatus string

const (
	AutoApprovalApproved        AutoApprovalStatus = "auto_approved"
	AutoApprovalPendingReview   AutoApprovalStatus = "pending_review"
	AutoApprovalPendingEvidence AutoApprovalStatus = "pending_evidence"
	AutoApprovalFailed          AutoApprovalStatus = "failed"
)

type PayoutMethod string

const (
	PayoutMethodBank   PayoutMethod = "bank"
	PayoutMethodCrypto PayoutMethod = "crypto"
)

type ClawbackStatus string

const (
	ClawbackStatusNone       ClawbackStatus = "none"
	ClawbackStatusClawedBack ClawbackStatus = "clawed_back"
)

// PayoutRequest aggregates locked ledger entries awaiting clearing.
// TotalAmount is fixed at creation.
type PayoutRequest struct {
	ID                 snowflake.ID        `json:"id"`
	UserID             string              `json:"user_id"`
	TotalAmount        decimal.Decimal     `json:"total_amount"`
	Status             RequestStatus       `json:"status"`
	PayoutMethod       PayoutMethod        `json:"payout_method"`
	ClearingEndsAt     time.Time           `json:"clearing_ends_at"`
	AutoApprovalStatus *AutoApprovalStatus `json:"auto_approval_status,omitempty"`
	FraudCheck         datatypes.JSON      `json:"fraud_check,omitempty"`
	EvidenceDeadline   *time.Time          `json:"evidence_deadline,omitempty"`
	RejectionReason    *string             `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func (PayoutRequest) TableName() string { return "submission_payout_requests" }

func (r PayoutRequest) AutoApproval() AutoApprovalStatus {
	if r.AutoApprovalStatus == nil {
		return ""
	}
	return *r.AutoApprovalStatus
}

// PayoutItem is the per-entry line of a payout request. Its clawback state is
// independent of the parent status.
type PayoutItem struct {
	ID                snowflake.ID    `json:"id"`
	PayoutRequestID   snowflake.ID    `json:"payout_request_id"`
	LedgerEntryID     snowflake.ID    `json:"ledger_entry_id"`
	VideoSubmissionID *snowflake.ID   `json:"video_submission_id,omitempty"`
	BoostSubmissionID *snowflake.ID   `json:"boost_submission_id,omitempty"`
	BrandID           *string         `json:"brand_id,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	ClawbackStatus    ClawbackStatus  `json:"clawback_status"`
	ClawbackReason    *string         `json:"clawback_reason,omitempty"`
	ClawedBackAt      *time.Time      `json:"clawed_back_at,omitempty"`
	ClawedBackBy      *string         `json:"clawed_back_by,omitempty"`
	ReleasedAt        *time.Time      `json:"released_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (PayoutItem) TableName() string { return "submission_payout_items" }

// AggregateClawbackStatus derives the parent status from its items.
// ok is false when no item has been clawed back.
func AggregateClawbackStatus(items []PayoutItem) (status RequestStatus, ok bool) {
	if len(items) == 0 {
		return "", false
	}
	clawed := 0
	for _, item := range items {
		if item.ClawbackStatus == ClawbackStatusClawedBack {
			clawed++
		}
	}
	switch {
	case clawed == 0:
		return "", false
	case clawed == len(items):
		return RequestStatusClawedBack, true
	default:
		return RequestStatusPartialClawback, true
	}
}
