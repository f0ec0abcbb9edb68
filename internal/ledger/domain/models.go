package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EntryStatus string

const (
	EntryStatusPending EntryStatus = "pending"
	EntryStatusLocked  EntryStatus = "locked"
	EntryStatusPaid    EntryStatus = "paid"
)

type SourceType string

const (
	SourceTypeCampaign SourceType = "campaign"
	SourceTypeBoost    SourceType = "boost"
)

// Entry is one accrual unit for a single submission on a single platform.
type Entry struct {
	ID                snowflake.ID    `json:"id"`
	UserID            string          `json:"user_id"`
	SourceType        SourceType      `json:"source_type"`
	SourceID          *string         `json:"source_id,omitempty"`
	VideoSubmissionID *snowflake.ID   `json:"video_submission_id,omitempty"`
	BoostSubmissionID *snowflake.ID   `json:"boost_submission_id,omitempty"`
	Platform          *string         `json:"platform,omitempty"`
	AccruedAmount     decimal.Decimal `json:"accrued_amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	ViewsSnapshot     int64           `json:"views_snapshot"`
	Status            EntryStatus     `json:"status"`
	PayoutRequestID   *snowflake.ID   `json:"payout_request_id,omitempty"`
	LockedAt          *time.Time      `json:"locked_at,omitempty"`
	ClearingEndsAt    *time.Time      `json:"clearing_ends_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (Entry) TableName() string { return "payment_ledger" }

// Outstanding is accrued minus paid, floored at zero.
func (e Entry) Outstanding() decimal.Decimal {
	out := e.AccruedAmount.Sub(e.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// PendingFilter narrows which pending entries a payout request collects.
// Empty fields match everything for the user.
type PendingFilter struct {
	UserID            string
	SourceType        string
	SourceID          string
	VideoSubmissionID *snowflake.ID
	BoostSubmissionID *snowflake.ID
}

type LockParams struct {
	IDs             []snowflake.ID
	PayoutRequestID snowflake.ID
	LockedAt        time.Time
	ClearingEndsAt  time.Time
}

type Repository interface {
	ListPending(ctx context.Context, db *gorm.DB, filter PendingFilter, forUpdate bool) ([]Entry, error)
	ListByPayoutRequest(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID) ([]Entry, error)
	// LockEntries moves pending entries to locked and reports how many rows changed.
	LockEntries(ctx context.Context, db *gorm.DB, params LockParams) (int64, error)
	// UnlockByPayoutRequest returns a request's locked entries to the accrual pool.
	UnlockByPayoutRequest(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID, now time.Time) (int64, error)
}

var (
	ErrEntriesConflict = errors.New("ledger_entries_conflict")
)

// SumOutstanding totals the outstanding balance of entries rounded to cents.
func SumOutstanding(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Outstanding())
	}
	return total.Round(2)
}
