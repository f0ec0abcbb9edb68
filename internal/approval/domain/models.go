package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

type VoteChoice string

const (
	VoteApprove VoteChoice = "approve"
	VoteReject  VoteChoice = "reject"
)

func (v VoteChoice) Valid() bool {
	return v == VoteApprove || v == VoteReject
}

// Approval gates a crypto payout behind a tier-dependent number of admin votes.
type Approval struct {
	ID                snowflake.ID    `json:"id"`
	PayoutRequestID   snowflake.ID    `json:"payout_request_id"`
	Amount            decimal.Decimal `json:"amount"`
	Tier              int             `json:"tier"`
	RequiredApprovals int             `json:"required_approvals"`
	CurrentApprovals  int             `json:"current_approvals"`
	DelayMinutes      int             `json:"delay_minutes"`
	Status            Status          `json:"status"`
	RequestedBy       string          `json:"requested_by"`
	ExpiresAt         time.Time       `json:"expires_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (Approval) TableName() string { return "payout_approvals" }

// CanExecute reports whether the payout may move funds at now.
func (a Approval) CanExecute(now time.Time) bool {
	if a.Status != StatusApproved || a.CurrentApprovals < a.RequiredApprovals {
		return false
	}
	return !now.Before(a.CreatedAt.Add(time.Duration(a.DelayMinutes) * time.Minute))
}

type Vote struct {
	ID         snowflake.ID `json:"id"`
	ApprovalID snowflake.ID `json:"approval_id"`
	AdminID    string       `json:"admin_id"`
	Vote       VoteChoice   `json:"vote"`
	Comment    *string      `json:"comment,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

func (Vote) TableName() string { return "approval_votes" }

type ApprovalProgress struct {
	ID               snowflake.ID
	CurrentApprovals int
	Status           Status
	UpdatedAt        time.Time
}

type Repository interface {
	InsertApproval(ctx context.Context, db *gorm.DB, approval *Approval) error
	FindApprovalByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Approval, error)
	// FindOpenByRequest returns the pending or approved approval of a request, if any.
	FindOpenByRequest(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID) (*Approval, error)
	// UpdateProgress only touches approvals that are still pending.
	UpdateProgress(ctx context.Context, db *gorm.DB, progress ApprovalProgress) (int64, error)
	ListExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Approval, error)

	InsertVote(ctx context.Context, db *gorm.DB, vote *Vote) error
	HasVoted(ctx context.Context, db *gorm.DB, approvalID snowflake.ID, adminID string) (bool, error)
	ListVotes(ctx context.Context, db *gorm.DB, approvalID snowflake.ID) ([]Vote, error)
}

var (
	ErrDuplicateApproval = errors.New("duplicate_approval")
	ErrInvalidVote       = errors.New("invalid_vote")
)
