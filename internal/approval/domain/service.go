package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type RequestInput struct {
	PayoutRequestID snowflake.ID
	AdminID         string
}

type VoteInput struct {
	ApprovalID snowflake.ID
	AdminID    string
	Vote       VoteChoice
	Comment    string
}

type ApprovalDetail struct {
	Approval
	Votes      []Vote `json:"votes"`
	CanExecute bool   `json:"can_execute"`
}

type Service interface {
	// RequestCryptoPayout opens an approval for a pending crypto request and
	// casts the requesting admin's vote.
	RequestCryptoPayout(ctx context.Context, input RequestInput) (*ApprovalDetail, error)
	CastVote(ctx context.Context, input VoteInput) (*ApprovalDetail, error)
	Get(ctx context.Context, actorID string, id snowflake.ID) (*ApprovalDetail, error)
	// ExpireStale expires pending approvals past their deadline and returns
	// their requests to pending.
	ExpireStale(ctx context.Context, limit int) (int, error)
}

