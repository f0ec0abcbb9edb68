package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
)

type ExecuteInput struct {
	PayoutItemID snowflake.ID
	Reason       string
	ActorID      string
}

// Result reports what the clawback moved. RefundedAmount is zero when no
// paying brand could be resolved for the item.
type Result struct {
	PayoutItemID    snowflake.ID               `json:"payout_item_id"`
	PayoutRequestID snowflake.ID               `json:"payout_request_id"`
	RefundedAmount  decimal.Decimal            `json:"refunded_amount"`
	BrandID         *string                    `json:"brand_id"`
	RequestStatus   payoutdomain.RequestStatus `json:"request_status"`
}

type Service interface {
	Execute(ctx context.Context, input ExecuteInput) (*Result, error)
}
