package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TransactionType string

const (
	BrandTransactionClawbackRefund TransactionType = "clawback_refund"
	CreatorTransactionClawback     TransactionType = "clawback"
)

// BrandTransaction is an append-only brand wallet movement. Balances are
// aggregated elsewhere from these rows.
type BrandTransaction struct {
	ID          snowflake.ID      `json:"id"`
	BrandID     string            `json:"brand_id"`
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Description *string           `json:"description,omitempty"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedBy   *string           `json:"created_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (BrandTransaction) TableName() string { return "brand_wallet_transactions" }

// CreatorTransaction is a line on the creator's personal wallet log.
type CreatorTransaction struct {
	ID          snowflake.ID      `json:"id"`
	UserID      string            `json:"user_id"`
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Description *string           `json:"description,omitempty"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (CreatorTransaction) TableName() string { return "wallet_transactions" }

type Repository interface {
	InsertBrandTransaction(ctx context.Context, db *gorm.DB, tx *BrandTransaction) error
	InsertCreatorTransaction(ctx context.Context, db *gorm.DB, tx *CreatorTransaction) error
	ListBrandTransactions(ctx context.Context, db *gorm.DB, brandID string) ([]BrandTransaction, error)
	ListCreatorTransactions(ctx context.Context, db *gorm.DB, userID string) ([]CreatorTransaction, error)
}
