package repository

import (
	"context"

	"github.com/smallbiznis/creatorpay/internal/wallet/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBrandTransaction(ctx context.Context, db *gorm.DB, tx *domain.BrandTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO brand_wallet_transactions (
			id, brand_id, type, amount, description, metadata, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.BrandID,
		tx.Type,
		tx.Amount,
		tx.Description,
		tx.Metadata,
		tx.CreatedBy,
		tx.CreatedAt,
	).Error
}

func (r *repo) InsertCreatorTransaction(ctx context.Context, db *gorm.DB, tx *domain.CreatorTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO wallet_transactions (
			id, user_id, type, amount, description, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.UserID,
		tx.Type,
		tx.Amount,
		tx.Description,
		tx.Metadata,
		tx.CreatedAt,
	).Error
}

func (r *repo) ListBrandTransactions(ctx context.Context, db *gorm.DB, brandID string) ([]domain.BrandTransaction, error) {
	var items []domain.BrandTransaction
	err := db.WithContext(ctx).
		Where("brand_id = ?", brandID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListCreatorTransactions(ctx context.Context, db *gorm.DB, userID string) ([]domain.CreatorTransaction, error) {
	var items []domain.CreatorTransaction
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
