package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creatorpay/internal/fraud/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertFlag(ctx context.Context, db *gorm.DB, flag *domain.Flag) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO fraud_flags (
			id, payout_request_id, user_id, flag_type, severity, status, description, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (payout_request_id, flag_type) DO NOTHING`,
		flag.ID,
		flag.PayoutRequestID,
		flag.UserID,
		flag.FlagType,
		flag.Severity,
		flag.Status,
		flag.Description,
		flag.CreatedAt,
		flag.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindOpenFlag(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID) (*domain.Flag, error) {
	var item domain.Flag
	err := db.WithContext(ctx).Raw(
		`SELECT id, payout_request_id, user_id, flag_type, severity, status, description,
			resolution_notes, resolved_at, created_at, updated_at
		 FROM fraud_flags
		 WHERE payout_request_id = ? AND status = ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`,
		payoutRequestID,
		domain.FlagStatusPending,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) CountOpenFlagsForUser(ctx context.Context, db *gorm.DB, userID string, excludeRequestID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM fraud_flags
		 WHERE user_id = ? AND status = ? AND payout_request_id <> ?`,
		userID,
		domain.FlagStatusPending,
		excludeRequestID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) DismissOpenFlags(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID, notes string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE fraud_flags
		 SET status = ?, resolution_notes = ?, resolved_at = ?, updated_at = ?
		 WHERE payout_request_id = ? AND status = ?`,
		domain.FlagStatusDismissed,
		notes,
		now,
		now,
		payoutRequestID,
		domain.FlagStatusPending,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) InsertEvidence(ctx context.Context, db *gorm.DB, evidence *domain.Evidence) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO fraud_evidence (
			id, payout_request_id, fraud_flag_id, user_id, evidence_type, url, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		evidence.ID,
		evidence.PayoutRequestID,
		evidence.FraudFlagID,
		evidence.UserID,
		evidence.EvidenceType,
		evidence.URL,
		evidence.Notes,
		evidence.CreatedAt,
	).Error
}

func (r *repo) CountEvidence(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM fraud_evidence WHERE payout_request_id = ?`,
		payoutRequestID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) ListEvidence(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID) ([]domain.Evidence, error) {
	var items []domain.Evidence
	err := db.WithContext(ctx).Raw(
		`SELECT id, payout_request_id, fraud_flag_id, user_id, evidence_type, url, notes, created_at
		 FROM fraud_evidence
		 WHERE payout_request_id = ?
		 ORDER BY created_at ASC, id ASC`,
		payoutRequestID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) AccountCreatedAt(ctx context.Context, db *gorm.DB, userID string) (*time.Time, error) {
	var row struct {
		CreatedAt *time.Time
	}
	err := db.WithContext(ctx).Raw(
		`SELECT created_at FROM profiles WHERE id = ? LIMIT 1`,
		userID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return row.CreatedAt, nil
}
