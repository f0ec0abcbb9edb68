package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creatorpay/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const entryColumns = `id, user_id, source_type, source_id, video_submission_id, boost_submission_id,
	platform, accrued_amount, paid_amount, views_snapshot, status, payout_request_id,
	locked_at, clearing_ends_at, created_at, updated_at`

func (r *repo) ListPending(ctx context.Context, db *gorm.DB, filter domain.PendingFilter, forUpdate bool) ([]domain.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM payment_ledger WHERE user_id = ? AND status = ?`
	args := []any{filter.UserID, domain.EntryStatusPending}

	if v := strings.TrimSpace(filter.SourceType); v != "" {
		query += ` AND source_type = ?`
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.SourceID); v != "" {
		query += ` AND source_id = ?`
		args = append(args, v)
	}
	if filter.VideoSubmissionID != nil {
		query += ` AND video_submission_id = ?`
		args = append(args, *filter.VideoSubmissionID)
	}
	if filter.BoostSubmissionID != nil {
		query += ` AND boost_submission_id = ?`
		args = append(args, *filter.BoostSubmissionID)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}

	var entries []domain.Entry
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ListByPayoutRequest(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := db.WithContext(ctx).Raw(
		`SELECT `+entryColumns+`
		 FROM payment_ledger
		 WHERE payout_request_id = ?
		 ORDER BY created_at ASC, id ASC`,
		payoutRequestID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) LockEntries(ctx context.Context, db *gorm.DB, params domain.LockParams) (int64, error) {
	if len(params.IDs) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_ledger
		 SET status = ?, payout_request_id = ?, locked_at = ?, clearing_ends_at = ?, updated_at = ?
		 WHERE id IN ? AND status = ?`,
		domain.EntryStatusLocked,
		params.PayoutRequestID,
		params.LockedAt,
		params.ClearingEndsAt,
		params.LockedAt,
		params.IDs,
		domain.EntryStatusPending,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) UnlockByPayoutRequest(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_ledger
		 SET status = ?, payout_request_id = NULL, locked_at = NULL, clearing_ends_at = NULL, updated_at = ?
		 WHERE payout_request_id = ? AND status = ?`,
		domain.EntryStatusPending,
		now,
		payoutRequestID,
		domain.EntryStatusLocked,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
