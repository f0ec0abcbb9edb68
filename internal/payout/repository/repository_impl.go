package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creatorpay/internal/payout/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const requestColumns = `id, user_id, total_amount, status, payout_method, clearing_ends_at,
	auto_approval_status, fraud_check, evidence_deadline, rejection_reason, created_at, updated_at`

const itemColumns = `id, payout_request_id, ledger_entry_id, video_submission_id, boost_submission_id,
	brand_id, amount, clawback_status, clawback_reason, clawed_back_at, clawed_back_by, released_at, created_at`

func (r *repo) InsertRequest(ctx context.Context, db *gorm.DB, req *domain.PayoutRequest) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO submission_payout_requests (
			id, user_id, total_amount, status, payout_method, clearing_ends_at,
			auto_approval_status, evidence_deadline, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID,
		req.UserID,
		req.TotalAmount,
		req.Status,
		req.PayoutMethod,
		req.ClearingEndsAt,
		req.AutoApprovalStatus,
		req.EvidenceDeadline,
		req.CreatedAt,
		req.UpdatedAt,
	).Error
}

func (r *repo) FindRequestByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.PayoutRequest, error) {
	query := `SELECT ` + requestColumns + `
		FROM submission_payout_requests
		WHERE id = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}

	var item domain.PayoutRequest
	if err := db.WithContext(ctx).Raw(query, id).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListRequestsByUser(ctx context.Context, db *gorm.DB, filter domain.ListRequestFilter) ([]*domain.PayoutRequest, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.PayoutRequest{}).
		Where("user_id = ?", filter.UserID)
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}
	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var items []*domain.PayoutRequest
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateAutoApproval(ctx context.Context, db *gorm.DB, update domain.AutoApprovalUpdate) error {
	return db.WithContext(ctx).Exec(
		`UPDATE submission_payout_requests
		 SET auto_approval_status = ?, fraud_check = ?, evidence_deadline = ?, updated_at = ?
		 WHERE id = ?`,
		update.Status,
		update.FraudCheck,
		update.EvidenceDeadline,
		update.UpdatedAt,
		update.ID,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.RequestStatus, to domain.RequestStatus, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE submission_payout_requests
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status IN ?`,
		to,
		now,
		id,
		from,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) ListExpiredEvidence(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.PayoutRequest, error) {
	query := `SELECT ` + requestColumns + `
		FROM submission_payout_requests
		WHERE auto_approval_status = ? AND evidence_deadline < ?
		ORDER BY evidence_deadline ASC, id ASC`
	args := []any{domain.AutoApprovalPendingEvidence, now}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if db.Dialector.Name() == "postgres" {
		query += ` FOR UPDATE SKIP LOCKED`
	}

	var items []domain.PayoutRequest
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MoveEvidenceToReview(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE submission_payout_requests
		 SET auto_approval_status = ?, updated_at = ?
		 WHERE id = ? AND auto_approval_status = ?`,
		domain.AutoApprovalPendingReview,
		now,
		id,
		domain.AutoApprovalPendingEvidence,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) RejectForMissingEvidence(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE submission_payout_requests
		 SET status = ?, auto_approval_status = ?, rejection_reason = ?, updated_at = ?
		 WHERE id = ? AND auto_approval_status = ?`,
		domain.RequestStatusCancelled,
		domain.AutoApprovalFailed,
		reason,
		now,
		id,
		domain.AutoApprovalPendingEvidence,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.PayoutItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO submission_payout_items (
			id, payout_request_id, ledger_entry_id, video_submission_id, boost_submission_id,
			brand_id, amount, clawback_status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.PayoutRequestID,
		item.LedgerEntryID,
		item.VideoSubmissionID,
		item.BoostSubmissionID,
		item.BrandID,
		item.Amount,
		item.ClawbackStatus,
		item.CreatedAt,
	).Error
}

func (r *repo) ListItemsByRequest(ctx context.Context, db *gorm.DB, requestID snowflake.ID) ([]domain.PayoutItem, error) {
	var items []domain.PayoutItem
	err := db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+`
		 FROM submission_payout_items
		 WHERE payout_request_id = ?
		 ORDER BY created_at ASC, id ASC`,
		requestID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindItemByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.PayoutItem, error) {
	query := `SELECT ` + itemColumns + `
		FROM submission_payout_items
		WHERE id = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}

	var item domain.PayoutItem
	if err := db.WithContext(ctx).Raw(query, id).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkItemClawedBack(ctx context.Context, db *gorm.DB, mark domain.ClawbackMark) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE submission_payout_items
		 SET clawback_status = ?, clawback_reason = ?, clawed_back_at = ?, clawed_back_by = ?
		 WHERE id = ? AND clawback_status = ?`,
		domain.ClawbackStatusClawedBack,
		mark.Reason,
		mark.ClawedAt,
		mark.ActorID,
		mark.ItemID,
		domain.ClawbackStatusNone,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) ReleaseItems(ctx context.Context, db *gorm.DB, requestID snowflake.ID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE submission_payout_items
		 SET released_at = ?
		 WHERE payout_request_id = ? AND released_at IS NULL`,
		now,
		requestID,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) BrandsForSubmissions(ctx context.Context, db *gorm.DB, submissionIDs []snowflake.ID) (map[snowflake.ID]string, error) {
	out := make(map[snowflake.ID]string, len(submissionIDs))
	if len(submissionIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ID      snowflake.ID
		BrandID *string
	}
	err := db.WithContext(ctx).Raw(
		`SELECT id, brand_id
		 FROM video_submissions
		 WHERE id IN ?`,
		submissionIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.BrandID != nil && *row.BrandID != "" {
			out[row.ID] = *row.BrandID
		}
	}
	return out, nil
}
