package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creatorpay/internal/approval/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const approvalColumns = `id, payout_request_id, amount, tier, required_approvals, current_approvals,
	delay_minutes, status, requested_by, expires_at, created_at, updated_at`

func (r *repo) InsertApproval(ctx context.Context, db *gorm.DB, approval *domain.Approval) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payout_approvals (
			id, payout_request_id, amount, tier, required_approvals, current_approvals,
			delay_minutes, status, requested_by, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		approval.ID,
		approval.PayoutRequestID,
		approval.Amount,
		approval.Tier,
		approval.RequiredApprovals,
		approval.CurrentApprovals,
		approval.DelayMinutes,
		approval.Status,
		approval.RequestedBy,
		approval.ExpiresAt,
		approval.CreatedAt,
		approval.UpdatedAt,
	).Error
}

func (r *repo) FindApprovalByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Approval, error) {
	query := `SELECT ` + approvalColumns + `
		FROM payout_approvals
		WHERE id = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}

	var item domain.Approval
	if err := db.WithContext(ctx).Raw(query, id).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindOpenByRequest(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID) (*domain.Approval, error) {
	var item domain.Approval
	err := db.WithContext(ctx).Raw(
		`SELECT `+approvalColumns+`
		 FROM payout_approvals
		 WHERE payout_request_id = ? AND status IN ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		payoutRequestID,
		[]domain.Status{domain.StatusPending, domain.StatusApproved},
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateProgress(ctx context.Context, db *gorm.DB, progress domain.ApprovalProgress) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payout_approvals
		 SET current_approvals = ?, status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		progress.CurrentApprovals,
		progress.Status,
		progress.UpdatedAt,
		progress.ID,
		domain.StatusPending,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) ListExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Approval, error) {
	query := `SELECT ` + approvalColumns + `
		FROM payout_approvals
		WHERE status = ? AND expires_at < ?
		ORDER BY expires_at ASC, id ASC`
	args := []any{domain.StatusPending, now}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if db.Dialector.Name() == "postgres" {
		query += ` FOR UPDATE SKIP LOCKED`
	}

	var items []domain.Approval
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertVote(ctx context.Context, db *gorm.DB, vote *domain.Vote) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO approval_votes (id, approval_id, admin_id, vote, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		vote.ID,
		vote.ApprovalID,
		vote.AdminID,
		vote.Vote,
		vote.Comment,
		vote.CreatedAt,
	).Error
}

func (r *repo) HasVoted(ctx context.Context, db *gorm.DB, approvalID snowflake.ID, adminID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM approval_votes WHERE approval_id = ? AND admin_id = ?`,
		approvalID,
		adminID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListVotes(ctx context.Context, db *gorm.DB, approvalID snowflake.ID) ([]domain.Vote, error) {
	var items []domain.Vote
	err := db.WithContext(ctx).Raw(
		`SELECT id, approval_id, admin_id, vote, comment, created_at
		 FROM approval_votes
		 WHERE approval_id = ?
		 ORDER BY created_at ASC, id ASC`,
		approvalID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
