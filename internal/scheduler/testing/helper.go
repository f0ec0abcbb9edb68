// Package testing pulls payout deadlines into the past so scheduler jobs pick
// them up without waiting out the real windows.
package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/smallbiznis/creatorpay/internal/approval/domain"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	"gorm.io/gorm"
)

type DeadlineAccelerator struct {
	db *gorm.DB
}

func NewDeadlineAccelerator(db *gorm.DB) *DeadlineAccelerator {
	return &DeadlineAccelerator{db: db}
}

// ExpireEvidenceWindow moves the evidence deadline of one request a minute
// before now.
func (da *DeadlineAccelerator) ExpireEvidenceWindow(ctx context.Context, requestID snowflake.ID, now time.Time) error {
	return da.db.WithContext(ctx).Exec(
		`UPDATE submission_payout_requests
		 SET evidence_deadline = ?, updated_at = ?
		 WHERE id = ? AND auto_approval_status = ?`,
		now.Add(-time.Minute),
		now,
		requestID,
		payoutdomain.AutoApprovalPendingEvidence,
	).Error
}

func (da *DeadlineAccelerator) ExpireAllEvidenceWindows(ctx context.Context, now time.Time) (int64, error) {
	result := da.db.WithContext(ctx).Exec(
		`UPDATE submission_payout_requests
		 SET evidence_deadline = ?, updated_at = ?
		 WHERE auto_approval_status = ? AND evidence_deadline >= ?`,
		now.Add(-time.Minute),
		now,
		payoutdomain.AutoApprovalPendingEvidence,
		now,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExpireApproval makes a pending crypto approval eligible for expiry.
func (da *DeadlineAccelerator) ExpireApproval(ctx context.Context, approvalID snowflake.ID, now time.Time) error {
	return da.db.WithContext(ctx).Exec(
		`UPDATE payout_approvals
		 SET expires_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		now.Add(-time.Minute),
		now,
		approvalID,
		approvaldomain.StatusPending,
	).Error
}
