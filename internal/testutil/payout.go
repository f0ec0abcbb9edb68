package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequestSeed describes a submission_payout_requests row inserted by SeedPayoutRequest.
type RequestSeed struct {
	UserID           string
	Total            string
	Status           string
	Method           string
	AutoApproval     string
	EvidenceDeadline *time.Time
	CreatedAt        time.Time
}

func SeedPayoutRequest(t *testing.T, db *gorm.DB, node *snowflake.Node, seed RequestSeed) snowflake.ID {
	t.Helper()

	if seed.Status == "" {
		seed.Status = "pending"
	}
	if seed.Method == "" {
		seed.Method = "bank"
	}
	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = time.Now().UTC()
	}
	var autoApproval any
	if seed.AutoApproval != "" {
		autoApproval = seed.AutoApproval
	}

	id := node.Generate()
	err := db.Exec(
		`INSERT INTO submission_payout_requests (
			id, user_id, total_amount, status, payout_method, clearing_ends_at,
			auto_approval_status, evidence_deadline, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		seed.UserID,
		decimal.RequireFromString(seed.Total),
		seed.Status,
		seed.Method,
		seed.CreatedAt.AddDate(0, 0, 7),
		autoApproval,
		seed.EvidenceDeadline,
		seed.CreatedAt,
		seed.CreatedAt,
	).Error
	if err != nil {
		t.Fatalf("seed payout request: %v", err)
	}
	return id
}

// SeedPayoutItem links a ledger entry to a request the way the orchestrator does.
func SeedPayoutItem(t *testing.T, db *gorm.DB, node *snowflake.Node, requestID, entryID snowflake.ID, videoSubmissionID *snowflake.ID, brandID, amount string) snowflake.ID {
	t.Helper()

	var brand any
	if brandID != "" {
		brand = brandID
	}
	id := node.Generate()
	err := db.Exec(
		`INSERT INTO submission_payout_items (
			id, payout_request_id, ledger_entry_id, video_submission_id, brand_id, amount, clawback_status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, 'none', ?)`,
		id, requestID, entryID, videoSubmissionID, brand, decimal.RequireFromString(amount), time.Now().UTC(),
	).Error
	if err != nil {
		t.Fatalf("seed payout item: %v", err)
	}
	return id
}
