// Package testutil opens migrated in-memory databases for package tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creatorpay/internal/migration"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	dbSeq   atomic.Int64
	nodeSeq atomic.Int64
)

// NewDB returns a fresh shared-cache in-memory sqlite database with the payout schema applied.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migration.RunMigrations(context.Background(), conn); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// NewNode returns a snowflake node for test row ids. Every call gets its own
// node number so ids from different nodes never collide.
func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(nodeSeq.Add(1) % 1024)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	return node
}

// LedgerSeed describes a payment_ledger row inserted by SeedLedgerEntry.
type LedgerSeed struct {
	UserID            string
	SourceType        string
	SourceID          string
	VideoSubmissionID *snowflake.ID
	Accrued           string
	Paid              string
	Status            string
}

func SeedLedgerEntry(t *testing.T, db *gorm.DB, node *snowflake.Node, seed LedgerSeed) snowflake.ID {
	t.Helper()

	if seed.SourceType == "" {
		seed.SourceType = "campaign"
	}
	if seed.Paid == "" {
		seed.Paid = "0"
	}
	if seed.Status == "" {
		seed.Status = "pending"
	}
	id := node.Generate()
	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO payment_ledger (
			id, user_id, source_type, source_id, video_submission_id,
			accrued_amount, paid_amount, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		seed.UserID,
		seed.SourceType,
		seed.SourceID,
		seed.VideoSubmissionID,
		decimal.RequireFromString(seed.Accrued),
		decimal.RequireFromString(seed.Paid),
		seed.Status,
		now,
		now,
	).Error
	if err != nil {
		t.Fatalf("seed ledger entry: %v", err)
	}
	return id
}

func SeedProfile(t *testing.T, db *gorm.DB, userID, email, discordID string, createdAt time.Time) {
	t.Helper()
	err := db.Exec(
		`INSERT INTO profiles (id, username, email, discord_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, userID, email, discordID, createdAt.UTC(),
	).Error
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func SeedRole(t *testing.T, db *gorm.DB, node *snowflake.Node, userID, role string) {
	t.Helper()
	err := db.Exec(
		`INSERT INTO user_roles (id, user_id, role, created_at) VALUES (?, ?, ?, ?)`,
		node.Generate(), userID, role, time.Now().UTC(),
	).Error
	if err != nil {
		t.Fatalf("seed role: %v", err)
	}
}

// SeedVideoSubmission inserts a submission with one pending row per platform.
func SeedVideoSubmission(t *testing.T, db *gorm.DB, node *snowflake.Node, userID, brandID string, platforms ...string) snowflake.ID {
	t.Helper()
	id := node.Generate()
	now := time.Now().UTC()
	var brand any
	if brandID != "" {
		brand = brandID
	}
	if err := db.Exec(
		`INSERT INTO video_submissions (id, user_id, brand_id, caption, status, is_flagged, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'pending', ?, ?, ?)`,
		id, userID, brand, "first cut", false, now, now,
	).Error; err != nil {
		t.Fatalf("seed submission: %v", err)
	}
	for _, platform := range platforms {
		if err := db.Exec(
			`INSERT INTO submission_platforms (id, submission_id, platform, status, updated_at)
			 VALUES (?, ?, ?, 'pending', ?)`,
			node.Generate(), id, platform, now,
		).Error; err != nil {
			t.Fatalf("seed platform: %v", err)
		}
	}
	return id
}

func CountRows(t *testing.T, db *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.Raw(query, args...).Scan(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
