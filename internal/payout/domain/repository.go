package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creatorpay/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ListRequestFilter struct {
	UserID string
	Cursor *RequestCursor
	Limit  int
}

type RequestCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type AutoApprovalUpdate struct {
	ID               snowflake.ID
	Status           AutoApprovalStatus
	FraudCheck       datatypes.JSON
	EvidenceDeadline *time.Time
	UpdatedAt        time.Time
}

type ClawbackMark struct {
	ItemID   snowflake.ID
	Reason   *string
	ActorID  string
	ClawedAt time.Time
}

type Repository interface {
	InsertRequest(ctx context.Context, db *gorm.DB, req *PayoutRequest) error
	FindRequestByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*PayoutRequest, error)
	ListRequestsByUser(ctx context.Context, db *gorm.DB, filter ListRequestFilter) ([]*PayoutRequest, error)
	UpdateAutoApproval(ctx context.Context, db *gorm.DB, update AutoApprovalUpdate) error
	// UpdateStatus transitions a request only from one of the allowed statuses.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []RequestStatus, to RequestStatus, now time.Time) (int64, error)

	// ListExpiredEvidence claims requests whose evidence window closed before now.
	ListExpiredEvidence(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]PayoutRequest, error)
	// MoveEvidenceToReview and RejectForMissingEvidence only touch rows still in pending_evidence.
	MoveEvidenceToReview(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error)
	RejectForMissingEvidence(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) (int64, error)

	InsertItem(ctx context.Context, db *gorm.DB, item *PayoutItem) error
	ListItemsByRequest(ctx context.Context, db *gorm.DB, requestID snowflake.ID) ([]PayoutItem, error)
	FindItemByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*PayoutItem, error)
	MarkItemClawedBack(ctx context.Context, db *gorm.DB, mark ClawbackMark) (int64, error)
	ReleaseItems(ctx context.Context, db *gorm.DB, requestID snowflake.ID, now time.Time) (int64, error)

	// BrandsForSubmissions maps video submission ids to the paying brand, skipping unbranded ones.
	BrandsForSubmissions(ctx context.Context, db *gorm.DB, submissionIDs []snowflake.ID) (map[snowflake.ID]string, error)
}

// CursorFromPage converts a decoded page token to a request cursor.
func CursorFromPage(c *pagination.Cursor) (*RequestCursor, error) {
	if c == nil {
		return nil, nil
	}
	id, err := snowflake.ParseString(c.ID)
	if err != nil || id == 0 {
		return nil, pagination.ErrInvalidPageToken
	}
	return &RequestCursor{ID: id, CreatedAt: c.CreatedAt}, nil
}
