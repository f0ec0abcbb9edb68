package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Submission struct {
	ID           snowflake.ID `json:"id"`
	UserID       string       `json:"user_id"`
	BrandID      *string      `json:"brand_id,omitempty"`
	CampaignID   *string      `json:"campaign_id,omitempty"`
	Caption      string       `json:"caption"`
	Status       Status       `json:"status"`
	PayoutStatus *string      `json:"payout_status,omitempty"`
	IsFlagged    bool         `json:"is_flagged"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (Submission) TableName() string { return "video_submissions" }

type Platform struct {
	ID           snowflake.ID `json:"id"`
	SubmissionID snowflake.ID `json:"submission_id"`
	Platform     string       `json:"platform"`
	Status       Status       `json:"status"`
	PostedURL    *string      `json:"posted_url,omitempty"`
	PostedAt     *time.Time   `json:"posted_at,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (Platform) TableName() string { return "submission_platforms" }

type SubmissionDetail struct {
	Submission
	Platforms []Platform `json:"platforms"`
}

type PlatformStatusUpdate struct {
	PlatformID snowflake.ID
	Status     Status
	PostedURL  *string
	PostedAt   *time.Time
	UpdatedAt  time.Time
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Submission, error)
	ListPlatforms(ctx context.Context, db *gorm.DB, submissionID snowflake.ID) ([]Platform, error)
	FindPlatform(ctx context.Context, db *gorm.DB, submissionID snowflake.ID, platform string, forUpdate bool) (*Platform, error)
	UpdatePlatformStatus(ctx context.Context, db *gorm.DB, update PlatformStatusUpdate) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, now time.Time) error
	UpdateCaption(ctx context.Context, db *gorm.DB, id snowflake.ID, caption string, now time.Time) error
	// MarkClawedBack flags the submission after one of its payout items was reversed.
	MarkClawedBack(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error)
}

type UpdatePlatformStatusInput struct {
	SubmissionID snowflake.ID
	Platform     string
	Status       Status
	PostedURL    string
	ActorID      string
}

type UpdateCaptionInput struct {
	SubmissionID snowflake.ID
	Caption      string
	ActorID      string
}

type Service interface {
	Get(ctx context.Context, actorID string, id snowflake.ID) (*SubmissionDetail, error)
	UpdatePlatformStatus(ctx context.Context, input UpdatePlatformStatusInput) (*SubmissionDetail, error)
	UpdateCaption(ctx context.Context, input UpdateCaptionInput) (*SubmissionDetail, error)
}

var (
	ErrNotFound          = errors.New("not_found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrMissingPostedURL  = errors.New("missing_posted_url")
	ErrInvalidState      = errors.New("invalid_state")
	ErrInvalidCaption    = errors.New("invalid_caption")
)
