package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type FlagStatus string

const (
	FlagStatusPending   FlagStatus = "pending"
	FlagStatusDismissed FlagStatus = "dismissed"
	FlagStatusConfirmed FlagStatus = "confirmed"
)

type FlagType string

const (
	FlagTypeRepeat         FlagType = "repeat_flag"
	FlagTypeHighValue      FlagType = "high_value"
	FlagTypeReviewRequired FlagType = "review_required"
)

type EvidenceType string

const (
	EvidenceTypeScreenshot      EvidenceType = "screenshot"
	EvidenceTypeAnalyticsExport EvidenceType = "analytics_export"
	EvidenceTypeScreenRecording EvidenceType = "screen_recording"
	EvidenceTypeOther           EvidenceType = "other"
)

func (t EvidenceType) Valid() bool {
	switch t {
	case EvidenceTypeScreenshot, EvidenceTypeAnalyticsExport, EvidenceTypeScreenRecording, EvidenceTypeOther:
		return true
	}
	return false
}

type Flag struct {
	ID              snowflake.ID `json:"id"`
	PayoutRequestID snowflake.ID `json:"payout_request_id"`
	UserID          string       `json:"user_id"`
	FlagType        FlagType     `json:"flag_type"`
	Severity        string       `json:"severity"`
	Status          FlagStatus   `json:"status"`
	Description     *string      `json:"description,omitempty"`
	ResolutionNotes *string      `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (Flag) TableName() string { return "fraud_flags" }

type Evidence struct {
	ID              snowflake.ID  `json:"id"`
	PayoutRequestID snowflake.ID  `json:"payout_request_id"`
	FraudFlagID     *snowflake.ID `json:"fraud_flag_id,omitempty"`
	UserID          string        `json:"user_id"`
	EvidenceType    EvidenceType  `json:"evidence_type"`
	URL             string        `json:"url"`
	Notes           *string       `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

func (Evidence) TableName() string { return "fraud_evidence" }

type Repository interface {
	// InsertFlag ignores a second flag of the same type on the same request.
	InsertFlag(ctx context.Context, db *gorm.DB, flag *Flag) (bool, error)
	FindOpenFlag(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID) (*Flag, error)
	CountOpenFlagsForUser(ctx context.Context, db *gorm.DB, userID string, excludeRequestID snowflake.ID) (int64, error)
	DismissOpenFlags(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID, notes string, now time.Time) (int64, error)

	InsertEvidence(ctx context.Context, db *gorm.DB, evidence *Evidence) error
	CountEvidence(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID) (int64, error)
	ListEvidence(ctx context.Context, db *gorm.DB, payoutRequestID snowflake.ID) ([]Evidence, error)

	// AccountCreatedAt returns the profile creation time, or nil when no profile exists.
	AccountCreatedAt(ctx context.Context, db *gorm.DB, userID string) (*time.Time, error)
}

type SubmitEvidenceInput struct {
	PayoutRequestID snowflake.ID
	UserID          string
	EvidenceType    EvidenceType
	URL             string
	Notes           string
}

type EvidenceService interface {
	SubmitEvidence(ctx context.Context, input SubmitEvidenceInput) (*Evidence, error)
}

var (
	ErrInvalidEvidence = errors.New("invalid_evidence")
)
