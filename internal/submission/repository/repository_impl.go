package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creatorpay/internal/submission/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Submission, error) {
	query := `SELECT id, user_id, brand_id, campaign_id, caption, status, payout_status, is_flagged, created_at, updated_at
		FROM video_submissions
		WHERE id = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}

	var item domain.Submission
	if err := db.WithContext(ctx).Raw(query, id).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListPlatforms(ctx context.Context, db *gorm.DB, submissionID snowflake.ID) ([]domain.Platform, error) {
	var items []domain.Platform
	err := db.WithContext(ctx).Raw(
		`SELECT id, submission_id, platform, status, posted_url, posted_at, updated_at
		 FROM submission_platforms
		 WHERE submission_id = ?
		 ORDER BY platform ASC`,
		submissionID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindPlatform(ctx context.Context, db *gorm.DB, submissionID snowflake.ID, platform string, forUpdate bool) (*domain.Platform, error) {
	query := `SELECT id, submission_id, platform, status, posted_url, posted_at, updated_at
		FROM submission_platforms
		WHERE submission_id = ? AND platform = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}

	var item domain.Platform
	if err := db.WithContext(ctx).Raw(query, submissionID, platform).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdatePlatformStatus(ctx context.Context, db *gorm.DB, update domain.PlatformStatusUpdate) error {
	return db.WithContext(ctx).Exec(
		`UPDATE submission_platforms
		 SET status = ?, posted_url = COALESCE(?, posted_url), posted_at = COALESCE(?, posted_at), updated_at = ?
		 WHERE id = ?`,
		update.Status,
		update.PostedURL,
		update.PostedAt,
		update.UpdatedAt,
		update.PlatformID,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE video_submissions SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		now,
		id,
	).Error
}

func (r *repo) UpdateCaption(ctx context.Context, db *gorm.DB, id snowflake.ID, caption string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE video_submissions SET caption = ?, updated_at = ? WHERE id = ?`,
		caption,
		now,
		id,
	).Error
}

func (r *repo) MarkClawedBack(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE video_submissions
		 SET payout_status = 'clawed_back', is_flagged = ?, updated_at = ?
		 WHERE id = ?`,
		true,
		now,
		id,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
