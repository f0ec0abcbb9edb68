package notification

import (
	"context"

	"gorm.io/gorm"
)

// ProfileResolver reads contact details from profiles.
type ProfileResolver struct {
	db *gorm.DB
}

func NewProfileResolver(db *gorm.DB) *ProfileResolver {
	return &ProfileResolver{db: db}
}

func (r *ProfileResolver) Resolve(ctx context.Context, userID string) (*Recipient, error) {
	var row struct {
		ID        string
		Username  *string
		Email     *string
		DiscordID *string
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, username, email, discord_id
		 FROM profiles
		 WHERE id = ?
		 LIMIT 1`,
		userID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	return &Recipient{
		UserID:    row.ID,
		Username:  deref(row.Username),
		Email:     deref(row.Email),
		DiscordID: deref(row.DiscordID),
	}, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
