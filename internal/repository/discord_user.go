package repository

import (
	"context"
	"errors"

	"socbot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DiscordUserRepository defines persistence operations for verified Discord identities.
type DiscordUserRepository interface {
	Get(ctx context.Context, userID string) (*models.DiscordUser, error)
	EnsureExists(ctx context.Context, userID string) error
	SetRefreshToken(ctx context.Context, userID, refreshToken string) error
}

type discordUserRepository struct {
	db *gorm.DB
}

// NewDiscordUserRepository returns a new DiscordUserRepository implementation.
func NewDiscordUserRepository(db *gorm.DB) DiscordUserRepository {
	return &discordUserRepository{db: db}
}

func (r *discordUserRepository) Get(ctx context.Context, userID string) (*models.DiscordUser, error) {
	var user models.DiscordUser
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// EnsureExists inserts a bare identity row if one is not already present.
// Used on code link so re-links and concurrent identical requests are safe;
// an existing row (with or without a token) is left untouched.
func (r *discordUserRepository) EnsureExists(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.DiscordUser{UserID: userID}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// SetRefreshToken upserts the identity with a freshly rotated refresh token.
func (r *discordUserRepository) SetRefreshToken(ctx context.Context, userID, refreshToken string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"refresh_token": refreshToken}),
	}).Create(&models.DiscordUser{UserID: userID, RefreshToken: &refreshToken}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
