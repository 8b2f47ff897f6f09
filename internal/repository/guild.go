package repository

import (
	"context"
	"errors"
	"time"

	"socbot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GuildRepository defines persistence operations for per-guild configuration.
type GuildRepository interface {
	Get(ctx context.Context, guildID string) (*models.Guild, error)
	EnsureExists(ctx context.Context, guildID string) error
	SetMemberRole(ctx context.Context, guildID string, roleID *string) error
	TouchMembersUpdated(ctx context.Context, guildID string) error
}

type guildRepository struct {
	db *gorm.DB
}

// NewGuildRepository returns a new GuildRepository implementation.
func NewGuildRepository(db *gorm.DB) GuildRepository {
	return &guildRepository{db: db}
}

func (r *guildRepository) Get(ctx context.Context, guildID string) (*models.Guild, error) {
	var guild models.Guild
	err := r.db.WithContext(ctx).Where("guild_id = ?", guildID).First(&guild).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &guild, nil
}

func (r *guildRepository) EnsureExists(ctx context.Context, guildID string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoNothing: true,
	}).Create(&models.Guild{GuildID: guildID}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// SetMemberRole upserts the guild row with the given member role. A nil
// roleID clears the role, disabling grants.
func (r *guildRepository) SetMemberRole(ctx context.Context, guildID string, roleID *string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"member_role_id": roleID}),
	}).Create(&models.Guild{GuildID: guildID, MemberRoleID: roleID}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *guildRepository) TouchMembersUpdated(ctx context.Context, guildID string) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).
		Model(&models.Guild{}).
		Where("guild_id = ?", guildID).
		Update("members_last_updated", now).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
