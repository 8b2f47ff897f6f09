// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"socbot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MembershipStat is one row of the anonymised membership breakdown.
type MembershipStat struct {
	Type      models.MembershipType `json:"type"`
	StartDate time.Time             `json:"date"`
}

// MembershipRepository defines persistence operations for memberships.
// Lookups that find nothing return (nil, nil); errors are infrastructure
// failures only.
type MembershipRepository interface {
	GetCurrentByEmail(ctx context.Context, guildID, email string) (*models.Membership, error)
	GetCurrentByUser(ctx context.Context, guildID, userID string) (*models.Membership, error)
	Link(ctx context.Context, guildID, email, userID string) error
	Unlink(ctx context.Context, guildID, userID string) error
	BulkUpsert(ctx context.Context, guildID string, rows []models.Membership) (int64, error)
	DeleteByGuild(ctx context.Context, guildID string) error
	CurrentStats(ctx context.Context, guildID string) ([]MembershipStat, error)
}

type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository returns a new MembershipRepository implementation.
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

// currencyCutoff is "today minus one day": a membership stays usable for a
// day past its end date so renewals in flight do not lock members out.
func currencyCutoff() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

func (r *membershipRepository) GetCurrentByEmail(ctx context.Context, guildID, email string) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND email = ? AND end_date >= ?", guildID, strings.ToLower(email), currencyCutoff()).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &membership, nil
}

func (r *membershipRepository) GetCurrentByUser(ctx context.Context, guildID, userID string) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ? AND end_date >= ?", guildID, userID, currencyCutoff()).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &membership, nil
}

func (r *membershipRepository) Link(ctx context.Context, guildID, email, userID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("guild_id = ? AND email = ?", guildID, strings.ToLower(email)).
		Update("user_id", userID)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewAppError(models.CodeMembershipNotFound, "Membership not found, if you have recently signed up please let us know and we'll update the database")
	}
	return nil
}

func (r *membershipRepository) Unlink(ctx context.Context, guildID, userID string) error {
	// Idempotent: matching nothing is a no-op, not an error.
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Update("user_id", nil).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *membershipRepository) BulkUpsert(ctx context.Context, guildID string, rows []models.Membership) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var updated int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			rows[i].GuildID = guildID
			rows[i].Email = strings.ToLower(rows[i].CasedEmail)

			result := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "guild_id"}, {Name: "email"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"cased_email", "name", "phone", "type", "end_date", "updated_at",
				}),
			}).Create(&rows[i])
			if result.Error != nil {
				return result.Error
			}
			updated += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return updated, nil
}

func (r *membershipRepository) DeleteByGuild(ctx context.Context, guildID string) error {
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Delete(&models.Membership{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *membershipRepository) CurrentStats(ctx context.Context, guildID string) ([]MembershipStat, error) {
	var stats []MembershipStat
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Select("type", "start_date").
		Where("guild_id = ? AND end_date >= ?", guildID, currencyCutoff().AddDate(0, 0, 1)).
		Find(&stats).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return stats, nil
}
