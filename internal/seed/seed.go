package seed

import (
	"log"
	"time"

	"socbot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options configures the seeder.
type Options struct {
	GuildID     string
	NumMembers  int
	ShouldClean bool
}

// Seeder populates a development database with plausible membership data.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db)}
}

// Clear removes all membership rows for the guild.
func (s *Seeder) Clear(guildID string) error {
	return s.db.Where("guild_id = ?", guildID).Delete(&models.Membership{}).Error
}

// Run seeds the guild per the options: ensures the guild row exists, clears
// when asked, inserts generated memberships and stamps the import time.
func (s *Seeder) Run(opts Options) error {
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoNothing: true,
	}).Create(&models.Guild{GuildID: opts.GuildID}).Error; err != nil {
		return err
	}

	if opts.ShouldClean {
		if err := s.Clear(opts.GuildID); err != nil {
			return err
		}
		log.Printf("Cleared memberships for guild %s", opts.GuildID)
	}

	rows, err := s.factory.CreateMemberships(opts.GuildID, opts.NumMembers)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.db.Model(&models.Guild{}).
		Where("guild_id = ?", opts.GuildID).
		Update("members_last_updated", now).Error; err != nil {
		return err
	}

	log.Printf("Seeded %d memberships for guild %s", len(rows), opts.GuildID)
	return nil
}
