// Package seed provides helpers to create development and demo membership
// data. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"socbot/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Factory builds membership rows and persists them to the database.
type Factory struct {
	db  *gorm.DB
	rng *rand.Rand
	seq int
}

// NewFactory creates a Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{
		db:  db,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// membershipTypes is weighted roughly like a real student society.
var membershipTypes = []models.MembershipType{
	models.MembershipTypeStudent, models.MembershipTypeStudent,
	models.MembershipTypeStudent, models.MembershipTypeStudent,
	models.MembershipTypeAlumni, models.MembershipTypeAlumni,
	models.MembershipTypeStaff,
	models.MembershipTypePublic,
}

// BuildMembership constructs an unpersisted membership row for the guild.
// Roughly one in five rows is expired so seeded data exercises the currency
// window.
func (f *Factory) BuildMembership(guildID string, overrides ...func(*models.Membership)) *models.Membership {
	firstName := gofakeit.FirstName()
	lastName := gofakeit.LastName()

	// Sequence suffix keeps the (guild, email) key unique across a batch.
	f.seq++
	casedEmail := fmt.Sprintf("%s.%s%d@example.edu", firstName, lastName, f.seq)

	start := time.Now().UTC().AddDate(0, -f.rng.Intn(18), 0).Truncate(24 * time.Hour)
	end := start.AddDate(1, 0, 0)
	if f.rng.Intn(5) == 0 {
		end = time.Now().UTC().AddDate(0, 0, -1-f.rng.Intn(180))
	}

	m := &models.Membership{
		GuildID:    guildID,
		Email:      strings.ToLower(casedEmail),
		CasedEmail: casedEmail,
		Name:       firstName + " " + lastName,
		Type:       membershipTypes[f.rng.Intn(len(membershipTypes))],
		StartDate:  start,
		EndDate:    end,
	}
	if f.rng.Intn(3) != 0 {
		phone := gofakeit.Phone()
		m.Phone = &phone
	}

	for _, override := range overrides {
		override(m)
	}
	return m
}

// CreateMemberships persists n generated rows for the guild in one batch.
func (f *Factory) CreateMemberships(guildID string, n int) ([]models.Membership, error) {
	rows := make([]models.Membership, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, *f.BuildMembership(guildID))
	}

	if err := f.db.CreateInBatches(&rows, 100).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
