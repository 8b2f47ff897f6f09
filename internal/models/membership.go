package models

import "time"

// MembershipType classifies who a membership was sold to.
type MembershipType string

const (
	// MembershipTypeStaff is a university staff membership.
	MembershipTypeStaff MembershipType = "staff"
	// MembershipTypeStudent is a student membership.
	MembershipTypeStudent MembershipType = "student"
	// MembershipTypeAlumni is an alumni membership.
	MembershipTypeAlumni MembershipType = "alumni"
	// MembershipTypePublic is a general-public membership.
	MembershipTypePublic MembershipType = "public"
)

// Membership is one paid membership of the society, scoped to a guild and
// keyed by the lowercased email. CasedEmail keeps the display form as it
// appeared in the signup sheet. UserID is set once the member links their
// Discord account and is cleared by an explicit unlink.
type Membership struct {
	GuildID    string         `gorm:"primaryKey;size:32" json:"guild_id"`
	Email      string         `gorm:"primaryKey;size:255" json:"email"`
	CasedEmail string         `gorm:"size:255;not null" json:"cased_email"`
	Name       string         `gorm:"size:255;not null" json:"name"`
	Phone      *string        `gorm:"size:32" json:"phone,omitempty"`
	Type       MembershipType `gorm:"type:varchar(16);not null" json:"type"`
	StartDate  time.Time      `gorm:"type:date;not null" json:"start_date"`
	EndDate    time.Time      `gorm:"type:date;not null" json:"end_date"`
	UserID     *string        `gorm:"size:32;index" json:"user_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Current reports whether the membership is inside the validity window at the
// given instant. Memberships stay valid for one day past their end date so a
// member whose renewal is being processed is not locked out at midnight.
func (m *Membership) Current(now time.Time) bool {
	cutoff := now.AddDate(0, 0, -1)
	return !m.EndDate.Before(cutoff.Truncate(24 * time.Hour))
}
