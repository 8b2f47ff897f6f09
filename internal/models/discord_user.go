package models

import "time"

// DiscordUser is a Discord identity the bot has verified, created either on a
// successful OAuth handshake or on a first code link (with no token yet).
// RefreshToken is only present once the user has completed the OAuth flow and
// rotates every time a refresh grant succeeds.
type DiscordUser struct {
	UserID       string    `gorm:"primaryKey;size:32" json:"user_id"`
	RefreshToken *string   `gorm:"size:512" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
