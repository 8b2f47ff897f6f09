package models

import "time"

// Guild holds per-server bot configuration. MemberRoleID controls which role
// the synchronizer grants after a successful link; nil disables role grants.
type Guild struct {
	GuildID               string     `gorm:"primaryKey;size:32" json:"guild_id"`
	MemberRoleID          *string    `gorm:"size:32" json:"member_role_id,omitempty"`
	AnnouncementChannelID *string    `gorm:"size:32" json:"announcement_channel_id,omitempty"`
	MembersLastUpdated    *time.Time `json:"members_last_updated,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}
