// Package discord wraps the discordgo session for role synchronization.
package discord

import (
	"context"
	"errors"

	"socbot/internal/models"
	"socbot/internal/observability"

	"github.com/bwmarrin/discordgo"
)

// guildSession is the slice of the Discord session the synchronizer needs.
type guildSession interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// RoleSynchronizer grants and revokes the configured member role. All of its
// failures are reported to the orchestrator as warnings; a failed grant never
// rolls back a completed link.
type RoleSynchronizer struct {
	session guildSession
}

// NewRoleSynchronizer returns a RoleSynchronizer using the given session.
func NewRoleSynchronizer(session guildSession) *RoleSynchronizer {
	return &RoleSynchronizer{session: session}
}

// Grant adds the role to the user in the guild. The member and role are
// resolved first so the caller gets a specific failure rather than a bare
// REST error.
func (r *RoleSynchronizer) Grant(ctx context.Context, guildID, userID, roleID string) error {
	if _, err := r.session.GuildMember(guildID, userID, discordgo.WithContext(ctx)); err != nil {
		return mapRESTError(err, models.CodeMemberNotFound, "Member is no longer in the guild")
	}

	roles, err := r.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return mapRESTError(err, models.CodeRoleNotFound, "Could not fetch guild roles")
	}
	if !containsRole(roles, roleID) {
		return models.NewAppError(models.CodeRoleNotFound, "The configured member role no longer exists")
	}

	if err := r.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		observability.RoleSyncFailures.WithLabelValues(models.ErrorCode(err)).Inc()
		return mapRESTError(err, models.CodePermissionDenied, "The bot is not allowed to assign the member role")
	}
	return nil
}

// Revoke removes the role from the user in the guild.
func (r *RoleSynchronizer) Revoke(ctx context.Context, guildID, userID, roleID string) error {
	if err := r.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		observability.RoleSyncFailures.WithLabelValues(models.ErrorCode(err)).Inc()
		return mapRESTError(err, models.CodePermissionDenied, "The bot is not allowed to remove the member role")
	}
	return nil
}

func containsRole(roles []*discordgo.Role, roleID string) bool {
	for _, role := range roles {
		if role.ID == roleID {
			return true
		}
	}
	return false
}

// mapRESTError turns Discord REST error codes into the application taxonomy.
// Anything unrecognized falls back to the provided default code.
func mapRESTError(err error, fallbackCode, fallbackMessage string) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
			return &models.AppError{Code: models.CodeMemberNotFound, Message: "Member is no longer in the guild", Err: err}
		case discordgo.ErrCodeUnknownRole:
			return &models.AppError{Code: models.CodeRoleNotFound, Message: "The configured member role no longer exists", Err: err}
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return &models.AppError{Code: models.CodePermissionDenied, Message: "The bot is missing permissions for this action", Err: err}
		}
	}
	return &models.AppError{Code: fallbackCode, Message: fallbackMessage, Err: err}
}
