// Package bot implements the Discord interaction layer: the /membership
// slash command, the verification button and the code entry modal, all
// mapped onto the membership service.
package bot

import (
	"context"

	"socbot/internal/models"
	"socbot/internal/observability"
	"socbot/internal/service"

	"github.com/bwmarrin/discordgo"
)

// Component custom IDs. The verify button and its modals live on persistent
// messages, so these are part of the bot's wire surface and must stay stable.
const (
	verifyButtonID = "membership-verify"
	codeButtonID   = "membership-enter-code"
	emailModalID   = "membership-email-modal"
	codeModalID    = "membership-code-modal"
	emailInputID   = "email"
	codeInputID    = "code"
)

// interactionResponder is the slice of discordgo.Session the handlers use to
// answer interactions.
type interactionResponder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// membershipService is what the interaction layer needs from the service.
type membershipService interface {
	RequestLink(ctx context.Context, guildID, email, userID string) error
	RedeemLink(ctx context.Context, guildID, code, userID string) (*service.LinkResult, error)
	Unlink(ctx context.Context, guildID, userID string) error
	HasMembershipEmail(ctx context.Context, guildID, email string) (*models.Membership, error)
	HasMembershipDiscord(ctx context.Context, guildID, userID string) (*models.Membership, error)
	SetMemberRole(ctx context.Context, guildID, roleID string) error
	UnsetMemberRole(ctx context.Context, guildID string) error
	ImportMembers(ctx context.Context, guildID, csvURL string) (int64, error)
	ClearMemberships(ctx context.Context, guildID string) error
	AnonymisedStats(ctx context.Context, guildID string) (*service.AnonymisedReport, error)
}

// Bot dispatches Discord interactions to the membership service.
type Bot struct {
	responder interactionResponder
	service   membershipService
	authURL   string
	logger    *observability.Logger
}

// New returns a Bot answering interactions through the given responder.
// authURL is the public URL of the OAuth begin endpoint, shown to users
// after a successful link.
func New(responder interactionResponder, svc membershipService, authURL string) *Bot {
	return &Bot{
		responder: responder,
		service:   svc,
		authURL:   authURL,
		logger:    observability.Component("bot"),
	}
}

// Commands returns the application command set to register.
func Commands() []*discordgo.ApplicationCommand {
	adminOnly := int64(discordgo.PermissionAdministrator)

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "membership",
			Description:              "Membership verification and administration",
			DefaultMemberPermissions: nil,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "link",
					Description: "Link your membership by email",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "email",
							Description: "The email you signed up with",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "code",
					Description: "Enter the verification code you were emailed",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "code",
							Description: "The verification code",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "unlink",
					Description: "Unlink your membership from this Discord account",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "has",
					Description: "Check whether a user has a current membership",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionUser,
							Name:        "user",
							Description: "User to check (defaults to you)",
							Required:    false,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "stats",
					Description: "Anonymised membership statistics",
				},
			},
		},
		{
			Name:                     "membershipadmin",
			Description:              "Membership administration",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "setmemberrole",
					Description: "Set the role granted to verified members",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "role",
							Description: "The member role",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "unsetmemberrole",
					Description: "Stop granting a role to verified members",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "upload",
					Description: "Import the membership list from a CSV export",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "url",
							Description: "URL of the CSV export",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "clear",
					Description: "Delete every membership row for this server",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "verifybutton",
					Description: "Post a persistent verification button in this channel",
				},
			},
		},
	}
}

// RegisterCommands overwrites the application commands for the guild.
func RegisterCommands(session *discordgo.Session, appID, guildID string) error {
	_, err := session.ApplicationCommandBulkOverwrite(appID, guildID, Commands())
	return err
}
