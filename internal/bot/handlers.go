package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"socbot/internal/models"
	"socbot/internal/observability"

	"github.com/bwmarrin/discordgo"
)

// requestLinkReply is sent whether or not the email matched a membership, so
// the command cannot be used to probe the membership list.
const requestLinkReply = "If that email matches a current membership, a verification code is on its way. " +
	"Check your inbox, then click the button below to enter it."

// HandleInteraction is the discordgo InteractionCreate handler.
func (b *Bot) HandleInteraction(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := observability.WithCorrelationID(context.Background(), observability.GenerateCorrelationID())

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, i)
	case discordgo.InteractionModalSubmit:
		b.handleModal(ctx, i)
	}
}

func (b *Bot) handleCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	switch data.Name {
	case "membership":
		switch sub.Name {
		case "link":
			b.requestLink(ctx, i, stringOption(sub, "email"))
		case "code":
			b.redeemLink(ctx, i, stringOption(sub, "code"))
		case "unlink":
			b.unlink(ctx, i)
		case "has":
			b.hasMembership(ctx, i, sub)
		case "stats":
			b.stats(ctx, i)
		}
	case "membershipadmin":
		if !isAdmin(i) {
			b.replyEphemeral(i, "You need the Administrator permission for this command.")
			return
		}
		switch sub.Name {
		case "setmemberrole":
			b.setMemberRole(ctx, i, sub)
		case "unsetmemberrole":
			b.unsetMemberRole(ctx, i)
		case "upload":
			b.importMembers(ctx, i, stringOption(sub, "url"))
		case "clear":
			b.clearMemberships(ctx, i)
		case "verifybutton":
			b.postVerifyButton(i)
		}
	}
}

func (b *Bot) handleComponent(ctx context.Context, i *discordgo.InteractionCreate) {
	switch i.MessageComponentData().CustomID {
	case verifyButtonID:
		b.openModal(i, emailModalID, "Verify your membership",
			emailInputID, "Membership email", "you@example.com")
	case codeButtonID:
		b.openModal(i, codeModalID, "Enter your verification code",
			codeInputID, "Verification code", "abc123defg")
	}
}

func (b *Bot) handleModal(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	switch data.CustomID {
	case emailModalID:
		b.requestLink(ctx, i, modalValue(data, emailInputID))
	case codeModalID:
		b.redeemLink(ctx, i, modalValue(data, codeInputID))
	}
}

func (b *Bot) requestLink(ctx context.Context, i *discordgo.InteractionCreate, email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		b.replyEphemeral(i, "Please provide an email address.")
		return
	}

	err := b.service.RequestLink(ctx, i.GuildID, email, interactionUserID(i))
	switch {
	case err == nil, models.IsCode(err, models.CodeNotAMember):
		// Identical reply either way so membership existence is not leaked.
		b.respond(i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:    requestLinkReply,
				Flags:      discordgo.MessageFlagsEphemeral,
				Components: []discordgo.MessageComponent{codeButtonRow()},
			},
		})
	case models.IsCode(err, models.CodeAlreadyLinked):
		b.replyEphemeral(i, userMessage(err))
	default:
		b.logger.ErrorContext(ctx, "request link failed", slog.String("error", err.Error()))
		b.replyEphemeral(i, userMessage(err))
	}
}

func (b *Bot) redeemLink(ctx context.Context, i *discordgo.InteractionCreate, code string) {
	result, err := b.service.RedeemLink(ctx, i.GuildID, strings.TrimSpace(code), interactionUserID(i))
	if err != nil {
		b.replyEphemeral(i, userMessage(err))
		return
	}

	msg := fmt.Sprintf("Welcome, %s! Your membership is now linked.", result.Membership.Name)
	if result.RoleWarning != nil {
		msg += "\n:warning: Your member role could not be assigned; an admin has been notified."
	}
	if b.authURL != "" {
		msg += fmt.Sprintf("\nTo show your membership on your profile, connect your account: %s", b.authURL)
	}
	b.replyEphemeral(i, msg)
}

func (b *Bot) unlink(ctx context.Context, i *discordgo.InteractionCreate) {
	if err := b.service.Unlink(ctx, i.GuildID, interactionUserID(i)); err != nil {
		b.replyEphemeral(i, userMessage(err))
		return
	}
	b.replyEphemeral(i, "Your membership link has been removed.")
}

func (b *Bot) hasMembership(ctx context.Context, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	targetID := interactionUserID(i)
	subject := "You have"
	if opt := findOption(sub, "user"); opt != nil {
		if !isAdmin(i) {
			b.replyEphemeral(i, "Only administrators can look up other members.")
			return
		}
		targetID = opt.Value.(string)
		subject = fmt.Sprintf("<@%s> has", targetID)
	}

	membership, err := b.service.HasMembershipDiscord(ctx, i.GuildID, targetID)
	if err != nil {
		b.replyEphemeral(i, userMessage(err))
		return
	}
	if membership == nil {
		b.replyEphemeral(i, fmt.Sprintf("%s no current membership linked here.", subject))
		return
	}
	b.replyEphemeral(i, fmt.Sprintf("%s a current %s membership until %s.",
		subject, membership.Type, membership.EndDate.Format("2 Jan 2006")))
}

func (b *Bot) stats(ctx context.Context, i *discordgo.InteractionCreate) {
	report, err := b.service.AnonymisedStats(ctx, i.GuildID)
	if err != nil {
		b.replyEphemeral(i, userMessage(err))
		return
	}

	counts := map[models.MembershipType]int{}
	for _, stat := range report.Members {
		counts[stat.Type]++
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Current members: %d**\n", len(report.Members))
	for _, t := range []models.MembershipType{
		models.MembershipTypeStudent, models.MembershipTypeStaff,
		models.MembershipTypeAlumni, models.MembershipTypePublic,
	} {
		if counts[t] > 0 {
			fmt.Fprintf(&sb, "%s: %d\n", t, counts[t])
		}
	}
	if report.MembersLastUpdated != nil {
		fmt.Fprintf(&sb, "List last updated <t:%d:R>.", report.MembersLastUpdated.Unix())
	} else {
		sb.WriteString("The membership list has never been imported.")
	}
	b.replyEphemeral(i, sb.String())
}

func (b *Bot) setMemberRole(ctx context.Context, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	opt := findOption(sub, "role")
	if opt == nil {
		b.replyEphemeral(i, "Please provide a role.")
		return
	}
	roleID := opt.Value.(string)

	if err := b.service.SetMemberRole(ctx, i.GuildID, roleID); err != nil {
		b.replyEphemeral(i, userMessage(err))
		return
	}
	b.replyEphemeral(i, fmt.Sprintf("Verified members will now be granted <@&%s>.", roleID))
}

func (b *Bot) unsetMemberRole(ctx context.Context, i *discordgo.InteractionCreate) {
	if err := b.service.UnsetMemberRole(ctx, i.GuildID); err != nil {
		b.replyEphemeral(i, userMessage(err))
		return
	}
	b.replyEphemeral(i, "Verified members will no longer be granted a role.")
}

func (b *Bot) importMembers(ctx context.Context, i *discordgo.InteractionCreate, csvURL string) {
	count, err := b.service.ImportMembers(ctx, i.GuildID, csvURL)
	if err != nil {
		b.replyEphemeral(i, userMessage(err))
		return
	}
	b.replyEphemeral(i, fmt.Sprintf("Imported %d membership rows.", count))
}

func (b *Bot) clearMemberships(ctx context.Context, i *discordgo.InteractionCreate) {
	if err := b.service.ClearMemberships(ctx, i.GuildID); err != nil {
		b.replyEphemeral(i, userMessage(err))
		return
	}
	b.replyEphemeral(i, "All membership rows for this server have been deleted.")
}

func (b *Bot) postVerifyButton(i *discordgo.InteractionCreate) {
	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Click below to verify your membership and unlock the server.",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "Verify membership",
							Style:    discordgo.PrimaryButton,
							CustomID: verifyButtonID,
						},
					},
				},
			},
		},
	})
}

func (b *Bot) openModal(i *discordgo.InteractionCreate, modalID, title, inputID, label, placeholder string) {
	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: modalID,
			Title:    title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    inputID,
							Label:       label,
							Style:       discordgo.TextInputShort,
							Placeholder: placeholder,
							Required:    true,
						},
					},
				},
			},
		},
	})
}

func codeButtonRow() discordgo.MessageComponent {
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Enter verification code",
				Style:    discordgo.SuccessButton,
				CustomID: codeButtonID,
			},
		},
	}
}

func (b *Bot) replyEphemeral(i *discordgo.InteractionCreate, content string) {
	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func (b *Bot) respond(i *discordgo.InteractionCreate, resp *discordgo.InteractionResponse) {
	if err := b.responder.InteractionRespond(i.Interaction, resp); err != nil {
		b.logger.Error("failed to respond to interaction", slog.String("error", err.Error()))
	}
}

// userMessage maps an error to what the member should see. AppError messages
// are written for users; anything else gets a generic reply.
func userMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code != models.CodeInternalError {
		return appErr.Message
	}
	return "Something went wrong, please try again later."
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func isAdmin(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

func stringOption(sub *discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt := findOption(sub, name); opt != nil {
		if v, ok := opt.Value.(string); ok {
			return v
		}
	}
	return ""
}

func findOption(sub *discordgo.ApplicationCommandInteractionDataOption, name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range sub.Options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

// modalValue extracts a text input value from a submitted modal.
func modalValue(data discordgo.ModalSubmitInteractionData, inputID string) string {
	for _, component := range data.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok && input.CustomID == inputID {
				return input.Value
			}
		}
	}
	return ""
}
