// Package service holds the business logic tying storage, cache, Discord and
// OAuth together.
package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"socbot/internal/cache"
	"socbot/internal/mailer"
	"socbot/internal/models"
	"socbot/internal/observability"
	"socbot/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// CodeStore issues and atomically consumes verification codes.
type CodeStore interface {
	Issue(ctx context.Context, userID, email string) (string, error)
	Redeem(ctx context.Context, code string) (*cache.CodePayload, error)
}

// RoleSynchronizer grants and revokes the configured member role.
type RoleSynchronizer interface {
	Grant(ctx context.Context, guildID, userID, roleID string) error
	Revoke(ctx context.Context, guildID, userID, roleID string) error
}

// MetadataPublisher pushes linked-role membership metadata to Discord.
type MetadataPublisher interface {
	Push(ctx context.Context, userID string) error
}

// LinkResult reports the outcome of a successful redemption. RoleWarning is
// set when the link itself succeeded but the role grant did not; the caller
// shows it as a warning, never as a failure.
type LinkResult struct {
	Membership  *models.Membership
	RoleWarning error
}

// AnonymisedReport is the privacy-safe membership breakdown for a guild.
type AnonymisedReport struct {
	Members            []repository.MembershipStat
	MembersLastUpdated *time.Time
}

// MembershipService orchestrates the verification workflow: code issuance,
// redemption, role synchronization and metadata pushes, plus the membership
// admin operations.
type MembershipService struct {
	memberships repository.MembershipRepository
	guilds      repository.GuildRepository
	users       repository.DiscordUserRepository
	codes       CodeStore
	mailer      mailer.Mailer
	roles       RoleSynchronizer
	metadata    MetadataPublisher
	httpClient  *http.Client
	logger      *observability.Logger
}

// NewMembershipService returns a new MembershipService.
func NewMembershipService(
	memberships repository.MembershipRepository,
	guilds repository.GuildRepository,
	users repository.DiscordUserRepository,
	codes CodeStore,
	m mailer.Mailer,
	roles RoleSynchronizer,
	metadata MetadataPublisher,
) *MembershipService {
	return &MembershipService{
		memberships: memberships,
		guilds:      guilds,
		users:       users,
		codes:       codes,
		mailer:      m,
		roles:       roles,
		metadata:    metadata,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      observability.Component("membership"),
	}
}

// RequestLink starts the linking flow: verifies the caller is not already
// linked, that a current membership exists for the email, then issues a code
// and emails it. The caller must reply identically whether or not a code was
// issued so membership existence is not leaked on this path.
func (s *MembershipService) RequestLink(ctx context.Context, guildID, email, userID string) error {
	span, ctx := observability.NewSpan(ctx, "membership.request_link")
	defer span.End()
	span.AddAttributes(attribute.String("guild_id", guildID))

	existing, err := s.memberships.GetCurrentByUser(ctx, guildID, userID)
	if err != nil {
		span.SetError(err)
		return err
	}
	if existing != nil {
		observability.LinkAttempts.WithLabelValues("request", models.CodeAlreadyLinked).Inc()
		return models.NewAppError(models.CodeAlreadyLinked, "You are already linked to a membership")
	}

	membership, err := s.memberships.GetCurrentByEmail(ctx, guildID, email)
	if err != nil {
		span.SetError(err)
		return err
	}
	if membership == nil {
		observability.LinkAttempts.WithLabelValues("request", models.CodeNotAMember).Inc()
		return models.NewAppError(models.CodeNotAMember, "No current membership matches that email")
	}

	code, err := s.codes.Issue(ctx, userID, membership.Email)
	if err != nil {
		span.SetError(err)
		return err
	}

	// Delivery is fire-and-forget: a mail failure is logged but the code
	// stays issued so support can resend it manually.
	if err := s.mailer.SendCode(ctx, membership.CasedEmail, code); err != nil {
		s.logger.LogWarning(ctx, "send_code", err, map[string]interface{}{
			"guild_id": guildID,
		})
	}

	observability.LinkAttempts.WithLabelValues("request", "ok").Inc()
	return nil
}

// RedeemLink consumes a verification code and completes the link. The code
// is consumed exactly once, before any check: a mismatched or stale attempt
// burns it, so a forwarded code cannot be retried by guessing users.
func (s *MembershipService) RedeemLink(ctx context.Context, guildID, code, userID string) (*LinkResult, error) {
	span, ctx := observability.NewSpan(ctx, "membership.redeem_link")
	defer span.End()
	span.AddAttributes(attribute.String("guild_id", guildID))

	payload, err := s.codes.Redeem(ctx, code)
	if err != nil {
		observability.LinkAttempts.WithLabelValues("redeem", models.ErrorCode(err)).Inc()
		return nil, err
	}

	if payload.UserID != userID {
		observability.LinkAttempts.WithLabelValues("redeem", models.CodeUserMismatch).Inc()
		return nil, models.NewAppError(models.CodeUserMismatch, "This code was issued to a different user")
	}

	// Membership is re-checked at redemption time; an hour has passed since
	// issuance and the row may have been re-imported or removed.
	membership, err := s.memberships.GetCurrentByEmail(ctx, guildID, payload.Email)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if membership == nil {
		observability.LinkAttempts.WithLabelValues("redeem", models.CodeMembershipNotFound).Inc()
		return nil, models.NewAppError(models.CodeMembershipNotFound,
			"Membership not found, if you have recently signed up please let us know and we'll update the database")
	}

	if err := s.users.EnsureExists(ctx, userID); err != nil {
		span.SetError(err)
		return nil, err
	}
	if err := s.memberships.Link(ctx, guildID, payload.Email, userID); err != nil {
		span.SetError(err)
		return nil, err
	}

	observability.LinkAttempts.WithLabelValues("redeem", "ok").Inc()
	result := &LinkResult{Membership: membership}

	// From here on the link is durable. Role grant and metadata push are
	// best-effort enhancements and never roll it back.
	result.RoleWarning = s.syncRole(ctx, guildID, userID)
	s.pushMetadataIfAuthorized(ctx, userID)

	return result, nil
}

func (s *MembershipService) syncRole(ctx context.Context, guildID, userID string) error {
	guild, err := s.guilds.Get(ctx, guildID)
	if err != nil {
		s.logger.LogWarning(ctx, "role_sync", err, map[string]interface{}{"guild_id": guildID})
		return err
	}
	if guild == nil || guild.MemberRoleID == nil {
		return nil
	}

	if err := s.roles.Grant(ctx, guildID, userID, *guild.MemberRoleID); err != nil {
		s.logger.LogWarning(ctx, "role_sync", err, map[string]interface{}{
			"guild_id": guildID,
			"role_id":  *guild.MemberRoleID,
		})
		return err
	}
	return nil
}

func (s *MembershipService) pushMetadataIfAuthorized(ctx context.Context, userID string) {
	user, err := s.users.Get(ctx, userID)
	if err != nil || user == nil || user.RefreshToken == nil {
		return
	}
	if err := s.metadata.Push(ctx, userID); err != nil {
		s.logger.LogWarning(ctx, "metadata_push", err, map[string]interface{}{
			"user_id": userID,
		})
	}
}

// UpdateMetadata pushes fresh linked-role metadata for a user who has
// completed the OAuth flow. Called from the OAuth callback and after links.
func (s *MembershipService) UpdateMetadata(ctx context.Context, userID string) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || user.RefreshToken == nil {
		return models.NewAppError(models.CodeNotAuthorized, "User has not authorized the bot")
	}
	return s.metadata.Push(ctx, userID)
}

// Unlink clears the caller's membership link in the guild. Idempotent; a
// second call is a no-op. The member role is revoked best-effort.
func (s *MembershipService) Unlink(ctx context.Context, guildID, userID string) error {
	span, ctx := observability.NewSpan(ctx, "membership.unlink")
	defer span.End()

	if err := s.memberships.Unlink(ctx, guildID, userID); err != nil {
		span.SetError(err)
		return err
	}

	guild, err := s.guilds.Get(ctx, guildID)
	if err == nil && guild != nil && guild.MemberRoleID != nil {
		if err := s.roles.Revoke(ctx, guildID, userID, *guild.MemberRoleID); err != nil {
			s.logger.LogWarning(ctx, "role_revoke", err, map[string]interface{}{
				"guild_id": guildID,
			})
		}
	}
	return nil
}

// HasMembershipEmail reports the current membership for an email in a guild,
// or nil when there is none.
func (s *MembershipService) HasMembershipEmail(ctx context.Context, guildID, email string) (*models.Membership, error) {
	return s.memberships.GetCurrentByEmail(ctx, guildID, email)
}

// HasMembershipDiscord reports the current membership linked to a Discord
// user in a guild, or nil when there is none.
func (s *MembershipService) HasMembershipDiscord(ctx context.Context, guildID, userID string) (*models.Membership, error) {
	return s.memberships.GetCurrentByUser(ctx, guildID, userID)
}

// SetMemberRole configures the role granted on successful links.
func (s *MembershipService) SetMemberRole(ctx context.Context, guildID, roleID string) error {
	return s.guilds.SetMemberRole(ctx, guildID, &roleID)
}

// UnsetMemberRole disables role grants for the guild.
func (s *MembershipService) UnsetMemberRole(ctx context.Context, guildID string) error {
	return s.guilds.SetMemberRole(ctx, guildID, nil)
}

// csvColumns is the fixed export layout of the membership sheet.
var csvColumns = []string{
	"first_name", "last_name", "preferred_name", "email", "mobile",
	"type", "joined_date", "end_date", "price_paid",
}

// ImportMembers downloads a membership CSV and bulk-upserts its rows,
// keyed on (guild, lowercased email). Existing links survive re-imports.
func (s *MembershipService) ImportMembers(ctx context.Context, guildID, csvURL string) (int64, error) {
	span, ctx := observability.NewSpan(ctx, "membership.import")
	defer span.End()
	span.AddAttributes(attribute.String("guild_id", guildID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, csvURL, nil)
	if err != nil {
		return 0, models.NewValidationError("Invalid CSV URL")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, models.NewValidationError(fmt.Sprintf("CSV download failed with status %d", resp.StatusCode))
	}

	rows, err := parseMembershipCSV(resp.Body)
	if err != nil {
		return 0, err
	}

	if err := s.guilds.EnsureExists(ctx, guildID); err != nil {
		return 0, err
	}

	updated, err := s.memberships.BulkUpsert(ctx, guildID, rows)
	if err != nil {
		span.SetError(err)
		return 0, err
	}

	if err := s.guilds.TouchMembersUpdated(ctx, guildID); err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "membership import completed",
		slog.String("guild_id", guildID),
		slog.Int64("rows", updated),
	)
	return updated, nil
}

func parseMembershipCSV(r io.Reader) ([]models.Membership, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvColumns)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("Malformed CSV: %v", err))
	}
	if len(records) < 2 {
		return nil, models.NewValidationError("CSV contains no membership rows")
	}

	// First line is the header row.
	rows := make([]models.Membership, 0, len(records)-1)
	for i, record := range records[1:] {
		row, err := parseMembershipRow(record)
		if err != nil {
			return nil, models.NewValidationError(fmt.Sprintf("Row %d: %v", i+2, err))
		}
		rows = append(rows, *row)
	}
	return rows, nil
}

func parseMembershipRow(record []string) (*models.Membership, error) {
	firstName := strings.TrimSpace(record[0])
	lastName := strings.TrimSpace(record[1])
	preferred := strings.TrimSpace(record[2])
	email := strings.TrimSpace(record[3])
	mobile := strings.TrimSpace(record[4])
	memberType := models.MembershipType(strings.ToLower(strings.TrimSpace(record[5])))

	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}

	switch memberType {
	case models.MembershipTypeStaff, models.MembershipTypeStudent,
		models.MembershipTypeAlumni, models.MembershipTypePublic:
	default:
		return nil, fmt.Errorf("unknown membership type %q", record[5])
	}

	joined, err := time.Parse("2006-01-02", strings.TrimSpace(record[6]))
	if err != nil {
		return nil, fmt.Errorf("invalid joined_date %q", record[6])
	}
	end, err := time.Parse("2006-01-02", strings.TrimSpace(record[7]))
	if err != nil {
		return nil, fmt.Errorf("invalid end_date %q", record[7])
	}

	name := firstName
	if preferred != "" {
		name = preferred
	}
	name = name + " " + lastName

	row := &models.Membership{
		CasedEmail: email,
		Name:       name,
		Type:       memberType,
		StartDate:  joined,
		EndDate:    end,
	}
	if mobile != "" {
		row.Phone = &mobile
	}
	return row, nil
}

// ClearMemberships drops every membership row for the guild.
func (s *MembershipService) ClearMemberships(ctx context.Context, guildID string) error {
	return s.memberships.DeleteByGuild(ctx, guildID)
}

// AnonymisedStats returns the privacy-safe membership breakdown for a guild.
func (s *MembershipService) AnonymisedStats(ctx context.Context, guildID string) (*AnonymisedReport, error) {
	stats, err := s.memberships.CurrentStats(ctx, guildID)
	if err != nil {
		return nil, err
	}

	guild, err := s.guilds.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if guild == nil {
		return nil, models.NewNotFoundError("Guild", guildID)
	}

	return &AnonymisedReport{
		Members:            stats,
		MembersLastUpdated: guild.MembersLastUpdated,
	}, nil
}
