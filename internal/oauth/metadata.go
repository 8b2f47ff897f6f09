package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"socbot/internal/models"
	"socbot/internal/observability"
	"socbot/internal/repository"
)

// DefaultAPIBaseURL is the Discord REST API base.
const DefaultAPIBaseURL = "https://discord.com/api/v10"

// roleConnection is the PUT body for the role-connection endpoint. Metadata
// values are strings on the wire regardless of their registered type.
type roleConnection struct {
	PlatformName string            `json:"platform_name"`
	Metadata     map[string]string `json:"metadata"`
}

// accessTokenProvider is the slice of TokenSource the publisher needs.
type accessTokenProvider interface {
	AccessToken(ctx context.Context, userID string) (string, error)
}

// MetadataPublisherOptions configures a MetadataPublisher.
type MetadataPublisherOptions struct {
	ClientID     string
	HomeGuildID  string
	PlatformName string
	APIBaseURL   string // defaults to DefaultAPIBaseURL
}

// MetadataPublisher pushes membership status to Discord's linked-role
// metadata endpoint. Membership is always checked against the home guild,
// not whichever guild triggered the push: linked-role requirements are
// registered against the application, so the society's own server is the
// source of truth.
type MetadataPublisher struct {
	opts        MetadataPublisherOptions
	tokens      accessTokenProvider
	memberships repository.MembershipRepository
	httpClient  *http.Client
	logger      *observability.Logger
}

// NewMetadataPublisher returns a MetadataPublisher.
func NewMetadataPublisher(opts MetadataPublisherOptions, tokens accessTokenProvider, memberships repository.MembershipRepository) *MetadataPublisher {
	if opts.APIBaseURL == "" {
		opts.APIBaseURL = DefaultAPIBaseURL
	}
	if opts.PlatformName == "" {
		opts.PlatformName = "ProgSoc"
	}
	return &MetadataPublisher{
		opts:        opts,
		tokens:      tokens,
		memberships: memberships,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      observability.Component("metadata"),
	}
}

// Push publishes the user's membership status. Users without a current home
// guild membership are skipped: there are no dates to publish and clearing
// metadata for lapsed members happens on the next successful link.
func (p *MetadataPublisher) Push(ctx context.Context, userID string) error {
	token, err := p.tokens.AccessToken(ctx, userID)
	if err != nil {
		observability.MetadataPushes.WithLabelValues("failure").Inc()
		return err
	}

	membership, err := p.memberships.GetCurrentByUser(ctx, p.opts.HomeGuildID, userID)
	if err != nil {
		return err
	}
	if membership == nil {
		p.logger.DebugContext(ctx, "no current home guild membership, skipping metadata push",
			slog.String("user_id", userID),
		)
		return nil
	}

	body := roleConnection{
		PlatformName: p.opts.PlatformName,
		Metadata: map[string]string{
			"member": "1",
			"joined": membership.StartDate.Format("2006-01-02"),
			"expiry": membership.EndDate.Format("2006-01-02"),
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return models.NewInternalError(err)
	}

	endpoint := fmt.Sprintf("%s/users/@me/applications/%s/role-connection", p.opts.APIBaseURL, p.opts.ClientID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return models.NewInternalError(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(req)
	if err != nil {
		observability.MetadataPushes.WithLabelValues("failure").Inc()
		return &models.AppError{Code: models.CodeMetadataPushFailed, Message: "Failed to reach the metadata endpoint", Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		observability.MetadataPushes.WithLabelValues("failure").Inc()
		return models.NewAppError(models.CodeMetadataPushFailed,
			fmt.Sprintf("Metadata endpoint returned status %d", httpResp.StatusCode))
	}

	observability.MetadataPushes.WithLabelValues("success").Inc()
	p.logger.InfoContext(ctx, "pushed role connection metadata",
		slog.String("user_id", userID),
		slog.String("expiry", membership.EndDate.Format("2006-01-02")),
	)
	return nil
}
