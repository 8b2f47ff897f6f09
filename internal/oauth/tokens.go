// Package oauth implements the Discord OAuth pieces of membership linking:
// access-token acquisition via refresh grants and the linked-role metadata
// push that advertises membership status back to Discord.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"socbot/internal/cache"
	"socbot/internal/models"
	"socbot/internal/observability"
	"socbot/internal/repository"
)

// DefaultTokenURL is Discord's OAuth2 token endpoint.
const DefaultTokenURL = "https://discord.com/api/oauth2/token"

// Scopes requested from Discord. role_connections.write is what allows the
// metadata push; identify is needed to resolve the user in the callback.
var Scopes = []string{"identify", "role_connections.write"}

// TokenSourceOptions configures a TokenSource.
type TokenSourceOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenURL     string // defaults to DefaultTokenURL
}

// tokenResponse is the provider's token endpoint response shape. All fields
// are required; a response missing any of them is treated as an exchange
// failure rather than trusted partially.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

func (r *tokenResponse) valid() bool {
	return r.AccessToken != "" && r.RefreshToken != "" && r.ExpiresIn > 0
}

// TokenSource produces access tokens for users who have authorized the bot.
// Tokens are served from the cache while fresh; on a miss the stored refresh
// token is exchanged and rotated.
type TokenSource struct {
	opts       TokenSourceOptions
	tokens     *cache.TokenCache
	users      repository.DiscordUserRepository
	httpClient *http.Client
	logger     *observability.Logger
}

// NewTokenSource returns a TokenSource.
func NewTokenSource(opts TokenSourceOptions, tokens *cache.TokenCache, users repository.DiscordUserRepository) *TokenSource {
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	return &TokenSource{
		opts:       opts,
		tokens:     tokens,
		users:      users,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     observability.Component("oauth"),
	}
}

// AccessToken returns a valid access token for the user. Fails with
// NOT_AUTHORIZED when the user has never completed the OAuth flow; the token
// endpoint is never contacted in that case.
func (s *TokenSource) AccessToken(ctx context.Context, userID string) (string, error) {
	token, ok, err := s.tokens.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if ok {
		return token, nil
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil || user.RefreshToken == nil || *user.RefreshToken == "" {
		return "", models.NewAppError(models.CodeNotAuthorized, "User has not authorized the bot")
	}

	resp, err := s.exchange(ctx, *user.RefreshToken)
	if err != nil {
		observability.TokenExchanges.WithLabelValues("failure").Inc()
		return "", err
	}
	observability.TokenExchanges.WithLabelValues("success").Inc()

	// Persist the rotated refresh token before caching; losing the rotation
	// means the next refresh fails permanently.
	if err := s.users.SetRefreshToken(ctx, userID, resp.RefreshToken); err != nil {
		return "", err
	}

	ttl := time.Duration(resp.ExpiresIn) * time.Second
	if err := s.tokens.Set(ctx, userID, resp.AccessToken, ttl); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "access token refreshed",
		slog.String("user_id", userID),
		slog.Int64("expires_in", resp.ExpiresIn),
	)
	return resp.AccessToken, nil
}

func (s *TokenSource) exchange(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	form := url.Values{
		"client_id":     {s.opts.ClientID},
		"client_secret": {s.opts.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"redirect_uri":  {s.opts.RedirectURL},
		"scope":         {strings.Join(Scopes, " ")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &models.AppError{Code: models.CodeTokenExchangeFailed, Message: "Failed to reach the token endpoint", Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, models.NewAppError(models.CodeTokenExchangeFailed,
			fmt.Sprintf("Token endpoint returned status %d", httpResp.StatusCode))
	}

	var resp tokenResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &models.AppError{Code: models.CodeTokenExchangeFailed, Message: "Malformed token response", Err: err}
	}
	if !resp.valid() {
		return nil, models.NewAppError(models.CodeTokenExchangeFailed, "Incomplete token response")
	}
	return &resp, nil
}
