package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"socbot/internal/cache"
	"socbot/internal/models"
	"socbot/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// stateTTL bounds how long an authorization round trip may take.
const stateTTL = 10 * time.Minute

// discordIdentity is the subset of GET /users/@me we need.
type discordIdentity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// BeginAuth redirects the browser to Discord's authorization page with a
// signed state token. The state is a short-lived JWT rather than a stored
// nonce so the flow needs no server-side session.
func (s *Server) BeginAuth(c *fiber.Ctx) error {
	state, err := s.signState()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	return c.Redirect(s.oauthCfg.AuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

// Callback completes the OAuth flow: verifies the state, exchanges the code,
// resolves the Discord user, stores the refresh token and pushes linked-role
// metadata.
func (s *Server) Callback(c *fiber.Ctx) error {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Missing state or code parameter"))
	}

	if err := s.verifyState(state); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid or expired state, please restart the flow"))
	}

	token, err := s.oauthCfg.Exchange(c.UserContext(), code)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadGateway,
			&models.AppError{Code: models.CodeTokenExchangeFailed, Message: "Discord rejected the authorization code", Err: err})
	}

	identity, err := s.fetchIdentity(c.UserContext(), token.AccessToken)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadGateway, err)
	}
	c.Locals("userID", identity.ID)

	if err := s.users.EnsureExists(c.UserContext(), identity.ID); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if token.RefreshToken != "" {
		if err := s.users.SetRefreshToken(c.UserContext(), identity.ID, token.RefreshToken); err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
	}

	ttl := time.Until(token.Expiry)
	if ttl <= 0 {
		ttl = cache.OAuthSeedTokenTTL
	}
	if err := s.tokens.Set(c.UserContext(), identity.ID, token.AccessToken, ttl); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	// The authorization itself has succeeded; a metadata failure is logged
	// and retried on the next link or token refresh.
	if err := s.memberships.UpdateMetadata(c.UserContext(), identity.ID); err != nil {
		observability.Component("server").LogWarning(c.UserContext(), "metadata_push", err,
			map[string]interface{}{"user_id": identity.ID})
	}

	return c.Type("html").SendString(fmt.Sprintf(
		"<h1>Thanks, %s!</h1><p>Your Discord account is connected. You can close this tab.</p>",
		identity.Username))
}

func (s *Server) signState() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "socbot",
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.StateSecret))
}

func (s *Server) verifyState(state string) error {
	token, err := jwt.Parse(state, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.StateSecret), nil
	}, jwt.WithIssuer("socbot"), jwt.WithExpirationRequired())
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid state token")
	}
	return nil
}

func (s *Server) fetchIdentity(ctx context.Context, accessToken string) (*discordIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBaseURL+"/users/@me", nil)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, &models.AppError{Code: models.CodeTokenExchangeFailed, Message: "Failed to resolve the Discord user", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.NewAppError(models.CodeTokenExchangeFailed,
			fmt.Sprintf("Identity endpoint returned status %d", resp.StatusCode))
	}

	var identity discordIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, models.NewInternalError(err)
	}
	if identity.ID == "" {
		return nil, models.NewAppError(models.CodeTokenExchangeFailed, "Identity response missing user id")
	}
	return &identity, nil
}
