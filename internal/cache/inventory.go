package cache

import (
	"fmt"
	"time"
)

const (
	verificationCodePrefix = "verify:code:%s"
	accessTokenPrefix      = "user:%s:access-token"
)

const (
	// CodeTTL is how long an issued verification code stays redeemable.
	CodeTTL = time.Hour
	// OAuthSeedTokenTTL is the TTL applied to access tokens captured during
	// the OAuth callback, where the provider's expiry is not re-validated.
	OAuthSeedTokenTTL = 7 * 24 * time.Hour
)

func codeKey(code string) string {
	return fmt.Sprintf(verificationCodePrefix, code)
}

// AccessTokenKey returns the cache key for a user's access token.
func AccessTokenKey(userID string) string {
	return fmt.Sprintf(accessTokenPrefix, userID)
}
