package cache

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"

	"socbot/internal/models"
	"socbot/internal/observability"

	"github.com/redis/go-redis/v9"
)

const codeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// codeLength gives ~51 bits of entropy, enough to make guessing a live code
// within its one hour window impractical.
const codeLength = 10

// CodePayload is the value stored against an issued verification code.
type CodePayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// CodeStore issues and redeems short-lived email verification codes. A code
// is consumed exactly once: redemption is a single GETDEL, so two concurrent
// redemptions can never both succeed.
type CodeStore struct {
	rdb *redis.Client
}

// NewCodeStore returns a CodeStore backed by the given Redis client.
func NewCodeStore(rdb *redis.Client) *CodeStore {
	return &CodeStore{rdb: rdb}
}

// Issue generates a fresh code for the (user, email) pair and stores it with
// a one hour expiry. Outstanding codes for the same pair are independent.
func (s *CodeStore) Issue(ctx context.Context, userID, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", models.NewInternalError(err)
	}

	payload, err := json.Marshal(CodePayload{UserID: userID, Email: email})
	if err != nil {
		return "", models.NewInternalError(err)
	}

	if err := s.rdb.Set(ctx, codeKey(code), payload, CodeTTL).Err(); err != nil {
		return "", models.NewInternalError(err)
	}

	observability.CodesIssued.Inc()
	return code, nil
}

// Redeem atomically fetches and deletes the payload for the given code.
// A miss (never issued, expired, or already consumed) yields INVALID_CODE;
// an unreachable cache yields INTERNAL_ERROR so the caller is not misled
// into re-requesting a code.
func (s *CodeStore) Redeem(ctx context.Context, code string) (*CodePayload, error) {
	raw, err := s.rdb.GetDel(ctx, codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, models.NewAppError(models.CodeInvalidCode, "Invalid or expired verification code")
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	var payload CodePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// The code is already consumed at this point, which is what we want
		// for a corrupt entry.
		return nil, models.NewAppError(models.CodeInvalidCode, "Invalid or expired verification code")
	}

	return &payload, nil
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
