package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"socbot/internal/models"
	"socbot/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type membershipRepoStub struct {
	getCurrentByEmailFn func(context.Context, string, string) (*models.Membership, error)
	getCurrentByUserFn  func(context.Context, string, string) (*models.Membership, error)
	linkFn              func(context.Context, string, string, string) error
	unlinkFn            func(context.Context, string, string) error
	bulkUpsertFn        func(context.Context, string, []models.Membership) (int64, error)
	deleteByGuildFn     func(context.Context, string) error
	currentStatsFn      func(context.Context, string) ([]repository.MembershipStat, error)
}

func (s *membershipRepoStub) GetCurrentByEmail(ctx context.Context, guildID, email string) (*models.Membership, error) {
	return s.getCurrentByEmailFn(ctx, guildID, email)
}
func (s *membershipRepoStub) GetCurrentByUser(ctx context.Context, guildID, userID string) (*models.Membership, error) {
	return s.getCurrentByUserFn(ctx, guildID, userID)
}
func (s *membershipRepoStub) Link(ctx context.Context, guildID, email, userID string) error {
	return s.linkFn(ctx, guildID, email, userID)
}
func (s *membershipRepoStub) Unlink(ctx context.Context, guildID, userID string) error {
	return s.unlinkFn(ctx, guildID, userID)
}
func (s *membershipRepoStub) BulkUpsert(ctx context.Context, guildID string, rows []models.Membership) (int64, error) {
	return s.bulkUpsertFn(ctx, guildID, rows)
}
func (s *membershipRepoStub) DeleteByGuild(ctx context.Context, guildID string) error {
	return s.deleteByGuildFn(ctx, guildID)
}
func (s *membershipRepoStub) CurrentStats(ctx context.Context, guildID string) ([]repository.MembershipStat, error) {
	return s.currentStatsFn(ctx, guildID)
}

type tokenProviderStub struct {
	token string
	err   error
}

func (s *tokenProviderStub) AccessToken(context.Context, string) (string, error) {
	return s.token, s.err
}

func currentMembership(guildID string) *models.Membership {
	userID := "U1"
	return &models.Membership{
		GuildID:   guildID,
		Email:     "a@b.com",
		StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		UserID:    &userID,
	}
}

func TestMetadataPushSuccess(t *testing.T) {
	var gotAuth string
	var gotBody roleConnection
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/users/@me/applications/cid/role-connection", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	}))
	defer srv.Close()

	memberships := &membershipRepoStub{
		getCurrentByUserFn: func(_ context.Context, guildID, _ string) (*models.Membership, error) {
			assert.Equal(t, "HOME", guildID)
			return currentMembership(guildID), nil
		},
	}

	p := NewMetadataPublisher(MetadataPublisherOptions{
		ClientID:    "cid",
		HomeGuildID: "HOME",
		APIBaseURL:  srv.URL,
	}, &tokenProviderStub{token: "tok"}, memberships)

	require.NoError(t, p.Push(context.Background(), "U1"))
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "1", gotBody.Metadata["member"])
	assert.Equal(t, "2025-03-01", gotBody.Metadata["joined"])
	assert.Equal(t, "2026-03-01", gotBody.Metadata["expiry"])
}

func TestMetadataPushNotAuthorized(t *testing.T) {
	p := NewMetadataPublisher(MetadataPublisherOptions{ClientID: "cid", HomeGuildID: "HOME"},
		&tokenProviderStub{err: models.NewAppError(models.CodeNotAuthorized, "User has not authorized the bot")},
		&membershipRepoStub{})

	err := p.Push(context.Background(), "U1")
	assert.True(t, models.IsCode(err, models.CodeNotAuthorized))
}

func TestMetadataPushSkipsNonMembers(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	memberships := &membershipRepoStub{
		getCurrentByUserFn: func(context.Context, string, string) (*models.Membership, error) {
			return nil, nil
		},
	}

	p := NewMetadataPublisher(MetadataPublisherOptions{
		ClientID:    "cid",
		HomeGuildID: "HOME",
		APIBaseURL:  srv.URL,
	}, &tokenProviderStub{token: "tok"}, memberships)

	require.NoError(t, p.Push(context.Background(), "U1"))
	assert.False(t, called)
}

func TestMetadataPushNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	memberships := &membershipRepoStub{
		getCurrentByUserFn: func(_ context.Context, guildID, _ string) (*models.Membership, error) {
			return currentMembership(guildID), nil
		},
	}

	p := NewMetadataPublisher(MetadataPublisherOptions{
		ClientID:    "cid",
		HomeGuildID: "HOME",
		APIBaseURL:  srv.URL,
	}, &tokenProviderStub{token: "tok"}, memberships)

	err := p.Push(context.Background(), "U1")
	assert.True(t, models.IsCode(err, models.CodeMetadataPushFailed))
}
