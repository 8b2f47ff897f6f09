package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuildGetMissing(t *testing.T) {
	repo := NewGuildRepository(newTestDB(t))

	g, err := repo.Get(context.Background(), "G1")
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestGuildSetMemberRoleUpsert(t *testing.T) {
	repo := NewGuildRepository(newTestDB(t))
	ctx := context.Background()

	roleID := "R1"
	require.NoError(t, repo.SetMemberRole(ctx, "G1", &roleID))

	g, err := repo.Get(ctx, "G1")
	require.NoError(t, err)
	require.NotNil(t, g)
	require.NotNil(t, g.MemberRoleID)
	assert.Equal(t, "R1", *g.MemberRoleID)

	// Second set updates the existing row.
	newRole := "R2"
	require.NoError(t, repo.SetMemberRole(ctx, "G1", &newRole))

	g, err = repo.Get(ctx, "G1")
	require.NoError(t, err)
	require.NotNil(t, g.MemberRoleID)
	assert.Equal(t, "R2", *g.MemberRoleID)

	// Clearing the role keeps the row but disables grants.
	require.NoError(t, repo.SetMemberRole(ctx, "G1", nil))

	g, err = repo.Get(ctx, "G1")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Nil(t, g.MemberRoleID)
}

func TestGuildEnsureExistsIdempotent(t *testing.T) {
	repo := NewGuildRepository(newTestDB(t))
	ctx := context.Background()

	roleID := "R1"
	require.NoError(t, repo.SetMemberRole(ctx, "G1", &roleID))

	// EnsureExists must not clobber existing configuration.
	require.NoError(t, repo.EnsureExists(ctx, "G1"))

	g, err := repo.Get(ctx, "G1")
	require.NoError(t, err)
	require.NotNil(t, g.MemberRoleID)
	assert.Equal(t, "R1", *g.MemberRoleID)
}

func TestGuildTouchMembersUpdated(t *testing.T) {
	repo := NewGuildRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.EnsureExists(ctx, "G1"))
	require.NoError(t, repo.TouchMembersUpdated(ctx, "G1"))

	g, err := repo.Get(ctx, "G1")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.NotNil(t, g.MembersLastUpdated)
}
