package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"socbot/internal/cache"
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

type guildRepoStub struct {
	getFn           func(context.Context, string) (*models.Guild, error)
	ensureExistsFn  func(context.Context, string) error
	setMemberRoleFn func(context.Context, string, *string) error
	touchFn         func(context.Context, string) error
}

func (s *guildRepoStub) Get(ctx context.Context, guildID string) (*models.Guild, error) {
	return s.getFn(ctx, guildID)
}
func (s *guildRepoStub) EnsureExists(ctx context.Context, guildID string) error {
	return s.ensureExistsFn(ctx, guildID)
}
func (s *guildRepoStub) SetMemberRole(ctx context.Context, guildID string, roleID *string) error {
	return s.setMemberRoleFn(ctx, guildID, roleID)
}
func (s *guildRepoStub) TouchMembersUpdated(ctx context.Context, guildID string) error {
	return s.touchFn(ctx, guildID)
}

type discordUserRepoStub struct {
	getFn             func(context.Context, string) (*models.DiscordUser, error)
	ensureExistsFn    func(context.Context, string) error
	setRefreshTokenFn func(context.Context, string, string) error
}

func (s *discordUserRepoStub) Get(ctx context.Context, userID string) (*models.DiscordUser, error) {
	return s.getFn(ctx, userID)
}
func (s *discordUserRepoStub) EnsureExists(ctx context.Context, userID string) error {
	return s.ensureExistsFn(ctx, userID)
}
func (s *discordUserRepoStub) SetRefreshToken(ctx context.Context, userID, refreshToken string) error {
	return s.setRefreshTokenFn(ctx, userID, refreshToken)
}

type codeStoreStub struct {
	issueFn  func(context.Context, string, string) (string, error)
	redeemFn func(context.Context, string) (*cache.CodePayload, error)
}

func (s *codeStoreStub) Issue(ctx context.Context, userID, email string) (string, error) {
	return s.issueFn(ctx, userID, email)
}
func (s *codeStoreStub) Redeem(ctx context.Context, code string) (*cache.CodePayload, error) {
	return s.redeemFn(ctx, code)
}

type mailerStub struct {
	sendCodeFn func(context.Context, string, string) error
}

func (s *mailerStub) SendCode(ctx context.Context, email, code string) error {
	return s.sendCodeFn(ctx, email, code)
}

type roleSyncStub struct {
	grantFn  func(context.Context, string, string, string) error
	revokeFn func(context.Context, string, string, string) error
}

func (s *roleSyncStub) Grant(ctx context.Context, guildID, userID, roleID string) error {
	return s.grantFn(ctx, guildID, userID, roleID)
}
func (s *roleSyncStub) Revoke(ctx context.Context, guildID, userID, roleID string) error {
	return s.revokeFn(ctx, guildID, userID, roleID)
}

type metadataStub struct {
	pushFn func(context.Context, string) error
}

func (s *metadataStub) Push(ctx context.Context, userID string) error {
	return s.pushFn(ctx, userID)
}

type serviceStubs struct {
	memberships *membershipRepoStub
	guilds      *guildRepoStub
	users       *discordUserRepoStub
	codes       *codeStoreStub
	mailer      *mailerStub
	roles       *roleSyncStub
	metadata    *metadataStub
}

// newTestService wires a service with benign stubs; tests override the
// fields they care about.
func newTestService() (*MembershipService, *serviceStubs) {
	stubs := &serviceStubs{
		memberships: &membershipRepoStub{
			getCurrentByEmailFn: func(context.Context, string, string) (*models.Membership, error) { return nil, nil },
			getCurrentByUserFn:  func(context.Context, string, string) (*models.Membership, error) { return nil, nil },
			linkFn:              func(context.Context, string, string, string) error { return nil },
			unlinkFn:            func(context.Context, string, string) error { return nil },
			bulkUpsertFn: func(_ context.Context, _ string, rows []models.Membership) (int64, error) {
				return int64(len(rows)), nil
			},
			deleteByGuildFn: func(context.Context, string) error { return nil },
			currentStatsFn: func(context.Context, string) ([]repository.MembershipStat, error) {
				return nil, nil
			},
		},
		guilds: &guildRepoStub{
			getFn:           func(context.Context, string) (*models.Guild, error) { return nil, nil },
			ensureExistsFn:  func(context.Context, string) error { return nil },
			setMemberRoleFn: func(context.Context, string, *string) error { return nil },
			touchFn:         func(context.Context, string) error { return nil },
		},
		users: &discordUserRepoStub{
			getFn: func(_ context.Context, userID string) (*models.DiscordUser, error) {
				return &models.DiscordUser{UserID: userID}, nil
			},
			ensureExistsFn:    func(context.Context, string) error { return nil },
			setRefreshTokenFn: func(context.Context, string, string) error { return nil },
		},
		codes: &codeStoreStub{
			issueFn: func(context.Context, string, string) (string, error) { return "abc123defg", nil },
			redeemFn: func(context.Context, string) (*cache.CodePayload, error) {
				return nil, models.NewAppError(models.CodeInvalidCode, "Invalid or expired verification code")
			},
		},
		mailer: &mailerStub{
			sendCodeFn: func(context.Context, string, string) error { return nil },
		},
		roles: &roleSyncStub{
			grantFn:  func(context.Context, string, string, string) error { return nil },
			revokeFn: func(context.Context, string, string, string) error { return nil },
		},
		metadata: &metadataStub{
			pushFn: func(context.Context, string) error { return nil },
		},
	}

	svc := NewMembershipService(
		stubs.memberships, stubs.guilds, stubs.users,
		stubs.codes, stubs.mailer, stubs.roles, stubs.metadata,
	)
	return svc, stubs
}

func testMembership(guildID, email string) *models.Membership {
	return &models.Membership{
		GuildID:    guildID,
		Email:      email,
		CasedEmail: email,
		Name:       "Ada Lovelace",
		Type:       models.MembershipTypeStudent,
		StartDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2099, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func guildWithRole(guildID, roleID string) *models.Guild {
	return &models.Guild{GuildID: guildID, MemberRoleID: &roleID}
}

func TestRequestLinkAlreadyLinked(t *testing.T) {
	svc, stubs := newTestService()

	stubs.memberships.getCurrentByUserFn = func(_ context.Context, guildID, _ string) (*models.Membership, error) {
		return testMembership(guildID, "a@b.com"), nil
	}
	var issued bool
	stubs.codes.issueFn = func(context.Context, string, string) (string, error) {
		issued = true
		return "", nil
	}

	err := svc.RequestLink(context.Background(), "G1", "a@b.com", "U1")
	assert.True(t, models.IsCode(err, models.CodeAlreadyLinked))
	assert.False(t, issued, "no code may be issued for an already linked user")
}

func TestRequestLinkNotAMember(t *testing.T) {
	svc, stubs := newTestService()

	var issued, mailed bool
	stubs.codes.issueFn = func(context.Context, string, string) (string, error) {
		issued = true
		return "", nil
	}
	stubs.mailer.sendCodeFn = func(context.Context, string, string) error {
		mailed = true
		return nil
	}

	err := svc.RequestLink(context.Background(), "G1", "nobody@b.com", "U1")
	assert.True(t, models.IsCode(err, models.CodeNotAMember))
	assert.False(t, issued)
	assert.False(t, mailed)
}

func TestRequestLinkIssuesAndMails(t *testing.T) {
	svc, stubs := newTestService()

	membership := testMembership("G1", "ada@b.com")
	membership.CasedEmail = "Ada@B.com"
	stubs.memberships.getCurrentByEmailFn = func(_ context.Context, _, email string) (*models.Membership, error) {
		assert.Equal(t, "Ada@B.com", email)
		return membership, nil
	}

	var issuedUser, issuedEmail string
	stubs.codes.issueFn = func(_ context.Context, userID, email string) (string, error) {
		issuedUser, issuedEmail = userID, email
		return "abc123defg", nil
	}

	var mailedTo, mailedCode string
	stubs.mailer.sendCodeFn = func(_ context.Context, email, code string) error {
		mailedTo, mailedCode = email, code
		return nil
	}

	require.NoError(t, svc.RequestLink(context.Background(), "G1", "Ada@B.com", "U1"))
	assert.Equal(t, "U1", issuedUser)
	assert.Equal(t, "ada@b.com", issuedEmail)
	assert.Equal(t, "Ada@B.com", mailedTo, "mail goes to the address as the member typed it")
	assert.Equal(t, "abc123defg", mailedCode)
}

func TestRequestLinkMailFailureStillSucceeds(t *testing.T) {
	svc, stubs := newTestService()

	stubs.memberships.getCurrentByEmailFn = func(_ context.Context, guildID, email string) (*models.Membership, error) {
		return testMembership(guildID, email), nil
	}
	stubs.mailer.sendCodeFn = func(context.Context, string, string) error {
		return models.NewInternalError(assert.AnError)
	}

	assert.NoError(t, svc.RequestLink(context.Background(), "G1", "a@b.com", "U1"))
}

func TestRedeemLinkSuccess(t *testing.T) {
	svc, stubs := newTestService()

	stubs.codes.redeemFn = func(context.Context, string) (*cache.CodePayload, error) {
		return &cache.CodePayload{UserID: "U1", Email: "a@b.com"}, nil
	}
	stubs.memberships.getCurrentByEmailFn = func(_ context.Context, guildID, email string) (*models.Membership, error) {
		return testMembership(guildID, email), nil
	}

	var linked, ensured bool
	stubs.memberships.linkFn = func(_ context.Context, guildID, email, userID string) error {
		linked = true
		assert.Equal(t, "G1", guildID)
		assert.Equal(t, "a@b.com", email)
		assert.Equal(t, "U1", userID)
		return nil
	}
	stubs.users.ensureExistsFn = func(_ context.Context, userID string) error {
		ensured = true
		assert.Equal(t, "U1", userID)
		return nil
	}

	stubs.guilds.getFn = func(_ context.Context, guildID string) (*models.Guild, error) {
		return guildWithRole(guildID, "R1"), nil
	}
	var grantedRole string
	stubs.roles.grantFn = func(_ context.Context, _, _, roleID string) error {
		grantedRole = roleID
		return nil
	}

	result, err := svc.RedeemLink(context.Background(), "G1", "abc123defg", "U1")
	require.NoError(t, err)
	require.NotNil(t, result.Membership)
	assert.NoError(t, result.RoleWarning)
	assert.True(t, linked)
	assert.True(t, ensured)
	assert.Equal(t, "R1", grantedRole)
}

func TestRedeemLinkInvalidCode(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.RedeemLink(context.Background(), "G1", "wrong", "U1")
	assert.True(t, models.IsCode(err, models.CodeInvalidCode))
}

func TestRedeemLinkUserMismatch(t *testing.T) {
	svc, stubs := newTestService()

	stubs.codes.redeemFn = func(context.Context, string) (*cache.CodePayload, error) {
		return &cache.CodePayload{UserID: "U1", Email: "a@b.com"}, nil
	}
	var lookedUp bool
	stubs.memberships.getCurrentByEmailFn = func(context.Context, string, string) (*models.Membership, error) {
		lookedUp = true
		return nil, nil
	}

	_, err := svc.RedeemLink(context.Background(), "G1", "abc123defg", "U2")
	assert.True(t, models.IsCode(err, models.CodeUserMismatch))
	assert.False(t, lookedUp, "mismatch is decided before any membership lookup")
}

func TestRedeemLinkMembershipGone(t *testing.T) {
	svc, stubs := newTestService()

	stubs.codes.redeemFn = func(context.Context, string) (*cache.CodePayload, error) {
		return &cache.CodePayload{UserID: "U1", Email: "a@b.com"}, nil
	}
	var linked bool
	stubs.memberships.linkFn = func(context.Context, string, string, string) error {
		linked = true
		return nil
	}

	_, err := svc.RedeemLink(context.Background(), "G1", "abc123defg", "U1")
	assert.True(t, models.IsCode(err, models.CodeMembershipNotFound))
	assert.False(t, linked)
}

func TestRedeemLinkRoleFailureIsWarning(t *testing.T) {
	svc, stubs := newTestService()

	stubs.codes.redeemFn = func(context.Context, string) (*cache.CodePayload, error) {
		return &cache.CodePayload{UserID: "U1", Email: "a@b.com"}, nil
	}
	stubs.memberships.getCurrentByEmailFn = func(_ context.Context, guildID, email string) (*models.Membership, error) {
		return testMembership(guildID, email), nil
	}
	stubs.guilds.getFn = func(_ context.Context, guildID string) (*models.Guild, error) {
		return guildWithRole(guildID, "R1"), nil
	}
	stubs.roles.grantFn = func(context.Context, string, string, string) error {
		return models.NewAppError(models.CodePermissionDenied, "Missing permission to manage the member role")
	}

	result, err := svc.RedeemLink(context.Background(), "G1", "abc123defg", "U1")
	require.NoError(t, err, "role failures never fail the link")
	assert.True(t, models.IsCode(result.RoleWarning, models.CodePermissionDenied))
}

func TestRedeemLinkNoRoleConfigured(t *testing.T) {
	svc, stubs := newTestService()

	stubs.codes.redeemFn = func(context.Context, string) (*cache.CodePayload, error) {
		return &cache.CodePayload{UserID: "U1", Email: "a@b.com"}, nil
	}
	stubs.memberships.getCurrentByEmailFn = func(_ context.Context, guildID, email string) (*models.Membership, error) {
		return testMembership(guildID, email), nil
	}
	stubs.guilds.getFn = func(_ context.Context, guildID string) (*models.Guild, error) {
		return &models.Guild{GuildID: guildID}, nil
	}
	var granted bool
	stubs.roles.grantFn = func(context.Context, string, string, string) error {
		granted = true
		return nil
	}

	result, err := svc.RedeemLink(context.Background(), "G1", "abc123defg", "U1")
	require.NoError(t, err)
	assert.NoError(t, result.RoleWarning)
	assert.False(t, granted)
}

func TestRedeemLinkMetadataOnlyWithRefreshToken(t *testing.T) {
	svc, stubs := newTestService()

	stubs.codes.redeemFn = func(context.Context, string) (*cache.CodePayload, error) {
		return &cache.CodePayload{UserID: "U1", Email: "a@b.com"}, nil
	}
	stubs.memberships.getCurrentByEmailFn = func(_ context.Context, guildID, email string) (*models.Membership, error) {
		return testMembership(guildID, email), nil
	}

	var pushed bool
	stubs.metadata.pushFn = func(context.Context, string) error {
		pushed = true
		return nil
	}

	// Default stub user has no refresh token.
	_, err := svc.RedeemLink(context.Background(), "G1", "abc123defg", "U1")
	require.NoError(t, err)
	assert.False(t, pushed)

	refresh := "refresh"
	stubs.users.getFn = func(_ context.Context, userID string) (*models.DiscordUser, error) {
		return &models.DiscordUser{UserID: userID, RefreshToken: &refresh}, nil
	}

	_, err = svc.RedeemLink(context.Background(), "G1", "abc123defg", "U1")
	require.NoError(t, err)
	assert.True(t, pushed)
}

func TestUnlinkRevokesConfiguredRole(t *testing.T) {
	svc, stubs := newTestService()

	var unlinked bool
	stubs.memberships.unlinkFn = func(_ context.Context, guildID, userID string) error {
		unlinked = true
		assert.Equal(t, "G1", guildID)
		assert.Equal(t, "U1", userID)
		return nil
	}
	stubs.guilds.getFn = func(_ context.Context, guildID string) (*models.Guild, error) {
		return guildWithRole(guildID, "R1"), nil
	}
	var revokedRole string
	stubs.roles.revokeFn = func(_ context.Context, _, _, roleID string) error {
		revokedRole = roleID
		return nil
	}

	require.NoError(t, svc.Unlink(context.Background(), "G1", "U1"))
	assert.True(t, unlinked)
	assert.Equal(t, "R1", revokedRole)
}

func TestUnlinkRevokeFailureIsNotFatal(t *testing.T) {
	svc, stubs := newTestService()

	stubs.guilds.getFn = func(_ context.Context, guildID string) (*models.Guild, error) {
		return guildWithRole(guildID, "R1"), nil
	}
	stubs.roles.revokeFn = func(context.Context, string, string, string) error {
		return models.NewAppError(models.CodeMemberNotFound, "Member not found in this server")
	}

	assert.NoError(t, svc.Unlink(context.Background(), "G1", "U1"))
}

func TestSetAndUnsetMemberRole(t *testing.T) {
	svc, stubs := newTestService()

	var gotRole *string
	stubs.guilds.setMemberRoleFn = func(_ context.Context, _ string, roleID *string) error {
		gotRole = roleID
		return nil
	}

	require.NoError(t, svc.SetMemberRole(context.Background(), "G1", "R1"))
	require.NotNil(t, gotRole)
	assert.Equal(t, "R1", *gotRole)

	require.NoError(t, svc.UnsetMemberRole(context.Background(), "G1"))
	assert.Nil(t, gotRole)
}

const importCSV = `first_name,last_name,preferred_name,email,mobile,type,joined_date,end_date,price_paid
Ada,Lovelace,,Ada@B.com,0400000000,student,2025-03-01,2026-03-01,5.00
Charles,Babbage,Chuck,chuck@b.com,,alumni,2024-03-01,2026-03-01,10.00
`

func TestImportMembers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(importCSV))
	}))
	defer srv.Close()

	svc, stubs := newTestService()

	var ensured, touched bool
	stubs.guilds.ensureExistsFn = func(context.Context, string) error {
		ensured = true
		return nil
	}
	stubs.guilds.touchFn = func(context.Context, string) error {
		touched = true
		return nil
	}

	var gotRows []models.Membership
	stubs.memberships.bulkUpsertFn = func(_ context.Context, guildID string, rows []models.Membership) (int64, error) {
		assert.Equal(t, "G1", guildID)
		gotRows = rows
		return int64(len(rows)), nil
	}

	count, err := svc.ImportMembers(context.Background(), "G1", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.True(t, ensured)
	assert.True(t, touched)

	require.Len(t, gotRows, 2)
	assert.Equal(t, "Ada@B.com", gotRows[0].CasedEmail)
	assert.Equal(t, "Ada Lovelace", gotRows[0].Name)
	require.NotNil(t, gotRows[0].Phone)
	assert.Equal(t, "0400000000", *gotRows[0].Phone)
	assert.Equal(t, models.MembershipTypeStudent, gotRows[0].Type)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), gotRows[0].StartDate)

	// Preferred name wins; an empty mobile stays nil.
	assert.Equal(t, "Chuck Babbage", gotRows[1].Name)
	assert.Nil(t, gotRows[1].Phone)
	assert.Equal(t, models.MembershipTypeAlumni, gotRows[1].Type)
}

func TestImportMembersRejectsBadRows(t *testing.T) {
	cases := []struct {
		name string
		csv  string
	}{
		{
			name: "unknown type",
			csv: "first_name,last_name,preferred_name,email,mobile,type,joined_date,end_date,price_paid\n" +
				"Ada,Lovelace,,a@b.com,,wizard,2025-03-01,2026-03-01,5.00\n",
		},
		{
			name: "invalid email",
			csv: "first_name,last_name,preferred_name,email,mobile,type,joined_date,end_date,price_paid\n" +
				"Ada,Lovelace,,not-an-email,,student,2025-03-01,2026-03-01,5.00\n",
		},
		{
			name: "invalid date",
			csv: "first_name,last_name,preferred_name,email,mobile,type,joined_date,end_date,price_paid\n" +
				"Ada,Lovelace,,a@b.com,,student,yesterday,2026-03-01,5.00\n",
		},
		{
			name: "header only",
			csv:  "first_name,last_name,preferred_name,email,mobile,type,joined_date,end_date,price_paid\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.csv))
			}))
			defer srv.Close()

			svc, stubs := newTestService()
			var upserted bool
			stubs.memberships.bulkUpsertFn = func(_ context.Context, _ string, rows []models.Membership) (int64, error) {
				upserted = true
				return int64(len(rows)), nil
			}

			_, err := svc.ImportMembers(context.Background(), "G1", srv.URL)
			assert.True(t, models.IsCode(err, models.CodeValidationError))
			assert.False(t, upserted, "a bad row rejects the whole import")
		})
	}
}

func TestImportMembersDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	svc, _ := newTestService()
	_, err := svc.ImportMembers(context.Background(), "G1", srv.URL)
	assert.True(t, models.IsCode(err, models.CodeValidationError))
}

func TestClearMemberships(t *testing.T) {
	svc, stubs := newTestService()

	var cleared string
	stubs.memberships.deleteByGuildFn = func(_ context.Context, guildID string) error {
		cleared = guildID
		return nil
	}

	require.NoError(t, svc.ClearMemberships(context.Background(), "G1"))
	assert.Equal(t, "G1", cleared)
}

func TestAnonymisedStats(t *testing.T) {
	svc, stubs := newTestService()

	updated := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	stubs.guilds.getFn = func(_ context.Context, guildID string) (*models.Guild, error) {
		return &models.Guild{GuildID: guildID, MembersLastUpdated: &updated}, nil
	}
	stubs.memberships.currentStatsFn = func(context.Context, string) ([]repository.MembershipStat, error) {
		return []repository.MembershipStat{
			{Type: models.MembershipTypeStudent, StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
			{Type: models.MembershipTypeAlumni, StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		}, nil
	}

	report, err := svc.AnonymisedStats(context.Background(), "G1")
	require.NoError(t, err)
	assert.Len(t, report.Members, 2)
	require.NotNil(t, report.MembersLastUpdated)
	assert.Equal(t, updated, *report.MembersLastUpdated)
}

func TestAnonymisedStatsUnknownGuild(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AnonymisedStats(context.Background(), "G404")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUpdateMetadataRequiresAuthorization(t *testing.T) {
	svc, stubs := newTestService()

	var pushed bool
	stubs.metadata.pushFn = func(context.Context, string) error {
		pushed = true
		return nil
	}

	err := svc.UpdateMetadata(context.Background(), "U1")
	assert.True(t, models.IsCode(err, models.CodeNotAuthorized))
	assert.False(t, pushed)

	refresh := "refresh"
	stubs.users.getFn = func(_ context.Context, userID string) (*models.DiscordUser, error) {
		return &models.DiscordUser{UserID: userID, RefreshToken: &refresh}, nil
	}

	require.NoError(t, svc.UpdateMetadata(context.Background(), "U1"))
	assert.True(t, pushed)
}
