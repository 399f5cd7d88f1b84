package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore"
)

// openTestDB connects to AUTHCORE_TEST_DATABASE_URL, migrates it and empties
// every table. Tests are skipped when the variable is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("AUTHCORE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("AUTHCORE_TEST_DATABASE_URL not set")
	}
	require.NoError(t, Migrate(dsn, "up"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := Open(ctx, dsn, PoolConfig{MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `TRUNCATE activities, api_keys, accounts`)
	require.NoError(t, err)
	return db
}

func newAccount(email string, created time.Time) *authcore.Account {
	return &authcore.Account{
		ID:             uuid.NewString(),
		Name:           "User " + email,
		Email:          email,
		PasswordDigest: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		Role:           authcore.RoleUser,
		Active:         true,
		CreatedAt:      created.UTC().Truncate(time.Microsecond),
		UpdatedAt:      created.UTC().Truncate(time.Microsecond),
	}
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "", PoolConfig{})
	assert.Error(t, err)
	assert.Error(t, Migrate("", "up"))
	assert.Error(t, Migrate("postgres://localhost/x", "sideways"))
}

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, mapError(sql.ErrNoRows), authcore.ErrRecordNotFound)
	assert.NoError(t, mapError(nil))
}

func TestAccountsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := New(db).Accounts
	ctx := context.Background()
	now := time.Now()

	a := newAccount("ann@x.com", now)
	exp := now.Add(time.Hour).UTC().Truncate(time.Microsecond)
	a.VerificationDigest = "vd"
	a.VerificationExpiresAt = &exp
	require.NoError(t, s.CreateAccount(ctx, a))
	assert.ErrorIs(t, s.CreateAccount(ctx, newAccount("ann@x.com", now)), authcore.ErrRecordConflict)

	got, err := s.GetAccountByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "vd", got.VerificationDigest)
	assert.Nil(t, got.LastLoginAt)

	_, err = s.GetAccountByVerificationDigest(ctx, "vd", now)
	require.NoError(t, err)
	_, err = s.GetAccountByVerificationDigest(ctx, "vd", exp)
	assert.ErrorIs(t, err, authcore.ErrRecordNotFound)

	_, err = s.GetAccountByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, authcore.ErrRecordNotFound)

	require.NoError(t, s.TouchLastLogin(ctx, a.ID, now))
	b := newAccount("bob@x.com", now.Add(time.Second))
	require.NoError(t, s.CreateAccount(ctx, b))
	taken := "ann@x.com"
	assert.ErrorIs(t, s.PatchAccount(ctx, b.ID, authcore.AccountPatch{Email: &taken}), authcore.ErrRecordConflict)

	role := authcore.RoleModerator
	require.NoError(t, s.PatchAccount(ctx, b.ID, authcore.AccountPatch{Ban: &authcore.BanState{Banned: true, Reason: "spam", By: a.ID, At: &exp}}))
	require.NoError(t, s.PatchAccount(ctx, b.ID, authcore.AccountPatch{Role: &role, UpdatedAt: now}))
	got, err = s.GetAccountByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.Banned)
	assert.Equal(t, authcore.RoleModerator, got.Role)

	digest := "new-hash"
	consume := authcore.AccountPatch{PasswordDigest: &digest, Reset: &authcore.TokenState{}, ExpectResetDigest: "rd"}
	assert.ErrorIs(t, s.PatchAccount(ctx, b.ID, consume), authcore.ErrRecordNotFound)

	require.NoError(t, s.DeleteAccount(ctx, a.ID))
	assert.ErrorIs(t, s.DeleteAccount(ctx, a.ID), authcore.ErrRecordNotFound)
}

func TestAccountsListAndStats(t *testing.T) {
	db := openTestDB(t)
	s := New(db).Accounts
	ctx := context.Background()
	base := time.Now()

	for i, email := range []string{"amy@x.com", "ben@x.com", "cat_1@x.com"} {
		a := newAccount(email, base.Add(time.Duration(i)*time.Minute))
		if i == 2 {
			a.Banned = true
			a.Role = authcore.RoleAdmin
		}
		require.NoError(t, s.CreateAccount(ctx, a))
	}

	q := authcore.AccountQuery{Limit: 2}
	q.Normalize()
	got, total, err := s.ListAccounts(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, got, 2)
	assert.Equal(t, "cat_1@x.com", got[0].Email)

	q = authcore.AccountQuery{Search: "_1"}
	q.Normalize()
	got, total, err = s.ListAccounts(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, total, "underscore must match literally")
	assert.Equal(t, "cat_1@x.com", got[0].Email)

	stats, err := s.AccountStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 2, stats.ActiveUsers)
	assert.Equal(t, 1, stats.BannedUsers)
	assert.Equal(t, 1, stats.UsersByRole[authcore.RoleAdmin])
}

func TestAPIKeysLifecycle(t *testing.T) {
	db := openTestDB(t)
	stores := New(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	owner := newAccount("ann@x.com", now)
	require.NoError(t, stores.Accounts.CreateAccount(ctx, owner))

	k := &authcore.APIKey{
		ID:          uuid.NewString(),
		AccountID:   owner.ID,
		Name:        "ci",
		Digest:      "digest-1",
		Permissions: []string{"read", "write"},
		RateLimit:   authcore.DefaultAPIKeyRateLimit,
		Active:      true,
		AllowedIPs:  []string{"10.0.0.0/8"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, stores.APIKeys.CreateAPIKey(ctx, k))

	require.NoError(t, stores.APIKeys.RecordAPIKeyUsage(ctx, k.ID, now))
	require.NoError(t, stores.APIKeys.RecordAPIKeyUsage(ctx, k.ID, now))

	got, err := stores.APIKeys.GetAPIKeyByDigest(ctx, "digest-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write"}, got.Permissions)
	assert.Equal(t, []string{"10.0.0.0/8"}, got.AllowedIPs)
	assert.Empty(t, got.AllowedDomains)
	assert.EqualValues(t, 2, got.UsageCount)

	require.NoError(t, stores.APIKeys.RevokeAPIKey(ctx, k.ID, owner.ID, now))
	assert.ErrorIs(t, stores.APIKeys.RevokeAPIKey(ctx, k.ID, uuid.NewString(), now), authcore.ErrRecordNotFound)
	got.UsageCount = 0
	got.Name = "ci-renamed"
	require.NoError(t, stores.APIKeys.UpdateAPIKey(ctx, got))
	got, err = stores.APIKeys.GetAPIKey(ctx, k.ID, owner.ID)
	require.NoError(t, err)
	assert.False(t, got.Active, "update must not reactivate a revoked key")
	assert.Equal(t, "ci-renamed", got.Name)
	assert.EqualValues(t, 2, got.UsageCount, "update must not reset usage")

	_, err = stores.APIKeys.GetAPIKey(ctx, k.ID, uuid.NewString())
	assert.ErrorIs(t, err, authcore.ErrRecordNotFound)

	stats, err := stores.APIKeys.APIKeyStats(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, authcore.APIKeyStats{TotalKeys: 1, ActiveKeys: 0, TotalUsage: 2}, stats)

	n, err := stores.APIKeys.DeleteAPIKeysForAccount(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestActivitiesQueryAndCleanup(t *testing.T) {
	db := openTestDB(t)
	s := New(db).Activities
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	old := authcore.ActivityEvent{ID: uuid.NewString(), Timestamp: now.AddDate(0, 0, -100), Action: authcore.ActionLogin, AccountID: "a", Success: true}
	recent := authcore.ActivityEvent{ID: uuid.NewString(), Timestamp: now, Action: authcore.ActionRegister, AccountID: "a", Success: true,
		Metadata: map[string]string{"source": "test"}}
	s.Emit(ctx, old)
	s.Emit(ctx, recent)
	s.Emit(ctx, recent)

	q := authcore.ActivityQuery{AccountID: "a"}
	q.Normalize()
	events, total, err := s.ListActivities(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, authcore.ActionRegister, events[0].Action)
	assert.Equal(t, "test", events[0].Metadata["source"])

	byAction, err := s.CountActivitiesByAction(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, byAction[authcore.ActionLogin])

	n, err := s.CountActivitiesSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	removed, err := s.DeleteActivitiesBefore(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}
