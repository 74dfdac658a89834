package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmauth/internal/metrics"
	"crmauth/internal/models"
	"crmauth/internal/storage"
	"crmauth/internal/storage/memory"
)

type serviceFixture struct {
	svc   *Service
	store *memory.Storage
	clock time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	store := memory.New()
	hasher := NewPasswordHasher(4)
	issuer := NewTokenIssuer("test-secret", 30*time.Minute, 7*24*time.Hour)

	svc := NewService(store, store, store, nil, hasher, issuer, Config{
		LockoutThreshold: 5,
		LockoutDuration:  30 * time.Minute,
	}, zerolog.Nop())

	f := &serviceFixture{svc: svc, store: store, clock: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	svc.now = func() time.Time { return f.clock }
	issuer.now = func() time.Time { return f.clock }
	return f
}

func (f *serviceFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *serviceFixture) addUser(t *testing.T, username, email, password string) *models.User {
	t.Helper()

	user, err := f.svc.CreateAccount(context.Background(), CreateAccountParams{
		Username: username,
		Email:    email,
		Password: password,
		IsActive: true,
	})
	require.NoError(t, err)
	return user
}

func TestService_AuthenticateByUsernameOrEmail(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")

	byUsername, err := f.svc.Authenticate(context.Background(), "alice", "Secret123!")
	require.NoError(t, err)
	byEmail, err := f.svc.Authenticate(context.Background(), "alice@example.com", "Secret123!")
	require.NoError(t, err)

	assert.Equal(t, byUsername.ID, byEmail.ID)
	require.NotNil(t, byUsername.LastLogin)
}

func TestService_AuthenticateUniformFailures(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")

	_, err := f.svc.Authenticate(context.Background(), "nobody", "Secret123!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Authenticate(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_AuthenticateRejectsDisabledAccounts(t *testing.T) {
	f := newServiceFixture(t)
	user := f.addUser(t, "alice", "alice@example.com", "Secret123!")

	user.IsActive = false
	f.store.SetUser(user)
	_, err := f.svc.Authenticate(context.Background(), "alice", "Secret123!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	user.IsActive = true
	user.IsDeleted = true
	f.store.SetUser(user)
	_, err = f.svc.Authenticate(context.Background(), "alice", "Secret123!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_LockoutAfterThreshold(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.Authenticate(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Locked now: even the correct password is rejected.
	_, err := f.svc.Authenticate(ctx, "alice", "Secret123!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	stored, err := f.store.GetByIdentifier(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stored.LockedUntil)
	assert.Equal(t, f.clock.Add(30*time.Minute), *stored.LockedUntil)
	assert.Equal(t, 5, stored.FailedLoginAttempts)
}

func TestService_LockoutExpiresAndCounterResets(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.Authenticate(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	f.advance(31 * time.Minute)

	user, err := f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)
	assert.Equal(t, 0, user.FailedLoginAttempts)

	stored, err := f.store.GetByIdentifier(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
}

func TestService_SuccessfulLoginResetsCounter(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.svc.Authenticate(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	// Counter is back to zero: four more failures stay below the threshold.
	for i := 0; i < 4; i++ {
		_, err := f.svc.Authenticate(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)
}

func TestService_IssueSessionAndRefresh(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	user, err := f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	session, err := f.svc.IssueSession(ctx, user, ClientMeta{UserAgent: "test-agent", IP: "10.0.0.1"})
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken)
	require.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, int64((30 * time.Minute).Seconds()), session.ExpiresIn)

	claims, err := f.svc.VerifyAccess(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	// The refresh token is not rotated: the same one exchanges repeatedly.
	first, err := f.svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	f.advance(time.Second)
	second, err := f.svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestService_RefreshRejectsAccessToken(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	user, err := f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)
	session, err := f.svc.IssueSession(ctx, user, ClientMeta{})
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, session.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestService_RefreshRejectsExpiredToken(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	user, err := f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)
	session, err := f.svc.IssueSession(ctx, user, ClientMeta{})
	require.NoError(t, err)

	f.advance(7*24*time.Hour + time.Minute)

	_, err = f.svc.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestService_RefreshReloadsRoles(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	user, err := f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)
	session, err := f.svc.IssueSession(ctx, user, ClientMeta{})
	require.NoError(t, err)

	original, err := f.svc.VerifyAccess(ctx, session.AccessToken)
	require.NoError(t, err)
	require.Empty(t, original.Roles)
	require.Empty(t, original.Permissions)

	// Grant a role after issuance; the next refresh must pick it up.
	stored, err := f.store.GetByIdentifier(ctx, "alice")
	require.NoError(t, err)
	stored.Roles = []models.Role{{
		ID:   1,
		Name: "Manager",
		Permissions: []models.Permission{
			{Code: "lead:view"},
			{Code: "lead:update"},
		},
	}}
	f.store.SetUser(stored)

	access, err := f.svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)

	claims, err := f.svc.VerifyAccess(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, []string{"Manager"}, claims.Roles)
	assert.Equal(t, []string{"lead:update", "lead:view"}, claims.Permissions)
}

func TestService_RefreshRejectsDeactivatedAccount(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	user, err := f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)
	session, err := f.svc.IssueSession(ctx, user, ClientMeta{})
	require.NoError(t, err)

	user.IsActive = false
	f.store.SetUser(user)

	_, err = f.svc.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestService_RevokeBlocksRefresh(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	user, err := f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)
	session, err := f.svc.IssueSession(ctx, user, ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, session.RefreshToken, "user logout"))

	_, err = f.svc.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRejected)

	// Revoking again is a no-op success.
	assert.NoError(t, f.svc.Revoke(ctx, session.RefreshToken, "user logout"))
}

func TestService_RevokeRejectsInvalidToken(t *testing.T) {
	f := newServiceFixture(t)

	err := f.svc.Revoke(context.Background(), "not-a-jwt", "")
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestService_RevokeAllCountsActiveTokens(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	user, err := f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	sessions := make([]*Session, 0, 3)
	for i := 0; i < 3; i++ {
		f.advance(time.Second)
		session, err := f.svc.IssueSession(ctx, user, ClientMeta{})
		require.NoError(t, err)
		sessions = append(sessions, session)
	}

	count, err := f.svc.RevokeAll(ctx, user.ID, "security reset")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	for _, session := range sessions {
		_, err := f.svc.Refresh(ctx, session.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenRejected)
	}

	count, err = f.svc.RevokeAll(ctx, user.ID, "security reset")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestService_ChangePassword(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	user, err := f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)
	session, err := f.svc.IssueSession(ctx, user, ClientMeta{})
	require.NoError(t, err)

	// Wrong current password changes nothing.
	err = f.svc.ChangePassword(ctx, user, "wrong", "NewSecret456!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	require.NoError(t, f.svc.ChangePassword(ctx, user, "Secret123!", "NewSecret456!"))

	_, err = f.svc.Authenticate(ctx, "alice", "Secret123!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "alice", "NewSecret456!")
	require.NoError(t, err)

	// Every outstanding session was revoked.
	_, err = f.svc.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestService_CreateAccountConflicts(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	_, err := f.svc.CreateAccount(ctx, CreateAccountParams{
		Username: "alice",
		Email:    "other@example.com",
		Password: "x",
		IsActive: true,
	})
	assert.ErrorIs(t, err, ErrAccountConflict)

	_, err = f.svc.CreateAccount(ctx, CreateAccountParams{
		Username: "bob",
		Email:    "alice@example.com",
		Password: "x",
		IsActive: true,
	})
	assert.ErrorIs(t, err, ErrAccountConflict)
}

func TestService_PurgeExpiredTokens(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	user, err := f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)
	_, err = f.svc.IssueSession(ctx, user, ClientMeta{})
	require.NoError(t, err)

	count, err := f.svc.PurgeExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	f.advance(7*24*time.Hour + time.Minute)

	count, err = f.svc.PurgeExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// failingAccounts simulates a store outage on lookups.
type failingAccounts struct {
	storage.AccountStore
}

func (failingAccounts) GetByIdentifier(context.Context, string) (*models.User, error) {
	return nil, errors.New("connection reset")
}

func TestService_AuthenticateCountsStoreErrors(t *testing.T) {
	store := memory.New()
	hasher := NewPasswordHasher(4)
	issuer := NewTokenIssuer("test-secret", 30*time.Minute, 7*24*time.Hour)

	svc := NewService(failingAccounts{store}, store, store, nil, hasher, issuer, Config{}, zerolog.Nop())

	errCounter := metrics.LoginAttempts.WithLabelValues(metrics.OutcomeError)
	before := testutil.ToFloat64(errCounter)

	_, err := svc.Authenticate(context.Background(), "alice", "Secret123!")
	require.Error(t, err)
	// A store outage is not a credential failure.
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, before+1, testutil.ToFloat64(errCounter))
}

func TestService_AuditTrail(t *testing.T) {
	f := newServiceFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Secret123!")
	ctx := context.Background()

	_, err := f.svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	actions := make([]string, 0)
	for _, entry := range f.store.AuditEntries() {
		actions = append(actions, entry.Action)
	}
	assert.Contains(t, actions, "account.created")
	assert.Contains(t, actions, "login.failed")
	assert.Contains(t, actions, "login.succeeded")
}
