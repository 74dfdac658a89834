package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"crmauth/internal/events"
	"crmauth/internal/metrics"
	"crmauth/internal/models"
	"crmauth/internal/storage"
)

// Publisher publishes security events. Satisfied by *events.Publisher; nil
// disables publishing.
type Publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

// ClientMeta is advisory client information recorded with issued refresh
// tokens.
type ClientMeta struct {
	UserAgent string
	IP        string
}

// Session is the pair of tokens handed out on successful authentication.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access-token lifetime in seconds
}

// Config is the immutable policy configuration for the Service.
type Config struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
}

// Service orchestrates credential verification, lockout policy, and token
// issuance/rotation/revocation.
type Service struct {
	accounts storage.AccountStore
	tokens   storage.TokenStore
	audit    storage.AuditStore
	pub      Publisher
	hasher   PasswordHasher
	issuer   *TokenIssuer
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService wires the orchestrator. audit and pub may be nil to disable the
// audit trail and event publishing respectively.
func NewService(accounts storage.AccountStore, tokens storage.TokenStore, audit storage.AuditStore, pub Publisher, hasher PasswordHasher, issuer *TokenIssuer, cfg Config, logger zerolog.Logger) *Service {
	if cfg.LockoutThreshold <= 0 {
		cfg.LockoutThreshold = 5
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 30 * time.Minute
	}
	return &Service{
		accounts: accounts,
		tokens:   tokens,
		audit:    audit,
		pub:      pub,
		hasher:   hasher,
		issuer:   issuer,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate verifies an identifier/password pair and applies the lockout
// policy. Every failure mode returns the same ErrInvalidCredentials; the
// distinction stays server-side.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	user, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			metrics.LoginAttempts.WithLabelValues(metrics.OutcomeRejected).Inc()
			return nil, ErrInvalidCredentials
		}
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("look up account: %w", err)
	}

	if !user.Authenticatable() {
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeRejected).Inc()
		s.recordAudit(ctx, &user.ID, "login.rejected", "user", map[string]any{"reason": "disabled"})
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if user.Locked(now) {
		// Skip the hash entirely: the outcome is fixed and hashing is slow.
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeRejected).Inc()
		s.recordAudit(ctx, &user.ID, "login.rejected", "user", map[string]any{"reason": "locked"})
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.HashedPassword) {
		attempts, lockedUntil, ferr := s.accounts.RecordFailure(ctx, user.ID, s.cfg.LockoutThreshold, s.cfg.LockoutDuration, now)
		if ferr != nil {
			metrics.LoginAttempts.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, fmt.Errorf("record failed attempt: %w", ferr)
		}

		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeRejected).Inc()
		s.logger.Warn().Str("username", user.Username).Int("attempts", attempts).Msg("failed login")
		s.recordAudit(ctx, &user.ID, "login.failed", "user", map[string]any{"attempts": attempts})
		s.publish(ctx, events.SubjectLoginFailed, user, map[string]any{"attempts": attempts})

		if lockedUntil != nil {
			metrics.Lockouts.Inc()
			s.logger.Warn().Str("username", user.Username).Time("locked_until", *lockedUntil).Msg("account locked")
			s.recordAudit(ctx, &user.ID, "account.locked", "user", map[string]any{"locked_until": lockedUntil})
			s.publish(ctx, events.SubjectAccountLocked, user, map[string]any{"locked_until": lockedUntil})
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.accounts.RecordLogin(ctx, user.ID, now); err != nil {
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("record login: %w", err)
	}
	user.FailedLoginAttempts = 0
	user.LastLogin = &now

	metrics.LoginAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.logger.Info().Str("username", user.Username).Msg("login succeeded")
	s.recordAudit(ctx, &user.ID, "login.succeeded", "user", nil)
	s.publish(ctx, events.SubjectLoginSucceeded, user, nil)

	return user, nil
}

// IssueSession mints an access/refresh token pair for an authenticated user
// and persists the refresh token's lifecycle record. The record is committed
// before the tokens are returned, so a token the caller holds always has a
// revocable row behind it.
func (s *Service) IssueSession(ctx context.Context, user *models.User, meta ClientMeta) (*Session, error) {
	access, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	refresh, jti, expiresAt, err := s.issuer.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}

	record := &models.RefreshToken{
		Token:     refresh,
		JTI:       jti,
		UserID:    user.ID,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IP,
		IsActive:  true,
		ExpiresAt: expiresAt,
	}
	if err := s.tokens.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	metrics.TokensIssued.WithLabelValues(TokenTypeAccess).Inc()
	metrics.TokensIssued.WithLabelValues(TokenTypeRefresh).Inc()
	s.recordAudit(ctx, &user.ID, "session.issued", "refresh_token", map[string]any{"jti": jti})
	s.publish(ctx, events.SubjectSessionIssued, user, map[string]any{"jti": jti})

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is not rotated: it stays valid until its own expiry
// or explicit revocation. Roles are reloaded so permission changes since
// issuance take effect in the new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.issuer.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		metrics.Refreshes.WithLabelValues(metrics.OutcomeRejected).Inc()
		return "", ErrTokenRejected
	}

	record, err := s.tokens.GetByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			metrics.Refreshes.WithLabelValues(metrics.OutcomeRejected).Inc()
			return "", ErrTokenRejected
		}
		return "", fmt.Errorf("look up refresh token: %w", err)
	}

	now := s.now()
	if !record.Usable(now) {
		metrics.Refreshes.WithLabelValues(metrics.OutcomeRejected).Inc()
		return "", ErrTokenRejected
	}

	if err := s.tokens.MarkUsed(ctx, claims.ID, now); err != nil {
		return "", fmt.Errorf("mark refresh token used: %w", err)
	}

	user, err := s.accounts.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			metrics.Refreshes.WithLabelValues(metrics.OutcomeRejected).Inc()
			return "", ErrTokenRejected
		}
		return "", fmt.Errorf("look up account: %w", err)
	}
	if !user.Authenticatable() {
		metrics.Refreshes.WithLabelValues(metrics.OutcomeRejected).Inc()
		return "", ErrTokenRejected
	}

	access, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return "", err
	}

	metrics.Refreshes.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.TokensIssued.WithLabelValues(TokenTypeAccess).Inc()
	return access, nil
}

// Revoke deactivates the refresh token's lifecycle record. Revoking an
// already-revoked or unknown token is a no-op success; only a token that
// fails verification outright is rejected.
func (s *Service) Revoke(ctx context.Context, refreshToken, reason string) error {
	claims, err := s.issuer.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return ErrTokenRejected
	}
	if reason == "" {
		reason = "user logout"
	}

	if err := s.tokens.Revoke(ctx, claims.ID, reason, s.now()); err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	metrics.TokensRevoked.Inc()
	s.recordAudit(ctx, &claims.UserID, "token.revoked", "refresh_token", map[string]any{"jti": claims.ID, "reason": reason})
	s.publish(ctx, events.SubjectTokenRevoked, &models.User{ID: claims.UserID, Username: claims.Username}, map[string]any{"jti": claims.ID, "reason": reason})
	return nil
}

// RevokeAll deactivates every active refresh token owned by the account and
// returns the count revoked. Used after a password change or security reset.
func (s *Service) RevokeAll(ctx context.Context, userID uint, reason string) (int64, error) {
	if reason == "" {
		reason = "security reset"
	}

	count, err := s.tokens.RevokeAllForUser(ctx, userID, reason, s.now())
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	if count > 0 {
		metrics.TokensRevoked.Add(float64(count))
		s.recordAudit(ctx, &userID, "token.revoked_all", "refresh_token", map[string]any{"count": count, "reason": reason})
		s.publish(ctx, events.SubjectTokenRevoked, &models.User{ID: userID}, map[string]any{"count": count, "reason": reason})
	}
	return count, nil
}

// ChangePassword verifies the current password, replaces the stored hash,
// and revokes all outstanding refresh tokens so every session must
// re-authenticate. A wrong current password mutates nothing.
func (s *Service) ChangePassword(ctx context.Context, user *models.User, currentPassword, newPassword string) error {
	if !s.hasher.Verify(currentPassword, user.HashedPassword) {
		return ErrInvalidCredentials
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	now := s.now()
	if err := s.accounts.UpdatePassword(ctx, user.ID, hashed, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	user.HashedPassword = hashed
	user.PasswordChangedAt = &now

	if _, err := s.RevokeAll(ctx, user.ID, "password changed"); err != nil {
		return err
	}

	s.logger.Info().Str("username", user.Username).Msg("password changed")
	s.recordAudit(ctx, &user.ID, "password.changed", "user", nil)
	s.publish(ctx, events.SubjectPasswordChanged, user, nil)
	return nil
}

// CreateAccountParams describes a new account to provision.
type CreateAccountParams struct {
	Username    string
	Email       string
	FirstName   string
	LastName    string
	Password    string
	IsActive    bool
	IsVerified  bool
	IsSuperuser bool
}

// CreateAccount hashes the initial password and inserts the account.
// Username/email collisions surface as ErrAccountConflict.
func (s *Service) CreateAccount(ctx context.Context, params CreateAccountParams) (*models.User, error) {
	hashed, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:       params.Username,
		Email:          params.Email,
		FirstName:      params.FirstName,
		LastName:       params.LastName,
		HashedPassword: hashed,
		IsActive:       params.IsActive,
		IsVerified:     params.IsVerified,
		IsSuperuser:    params.IsSuperuser,
	}
	if err := s.accounts.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateAccount) {
			return nil, ErrAccountConflict
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.Info().Str("username", user.Username).Uint("user_id", user.ID).Msg("account created")
	s.recordAudit(ctx, &user.ID, "account.created", "user", nil)
	return user, nil
}

// VerifyAccess parses and validates an access token, failing closed.
func (s *Service) VerifyAccess(_ context.Context, accessToken string) (*Claims, error) {
	return s.issuer.Parse(accessToken, TokenTypeAccess)
}

// PurgeExpiredTokens deletes refresh-token records past their expiry.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.PurgeExpired(ctx, s.now())
}

func (s *Service) recordAudit(ctx context.Context, actorID *uint, action, targetType string, details map[string]any) {
	if s.audit == nil {
		return
	}

	entry := &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
	}
	if actorID != nil {
		id := strconv.FormatUint(uint64(*actorID), 10)
		entry.TargetID = &id
	}
	if len(details) > 0 {
		if data, err := json.Marshal(details); err == nil {
			entry.Metadata = data
		}
	}

	// Audit failures never fail the request.
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("record audit entry")
	}
}

func (s *Service) publish(ctx context.Context, subj string, user *models.User, details map[string]any) {
	if s.pub == nil {
		return
	}

	evt := events.Event{At: s.now(), Details: details}
	if user != nil {
		evt.UserID = user.ID
		evt.Username = user.Username
	}
	if err := s.pub.Publish(ctx, subj, evt); err != nil {
		s.logger.Error().Err(err).Str("subject", subj).Msg("publish event")
	}
}
