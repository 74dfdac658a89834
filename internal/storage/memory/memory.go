// Package memory provides mutex-guarded in-memory implementations of the
// storage interfaces, used by tests that exercise the authentication service
// without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"crmauth/internal/models"
	"crmauth/internal/storage"
)

// Storage implements storage.AccountStore, storage.TokenStore, and
// storage.AuditStore on in-memory maps.
type Storage struct {
	mu      sync.Mutex
	nextID  uint
	users   map[uint]*models.User
	tokens  map[string]*models.RefreshToken
	entries []*models.AuditLog
}

// New creates an empty Storage.
func New() *Storage {
	return &Storage{
		nextID: 1,
		users:  make(map[uint]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.Roles = append([]models.Role(nil), u.Roles...)
	return &cp
}

func cloneToken(t *models.RefreshToken) *models.RefreshToken {
	cp := *t
	return &cp
}

// Create inserts a new account, enforcing username/email uniqueness.
func (s *Storage) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return storage.ErrDuplicateAccount
		}
	}

	user.ID = s.nextID
	s.nextID++
	s.users[user.ID] = cloneUser(user)
	return nil
}

// GetByIdentifier looks up an account by username OR email.
func (s *Storage) GetByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == identifier || u.Email == identifier {
			return cloneUser(u), nil
		}
	}
	return nil, storage.ErrAccountNotFound
}

// GetByID looks up an account by primary key.
func (s *Storage) GetByID(_ context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return cloneUser(u), nil
}

// RecordFailure increments the failed-login counter and applies the lockout
// stamp once the threshold is reached.
func (s *Storage) RecordFailure(_ context.Context, id uint, threshold int, lockFor time.Duration, now time.Time) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return 0, nil, storage.ErrAccountNotFound
	}

	u.FailedLoginAttempts++
	var lockedUntil *time.Time
	if u.FailedLoginAttempts >= threshold {
		until := now.Add(lockFor)
		u.LockedUntil = &until
		lockedUntil = &until
	}
	return u.FailedLoginAttempts, lockedUntil, nil
}

// RecordLogin resets the failed-login counter and stamps last_login.
func (s *Storage) RecordLogin(_ context.Context, id uint, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrAccountNotFound
	}
	u.FailedLoginAttempts = 0
	u.LastLogin = &now
	return nil
}

// UpdatePassword replaces the stored hash and stamps password_changed_at.
func (s *Storage) UpdatePassword(_ context.Context, id uint, hashedPassword string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrAccountNotFound
	}
	u.HashedPassword = hashedPassword
	u.PasswordChangedAt = &now
	return nil
}

// Save inserts a refresh-token record.
func (s *Storage) Save(_ context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token.ID = s.nextID
	s.nextID++
	s.tokens[token.JTI] = cloneToken(token)
	return nil
}

// GetByJTI retrieves a refresh-token record by jti.
func (s *Storage) GetByJTI(_ context.Context, jti string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[jti]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	return cloneToken(t), nil
}

// MarkUsed stamps last_used_at on the record.
func (s *Storage) MarkUsed(_ context.Context, jti string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[jti]
	if !ok {
		return storage.ErrTokenNotFound
	}
	t.LastUsedAt = &now
	return nil
}

// Revoke deactivates the record; repeated revocations are no-ops.
func (s *Storage) Revoke(_ context.Context, jti, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[jti]
	if !ok {
		return storage.ErrTokenNotFound
	}
	if !t.IsActive {
		return nil
	}
	t.IsActive = false
	t.RevokedAt = &now
	t.RevokedReason = reason
	return nil
}

// RevokeAllForUser deactivates every active record owned by the user.
func (s *Storage) RevokeAllForUser(_ context.Context, userID uint, reason string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, t := range s.tokens {
		if t.UserID == userID && t.IsActive {
			t.IsActive = false
			t.RevokedAt = &now
			t.RevokedReason = reason
			count++
		}
	}
	return count, nil
}

// PurgeExpired removes records whose expiry has passed.
func (s *Storage) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for jti, t := range s.tokens {
		if t.Expired(now) {
			delete(s.tokens, jti)
			count++
		}
	}
	return count, nil
}

// Record appends an audit entry.
func (s *Storage) Record(_ context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	return nil
}

// AuditEntries returns a snapshot of recorded audit entries.
func (s *Storage) AuditEntries() []*models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*models.AuditLog(nil), s.entries...)
}

// SetUser overwrites an account row directly; test helper.
func (s *Storage) SetUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == 0 {
		u.ID = s.nextID
		s.nextID++
	} else if u.ID >= s.nextID {
		s.nextID = u.ID + 1
	}
	s.users[u.ID] = cloneUser(u)
}
