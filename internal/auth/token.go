package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"crmauth/internal/models"
)

// Token type discriminators. An access token is never accepted where a
// refresh token is expected, and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims carried by issued tokens. Access tokens embed a role/permission
// snapshot taken at issuance; refresh tokens carry only identity plus the
// jti used as their revocation-lookup key.
type Claims struct {
	UserID      uint     `json:"user_id"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	IsSuperuser bool     `json:"is_superuser,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256-signed tokens with one shared secret.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. Changing the secret invalidates all
// outstanding tokens.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// AccessTTL returns the configured access-token lifetime.
func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// IssueAccessToken mints a short-lived access token embedding the user's
// current role and permission snapshot.
func (i *TokenIssuer) IssueAccessToken(user *models.User) (string, error) {
	now := i.now()
	claims := Claims{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		IsSuperuser: user.IsSuperuser,
		Roles:       user.RoleNames(),
		Permissions: models.PermissionsFor(user.Roles),
		TokenType:   TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken mints a long-lived refresh token with a fresh jti and
// returns the signed token, its jti, and its expiry.
func (i *TokenIssuer) IssueRefreshToken(user *models.User) (string, string, time.Time, error) {
	now := i.now()
	jti := uuid.NewString()
	expiresAt := now.Add(i.refreshTTL)

	claims := Claims{
		UserID:    user.ID,
		Username:  user.Username,
		TokenType: TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, jti, expiresAt, nil
}

// Parse verifies signature, expiry, and type discriminator, failing closed:
// every verification problem maps to ErrTokenRejected.
func (i *TokenIssuer) Parse(token, wantType string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenRejected
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, ErrTokenRejected
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenRejected
	}
	if claims.TokenType != wantType {
		return nil, ErrTokenRejected
	}
	if claims.ExpiresAt == nil {
		return nil, ErrTokenRejected
	}
	return claims, nil
}
