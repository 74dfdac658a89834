package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"crmauth/internal/auth"
	"crmauth/internal/storage"
)

var errUnauthenticated = errors.New("unauthenticated")

// AuthHandler exposes the authentication operations over JSON.
type AuthHandler struct {
	svc      *auth.Service
	accounts storage.AccountStore
	logger   zerolog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc *auth.Service, accounts storage.AccountStore, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, accounts: accounts, logger: logger}
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login handles POST /v1/auth/login. Every authentication failure is the
// same generic 401: the response never reveals whether the identifier,
// password, or lock state was at fault.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Identifier == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, errors.New("identifier and password are required"))
		return
	}

	user, err := h.svc.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials)
			return
		}
		h.logger.Error().Err(err).Msg("authenticate")
		respondError(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	session, err := h.svc.IssueSession(r.Context(), user, auth.ClientMeta{
		UserAgent: r.UserAgent(),
		IP:        r.RemoteAddr,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("issue session")
		respondError(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    session.ExpiresIn,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /v1/auth/refresh. The refresh token is returned
// unchanged: it is not rotated.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, errors.New("refresh_token is required"))
		return
	}

	access, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenRejected) {
			respondError(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}
		h.logger.Error().Err(err).Msg("refresh token")
		respondError(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": req.RefreshToken,
		"token_type":    "bearer",
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	Reason       string `json:"reason,omitempty"`
}

// Logout handles POST /v1/auth/logout: it revokes one refresh token.
// Revoking an already-revoked token succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, errors.New("refresh_token is required"))
		return
	}

	if err := h.svc.Revoke(r.Context(), req.RefreshToken, req.Reason); err != nil {
		if errors.Is(err, auth.ErrTokenRejected) {
			respondError(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}
		h.logger.Error().Err(err).Msg("revoke token")
		respondError(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll handles POST /v1/auth/logout-all: it revokes every active
// refresh token of the authenticated account.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, errUnauthenticated)
		return
	}

	count, err := h.svc.RevokeAll(r.Context(), claims.UserID, "user logout")
	if err != nil {
		h.logger.Error().Err(err).Msg("revoke all tokens")
		respondError(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"revoked": count})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword handles POST /v1/auth/password. On success every prior
// refresh token of the account is revoked.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, errUnauthenticated)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		respondError(w, http.StatusBadRequest, errors.New("current_password and new_password are required"))
		return
	}

	user, err := h.accounts.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			respondError(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}
		h.logger.Error().Err(err).Msg("load account")
		respondError(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	// The access token is verified statelessly, so a token issued before
	// the account was disabled or soft-deleted still parses. Re-check the
	// stored flags before mutating credentials.
	if !user.Authenticatable() {
		respondError(w, http.StatusUnauthorized, errUnauthenticated)
		return
	}

	if err := h.svc.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials)
			return
		}
		h.logger.Error().Err(err).Msg("change password")
		respondError(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /v1/auth/me: it echoes the verified claims snapshot.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, errUnauthenticated)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":      claims.UserID,
		"username":     claims.Username,
		"email":        claims.Email,
		"is_superuser": claims.IsSuperuser,
		"roles":        claims.Roles,
		"permissions":  claims.Permissions,
	})
}
