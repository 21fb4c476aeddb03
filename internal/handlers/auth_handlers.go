package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ndauth/ndauth/internal/config"
	"github.com/ndauth/ndauth/internal/middleware"
	"github.com/ndauth/ndauth/internal/models"
	"github.com/ndauth/ndauth/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

type AuthHandlers struct {
	credentials   *service.CredentialService
	tokens        *service.TokenService
	cookieCfg     *config.CookieConfig
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	logger        *logrus.Logger
}

func NewAuthHandlers(
	credentials *service.CredentialService,
	tokens *service.TokenService,
	cookieCfg *config.CookieConfig,
	jwtCfg *config.JWTConfig,
	logger *logrus.Logger,
) *AuthHandlers {
	return &AuthHandlers{
		credentials:   credentials,
		tokens:        tokens,
		cookieCfg:     cookieCfg,
		accessExpiry:  jwtCfg.AccessExpiry,
		refreshExpiry: jwtCfg.RefreshExpiry,
		logger:        logger,
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User models.Profile `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Login validates credentials and sets the access and refresh token
// cookies. The response body carries the user projection only; tokens
// travel exclusively in cookies.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	user, err := h.credentials.Validate(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingCredentials):
			h.respondWithError(w, http.StatusBadRequest, "MISSING_CREDENTIALS", "Username and password are required")
		case errors.Is(err, service.ErrAccountDisabled):
			h.respondWithError(w, http.StatusBadRequest, "ACCOUNT_DISABLED", "Account is disabled")
		case errors.Is(err, service.ErrInvalidCredentials):
			h.respondWithError(w, http.StatusBadRequest, "INVALID_CREDENTIALS", "Invalid credentials")
		default:
			h.logger.WithError(err).Error("Credential validation failed")
			h.respondWithError(w, http.StatusInternalServerError, "LOGIN_FAILED", "Failed to log in")
		}
		return
	}

	pair, err := h.tokens.IssuePair(user)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue token pair")
		h.respondWithError(w, http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "Failed to generate tokens")
		return
	}

	h.setAuthCookie(w, accessTokenCookie, pair.AccessToken, h.accessExpiry)
	h.setAuthCookie(w, refreshTokenCookie, pair.RefreshToken, h.refreshExpiry)

	h.respondWithJSON(w, http.StatusOK, LoginResponse{User: user.Profile()})
}

// Logout revokes the refresh token and clears both cookies. Cookies stay
// untouched when revocation fails so server and client state cannot
// diverge silently.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshTokenCookie)
	if err != nil || cookie.Value == "" {
		h.respondWithError(w, http.StatusBadRequest, "REFRESH_TOKEN_NOT_FOUND", "No refresh token found")
		return
	}

	if err := h.tokens.Revoke(r.Context(), cookie.Value); err != nil {
		h.logger.WithError(err).Warn("Failed to revoke refresh token")
		h.respondWithError(w, http.StatusBadRequest, "TOKEN_BLACKLIST_ERROR", "Failed to invalidate token: "+err.Error())
		return
	}

	h.clearAuthCookie(w, accessTokenCookie)
	h.clearAuthCookie(w, refreshTokenCookie)

	h.respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// RefreshToken mints a new access token from the refresh token cookie. The
// refresh cookie itself is left untouched.
func (h *AuthHandlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshTokenCookie)
	if err != nil || cookie.Value == "" {
		h.respondWithError(w, http.StatusUnauthorized, "REFRESH_TOKEN_NOT_FOUND", "No refresh token found")
		return
	}

	accessToken, err := h.tokens.Refresh(r.Context(), cookie.Value)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMalformedToken),
			errors.Is(err, service.ErrTokenExpired),
			errors.Is(err, service.ErrTokenRevoked):
			h.respondWithError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid refresh token")
		default:
			h.logger.WithError(err).Error("Failed to refresh access token")
			h.respondWithError(w, http.StatusInternalServerError, "TOKEN_REFRESH_ERROR", "Failed to refresh token: "+err.Error())
		}
		return
	}

	h.setAuthCookie(w, accessTokenCookie, accessToken, h.accessExpiry)

	h.respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Token refreshed successfully"})
}

// Me returns the authenticated user's projection. Requires the cookie auth
// middleware.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	h.respondWithJSON(w, http.StatusOK, LoginResponse{User: user.Profile()})
}

func (h *AuthHandlers) setAuthCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookieCfg.Domain,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func (h *AuthHandlers) clearAuthCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.cookieCfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func (h *AuthHandlers) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (h *AuthHandlers) respondWithError(w http.ResponseWriter, status int, code, message string) {
	h.respondWithJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
