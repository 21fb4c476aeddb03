package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ndauth/ndauth/internal/models"
	"github.com/ndauth/ndauth/internal/service"
	"github.com/sirupsen/logrus"
)

// AccessTokenCookie is the cookie the strategy reads tokens from. Header
// bearer tokens are deliberately not supported.
const AccessTokenCookie = "access_token"

type AuthState int

const (
	// StateAnonymous means no access token cookie was present. Not an
	// error; public routes coexist with protected ones.
	StateAnonymous AuthState = iota
	StateAuthenticated
	StateRejected
)

type Outcome struct {
	State  AuthState
	User   *models.User
	Claims *service.Claims
	Reason string
}

// UserResolver resolves a token subject to a user record.
type UserResolver interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type CookieAuth struct {
	tokens *service.TokenService
	users  UserResolver
	logger *logrus.Logger
}

func NewCookieAuth(tokens *service.TokenService, users UserResolver, logger *logrus.Logger) *CookieAuth {
	return &CookieAuth{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// Authenticate runs the per-request cookie authentication state machine.
func (m *CookieAuth) Authenticate(r *http.Request) Outcome {
	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return Outcome{State: StateAnonymous}
	}

	claims, err := m.tokens.VerifyToken(cookie.Value)
	if err != nil {
		m.logger.WithError(err).Debug("Access token verification failed")
		return Outcome{State: StateRejected, Reason: "Invalid or expired token"}
	}

	if claims.Type != service.TokenTypeAccess {
		return Outcome{State: StateRejected, Reason: "Invalid token type"}
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Outcome{State: StateRejected, Reason: "Invalid token subject"}
	}

	user, err := m.users.GetByID(r.Context(), userID)
	if err != nil {
		m.logger.WithError(err).Debug("Token subject resolution failed")
		return Outcome{State: StateRejected, Reason: "User not found"}
	}

	if !user.IsActive {
		return Outcome{State: StateRejected, Reason: "User is inactive"}
	}

	return Outcome{State: StateAuthenticated, User: user, Claims: claims}
}

// RequireAuth admits only authenticated requests and puts the resolved user
// into the request context.
func (m *CookieAuth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome := m.Authenticate(r)

		switch outcome.State {
		case StateAuthenticated:
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), outcome.User)))
		case StateAnonymous:
			m.respondUnauthorized(w, "Authentication required")
		default:
			m.respondUnauthorized(w, outcome.Reason)
		}
	})
}

func (m *CookieAuth) respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"` + message + `"}}`))
}

type contextKey struct{ name string }

var userContextKey = &contextKey{"user"}

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the user stored by RequireAuth.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}
