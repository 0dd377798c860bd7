package localauth

import (
	"context"
	"net/http"
	"strings"
)

type userParamNameKey string

// Middleware resolves the logged in account id for incoming requests from
// the session cookie or the Authorization header.
type Middleware struct {
	AuthTokenHeaderName string
	AuthTokenCookieName string
	UserParamName       string

	// SessionGetter optionally consults a server-side session (e.g. scs)
	// before falling back to token verification.
	SessionGetter func(r *http.Request, param string) any

	// VerifyToken validates a session token and returns the account id
	VerifyToken func(tokenString string) (accountID string, err error)
}

// EnsureReasonableDefaults fills unset config values.
func (m *Middleware) EnsureReasonableDefaults() {
	if m.UserParamName == "" {
		m.UserParamName = "loggedInUserId"
	}
	if m.AuthTokenHeaderName == "" {
		m.AuthTokenHeaderName = "Authorization"
	}
}

// GetLoggedInUserId returns the account id for the current request, or ""
// when the request carries no valid credential. Order of precedence:
// request context (set by ExtractUser/EnsureUser), server-side session,
// then token verification against header and cookie values.
func (m *Middleware) GetLoggedInUserId(r *http.Request) string {
	m.EnsureReasonableDefaults()

	if v := r.Context().Value(userParamNameKey(m.UserParamName)); v != nil {
		if userID, ok := v.(string); ok && userID != "" {
			return userID
		}
	}

	if m.SessionGetter != nil {
		if v := m.SessionGetter(r, m.UserParamName); v != nil {
			if userID, ok := v.(string); ok && userID != "" {
				return userID
			}
		}
	}

	if m.VerifyToken == nil {
		return ""
	}

	tokens := make([]string, 0, 2)
	for _, header := range r.Header.Values(m.AuthTokenHeaderName) {
		tokens = append(tokens, strings.TrimPrefix(header, "Bearer "))
	}
	for _, cookie := range r.CookiesNamed(m.AuthTokenCookieName) {
		if cookie.Value != "" {
			tokens = append(tokens, cookie.Value)
		}
	}

	for _, token := range tokens {
		if userID, err := m.VerifyToken(token); err == nil && userID != "" {
			return userID
		}
	}
	return ""
}

// ExtractUser resolves the logged in account id and stores it as a request
// scoped variable for downstream handlers. It does not enforce that a user
// exists - use EnsureUser for that.
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := m.GetLoggedInUserId(r)
		next.ServeHTTP(w, m.setLoggedInUserId(userID, r))
	})
}

// EnsureUser is ExtractUser plus a 401 for requests with no valid
// credential.
func (m *Middleware) EnsureUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := m.GetLoggedInUserId(r)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeNotAuthorized, "Not authenticated", ""))
			return
		}
		next.ServeHTTP(w, m.setLoggedInUserId(userID, r))
	})
}

// setLoggedInUserId makes the account id available to downstream handlers
// via the request context.
func (m *Middleware) setLoggedInUserId(userID string, r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), userParamNameKey(m.UserParamName), userID)
	return r.WithContext(ctx)
}
