package localauth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
)

// SessionIssuer turns a signed session token into the HTTP-delivered
// credential: an HTTP-only, SameSite=Strict cookie, plus an optional mirror
// of the login into a server-side scs session for apps that render pages.
type SessionIssuer struct {
	Signer *SessionSigner

	// Name of the session cookie
	CookieName string

	// Cookie lifetime in days
	CookieTTLDays int

	// Whether cookies carry the Secure flag (production deployments)
	Secure bool

	// Optional server-side session manager. When set, Issue records the
	// logged in account id and Clear destroys the session data.
	Session *scs.SessionManager
}

// Issue signs a token for the account and attaches it to the response as a
// cookie. The token is also returned for inclusion in the JSON payload.
func (si *SessionIssuer) Issue(w http.ResponseWriter, r *http.Request, accountID string) (string, error) {
	token, err := si.Signer.Issue(accountID)
	if err != nil {
		return "", err
	}

	days := si.CookieTTLDays
	if days <= 0 {
		days = DefaultCookieTTLDays
	}
	maxAge := days * 24 * 60 * 60
	http.SetCookie(w, &http.Cookie{
		Name:     si.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(time.Duration(maxAge) * time.Second),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   si.Secure,
		SameSite: http.SameSiteStrictMode,
	})

	if si.Session != nil {
		si.Session.Put(r.Context(), "loggedInUserId", accountID)
	}
	return token, nil
}

// Clear logs the client out by overwriting the cookie with an already
// expired value. There is no server-side revocation: an exfiltrated token
// stays verifiable until its natural expiry.
func (si *SessionIssuer) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     si.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Second),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   si.Secure,
		SameSite: http.SameSiteStrictMode,
	})

	if si.Session != nil {
		if err := si.Session.Clear(r.Context()); err != nil {
			slog.Warn("error clearing session", "err", err)
		}
	}
}
