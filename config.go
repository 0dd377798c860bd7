package localauth

import (
	"fmt"
	"time"
)

// Default lifetimes for issued credentials
const (
	// DefaultSessionTokenTTL bounds how long a signed session token verifies
	DefaultSessionTokenTTL = 7 * 24 * time.Hour

	// DefaultResetTokenTTL is the reset-secret validity window. The same
	// value drives the stored expiry and the minutes shown in the reset
	// email so the two can never drift.
	DefaultResetTokenTTL = 15 * time.Minute

	// DefaultCookieTTLDays is how long the session cookie persists
	DefaultCookieTTLDays = 7
)

// Config holds the process-wide settings for the auth subsystem. Construct it
// once at startup (from your env/config layer), call EnsureDefaults, and pass
// it by reference - components never read ambient global state.
type Config struct {
	// Optional name used in issued claims and outgoing emails
	AppName string

	// Base URL for generating reset links, e.g. "https://app.example.com"
	BaseURL string

	// Secret key for signing session tokens. Rotating it invalidates all
	// outstanding tokens.
	JWTSecretKey string

	// Issuer claim for session tokens (defaults to "<AppName>-Issuer")
	JwtIssuer string

	// How long a session token verifies after issuance
	SessionTokenTTL time.Duration

	// How long a reset secret stays consumable after issuance
	ResetTokenTTL time.Duration

	// Name of the session cookie (defaults to "<AppName>AuthToken")
	CookieName string

	// Session cookie lifetime in days
	CookieTTLDays int

	// Whether session cookies carry the Secure flag. Tie this to the
	// deployment environment: true everywhere except local development.
	SecureCookies bool
}

// EnsureDefaults fills in reasonable values for any unset fields and
// returns the config for chaining.
func (c *Config) EnsureDefaults() *Config {
	if c.AppName == "" {
		c.AppName = "LocalAuth"
	}
	if c.JwtIssuer == "" {
		c.JwtIssuer = fmt.Sprintf("%s-Issuer", c.AppName)
	}
	if c.SessionTokenTTL <= 0 {
		c.SessionTokenTTL = DefaultSessionTokenTTL
	}
	if c.ResetTokenTTL <= 0 {
		c.ResetTokenTTL = DefaultResetTokenTTL
	}
	if c.CookieName == "" {
		c.CookieName = fmt.Sprintf("%sAuthToken", c.AppName)
	}
	if c.CookieTTLDays <= 0 {
		c.CookieTTLDays = DefaultCookieTTLDays
	}
	return c
}
