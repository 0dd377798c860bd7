package localauth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Auth composes the store, hasher, signer, reset manager and session issuer
// into the account use cases: signup, login, logout, forgot/reset password,
// profile update and account deletion.
type Auth struct {
	Store    AccountStore
	Signer   *SessionSigner
	Sessions *SessionIssuer
	Reset    *ResetTokens
	Email    EmailSender
	Config   *Config

	// Middleware extracts/enforces the logged in account on requests
	Middleware *Middleware
}

// New wires an Auth service from a config, store and email sender.
func New(cfg *Config, store AccountStore, email EmailSender) *Auth {
	cfg.EnsureDefaults()
	signer := &SessionSigner{
		SecretKey: cfg.JWTSecretKey,
		Issuer:    cfg.JwtIssuer,
		TTL:       cfg.SessionTokenTTL,
	}
	a := &Auth{
		Store:  store,
		Signer: signer,
		Sessions: &SessionIssuer{
			Signer:        signer,
			CookieName:    cfg.CookieName,
			CookieTTLDays: cfg.CookieTTLDays,
			Secure:        cfg.SecureCookies,
		},
		Reset:  &ResetTokens{Store: store, TTL: cfg.ResetTokenTTL},
		Email:  email,
		Config: cfg,
	}
	a.Middleware = &Middleware{
		AuthTokenCookieName: cfg.CookieName,
		VerifyToken:         signer.Verify,
	}
	return a
}

// Signup creates a new account with a hashed password. Fails with
// ErrDuplicateAccount when the email is already registered - uniqueness is
// enforced by the store's atomic create, not a prior lookup, so two
// concurrent signups cannot both win.
func (a *Auth) Signup(name, email, password string) (*Account, error) {
	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	acct := &Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.Store.Create(acct); err != nil {
		return nil, err
	}
	return acct.Sanitized(), nil
}

// Login verifies the credentials and returns the account. Unknown email and
// wrong password both fail with ErrInvalidCredentials; when no account
// matches, a comparison against a dummy digest keeps the cost of the two
// paths aligned.
func (a *Auth) Login(email, password string) (*Account, error) {
	acct, err := a.Store.ByEmail(NormalizeEmail(email), true)
	if err != nil {
		VerifyPassword(password, dummyPasswordHash)
		return nil, ErrInvalidCredentials
	}
	if !VerifyPassword(password, acct.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return acct.Sanitized(), nil
}

// forgotOutcome records what actually happened inside ForgotPassword. The
// orchestrator maps every outcome to the same generic acknowledgment; the
// outcome exists so the internals can be logged and tested explicitly
// rather than relying on swallowed errors.
type forgotOutcome int

const (
	forgotDelivered forgotOutcome = iota
	forgotNoAccount
	forgotStoreError
	forgotDeliveryFailed
)

// ForgotPassword starts the reset flow for the email, if registered. It
// never reports whether the account exists: lookup failures, token issuance
// failures and delivery failures are logged and absorbed. When delivery
// fails the freshly issued secret is discarded so a token the user never
// received cannot later be consumed.
func (a *Auth) ForgotPassword(email string) {
	switch a.forgotPassword(email) {
	case forgotDelivered:
		slog.Info("password reset email sent", "email", NormalizeEmail(email))
	case forgotNoAccount:
		slog.Info("password reset requested for unknown email")
	case forgotStoreError:
		slog.Warn("password reset aborted by store error")
	case forgotDeliveryFailed:
		slog.Warn("password reset email delivery failed, token discarded")
	}
}

func (a *Auth) forgotPassword(email string) forgotOutcome {
	acct, err := a.Store.ByEmail(NormalizeEmail(email), false)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return forgotNoAccount
		}
		return forgotStoreError
	}

	secret, err := a.Reset.Issue(acct)
	if err != nil {
		return forgotStoreError
	}

	resetLink := fmt.Sprintf("%s/auth/reset-password?token=%s", a.Config.BaseURL, secret)
	subject, htmlBody, textBody := composeResetEmail(a.Config.AppName, acct.Name, resetLink, a.Reset.TTL)
	if err := a.Email.Send(acct.Email, subject, htmlBody, textBody); err != nil {
		if derr := a.Reset.Discard(acct); derr != nil {
			slog.Warn("failed to discard undelivered reset token", "err", derr)
		}
		return forgotDeliveryFailed
	}
	return forgotDelivered
}

// ResetPassword consumes the reset secret and sets the new password.
// Malformed, unknown, already-used and expired secrets all fail with
// ErrInvalidOrExpiredToken. The caller issues a fresh session on success:
// proving possession of the secret plus the new password is sufficient
// authentication.
func (a *Auth) ResetPassword(secret, newPassword string) (*Account, error) {
	acct, err := a.Reset.Consume(secret, newPassword)
	if err != nil {
		return nil, err
	}
	return acct.Sanitized(), nil
}

// UpdateProfile changes name and/or email. Password changes are not
// accepted on this path; the HTTP handler rejects any request carrying a
// password field before reaching here.
func (a *Auth) UpdateProfile(id, name, email string) (*Account, error) {
	updates := AccountUpdates{}
	if name != "" {
		updates.Name = &name
	}
	if email != "" {
		normalized := NormalizeEmail(email)
		if existing, err := a.Store.ByEmail(normalized, false); err == nil && existing.ID != id {
			return nil, ErrDuplicateAccount
		}
		updates.Email = &normalized
	}
	return a.Store.Update(id, updates)
}

// DeleteAccount removes the account record.
func (a *Auth) DeleteAccount(id string) error {
	return a.Store.Delete(id)
}
