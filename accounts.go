package localauth

import (
	"strings"
	"time"
)

// Account is the identity record for one registered user. PasswordHash and
// the ResetToken fields are sensitive: stores zero them on reads unless the
// caller explicitly asks for them, and they never appear in JSON output.
type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`

	// bcrypt digest of the account password
	PasswordHash string `json:"-"`

	// SHA-256 hex digest of the pending reset secret, empty when none
	ResetTokenHash string `json:"-"`

	// When the pending reset secret stops being consumable
	ResetTokenExpiresAt time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPendingReset reports whether an unconsumed, unexpired reset secret
// exists for this account.
func (a *Account) HasPendingReset(now time.Time) bool {
	return a.ResetTokenHash != "" && now.Before(a.ResetTokenExpiresAt)
}

// Sanitized returns a copy with all sensitive fields zeroed. Stores use this
// for reads without includeSensitive.
func (a *Account) Sanitized() *Account {
	out := *a
	out.PasswordHash = ""
	out.ResetTokenHash = ""
	out.ResetTokenExpiresAt = time.Time{}
	return &out
}

// AccountUpdates names the mutable account fields for AccountStore.Update.
// Nil fields are left untouched.
type AccountUpdates struct {
	Name         *string
	Email        *string
	PasswordHash *string
}

// AccountStore persists accounts and enforces email uniqueness. Reads return
// sanitized accounts unless includeSensitive is set - only internal callers
// (login verification, reset consumption) ask for sensitive fields.
//
// Implementations must make Create and ConsumeResetToken atomic: two
// concurrent signups for one email must not both succeed, and a reset secret
// must be consumable exactly once. This is a persistence-layer concern
// (unique constraint / transaction), not an in-process lock.
type AccountStore interface {
	// Create persists a new account. Returns ErrDuplicateAccount if an
	// account with the same email already exists.
	Create(acct *Account) error

	// ByEmail looks up an account by its normalized email
	ByEmail(email string, includeSensitive bool) (*Account, error)

	// ById looks up an account by id
	ById(id string, includeSensitive bool) (*Account, error)

	// Update applies the non-nil fields and returns the updated account.
	// Returns ErrDuplicateAccount when an email change collides.
	Update(id string, updates AccountUpdates) (*Account, error)

	// Delete removes the account
	Delete(id string) error

	// SetResetToken stores digest/expiry for a pending reset, replacing
	// any prior pending reset (issuing replaces).
	SetResetToken(id string, digest string, expiresAt time.Time) error

	// ClearResetToken drops the pending reset fields without consuming
	ClearResetToken(id string) error

	// ConsumeResetToken atomically finds the account whose stored digest
	// matches AND whose expiry is after now, swaps in the new password
	// hash, clears the reset fields and returns the updated account.
	// Any other outcome is ErrInvalidOrExpiredToken.
	ConsumeResetToken(digest string, now time.Time, newPasswordHash string) (*Account, error)
}

// NormalizeEmail case-normalizes an account identifier. All store lookups
// and writes go through this so "Ann@X.com" and "ann@x.com" are one account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
