package localauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Reset secrets are 32 random bytes (256 bits), hex encoded. Unlike
// passwords they are machine-generated and single-use, so guessing
// resistance comes from entropy and a fast deterministic digest (SHA-256)
// is enough for storage at rest.
const resetSecretBytes = 32

// GenerateResetSecret returns a cryptographically random reset secret.
func GenerateResetSecret() (string, error) {
	b := make([]byte, resetSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate reset secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashResetSecret computes the digest stored in place of a reset secret.
func HashResetSecret(secret string) string {
	digest := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(digest[:])
}

// ResetTokens manages the single-use, time-boxed password reset secrets.
// Only digests are persisted; the plaintext secret exists once, in the
// return value of Issue, for out-of-band delivery.
type ResetTokens struct {
	Store AccountStore

	// Validity window from issuance. One value drives both the stored
	// expiry and user-facing messaging.
	TTL time.Duration
}

// Issue generates a fresh reset secret for the account, stores its digest
// and expiry, and returns the plaintext for delivery. Issuing again before
// consumption silently replaces the prior secret.
func (rt *ResetTokens) Issue(acct *Account) (string, error) {
	secret, err := GenerateResetSecret()
	if err != nil {
		return "", err
	}
	ttl := rt.TTL
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	if err := rt.Store.SetResetToken(acct.ID, HashResetSecret(secret), time.Now().Add(ttl)); err != nil {
		return "", err
	}
	return secret, nil
}

// Consume validates the supplied secret and, exactly once, sets the new
// password on the matching account and clears the reset fields. Wrong
// secret, expired secret and unknown account all fail with the same
// ErrInvalidOrExpiredToken - the new password is hashed before the lookup
// so the failure paths cost the same.
func (rt *ResetTokens) Consume(secret, newPassword string) (*Account, error) {
	newHash, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	acct, err := rt.Store.ConsumeResetToken(HashResetSecret(secret), time.Now(), newHash)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}
	return acct, nil
}

// Discard clears a pending reset without consuming it. Called when delivery
// of the plaintext secret fails: a secret the user never received must not
// stay valid.
func (rt *ResetTokens) Discard(acct *Account) error {
	return rt.Store.ClearResetToken(acct.ID)
}
