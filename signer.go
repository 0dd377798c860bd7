package localauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionSigner issues and verifies the signed session tokens that prove a
// recent authentication. Tokens embed the account id and an absolute expiry;
// nothing is persisted server-side, so rotating SecretKey invalidates every
// outstanding token.
type SessionSigner struct {
	// Secret key for HMAC signing. Required.
	SecretKey string

	// Issuer claim stamped on issued tokens
	Issuer string

	// How long issued tokens remain valid
	TTL time.Duration
}

// Issue creates a signed token for the given account id, expiring TTL from
// now.
func (s *SessionSigner) Issue(accountID string) (string, error) {
	if s.SecretKey == "" {
		return "", fmt.Errorf("signing key not configured")
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTokenTTL
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": accountID,
		"iss": s.Issuer,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(s.SecretKey))
}

// Verify checks signature and expiry and returns the account id the token
// was issued for. Fails with ErrInvalidSessionToken for a bad signature, a
// malformed payload, a non-HMAC signing method or a passed expiry.
func (s *SessionSigner) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.SecretKey), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidSessionToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", fmt.Errorf("%w: claims is not a map", ErrInvalidSessionToken)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: subject not found", ErrInvalidSessionToken)
	}
	return sub, nil
}
