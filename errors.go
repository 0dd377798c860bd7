package localauth

import (
	"errors"
	"fmt"
)

// Error codes returned in JSON error responses
const (
	ErrCodeMissingField  = "missing_field"
	ErrCodeInvalidEmail  = "invalid_email"
	ErrCodeWeakPassword  = "weak_password"
	ErrCodeEmailExists   = "email_exists"
	ErrCodeInvalidCreds  = "invalid_credentials"
	ErrCodeInvalidToken  = "invalid_token"
	ErrCodePasswordField = "password_not_allowed"
	ErrCodeNotAuthorized = "not_authorized"
	ErrCodeInternalError = "internal_error"
)

// Sentinel errors for store and use-case outcomes.
// Compare with errors.Is - stores wrap these with backend detail.
var (
	// ErrAccountNotFound - no account matches the lookup
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateAccount - an account with the same email already exists
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrInvalidCredentials - login failed. Deliberately covers both
	// "no such account" and "wrong password" so callers cannot probe
	// which emails are registered.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidOrExpiredToken - a reset secret did not match any account,
	// matched an expired one, or was malformed. One error for all three.
	ErrInvalidOrExpiredToken = errors.New("token is invalid or has expired")

	// ErrInvalidSessionToken - a session token failed verification
	ErrInvalidSessionToken = errors.New("invalid session token")

	// ErrDeliveryFailed - the email collaborator could not deliver.
	// Never surfaced to HTTP callers.
	ErrDeliveryFailed = errors.New("email delivery failed")
)

// AuthError is a field-level validation or authentication error suitable
// for returning to HTTP callers.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAuthError creates an AuthError with the given code, message and field
func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}
