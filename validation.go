package localauth

import (
	"fmt"
	"regexp"
)

// MinPasswordLength is the minimum accepted password length
const MinPasswordLength = 8

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// validateSignup checks the signup fields and returns a field-level error
// for the first problem found.
func validateSignup(name, email, password string) *AuthError {
	if name == "" {
		return NewAuthError(ErrCodeMissingField, "Name is required", "name")
	}
	if email == "" {
		return NewAuthError(ErrCodeMissingField, "Email is required", "email")
	}
	if !emailRegex.MatchString(email) {
		return NewAuthError(ErrCodeInvalidEmail, "Invalid email format", "email")
	}
	if password == "" {
		return NewAuthError(ErrCodeMissingField, "Password is required", "password")
	}
	if len(password) < MinPasswordLength {
		return NewAuthError(ErrCodeWeakPassword,
			fmt.Sprintf("Password must be at least %d characters", MinPasswordLength), "password")
	}
	return nil
}

// validateLogin only checks presence. Format problems fall through to the
// uniform invalid-credentials failure so responses carry no extra signal.
func validateLogin(email, password string) *AuthError {
	if email == "" || password == "" {
		return NewAuthError(ErrCodeMissingField, "Email and password required", "")
	}
	return nil
}
