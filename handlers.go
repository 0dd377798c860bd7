package localauth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// apiResponse is the envelope every endpoint returns
type apiResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data map[string]any) {
	writeJSON(w, status, apiResponse{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, authErr *AuthError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": authErr.Message,
		"code":    authErr.Code,
		"field":   authErr.Field,
	})
}

// parseBody accepts both form-encoded and JSON bodies, mirroring what the
// login/signup forms and API clients send.
func parseBody(r *http.Request) (map[string]any, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		data := make(map[string]any, len(r.PostForm))
		for k := range r.PostForm {
			data[k] = r.PostForm.Get(k)
		}
		return data, nil
	}

	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
		return nil, errors.New("invalid post body")
	}
	return data, nil
}

func stringField(data map[string]any, field string) string {
	v, _ := data[field].(string)
	return v
}

// HandleSignup processes account registration and logs the new account in.
func (a *Auth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	data, err := parseBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeMissingField, "Please provide name, email, and password", ""))
		return
	}
	name := stringField(data, "name")
	email := stringField(data, "email")
	password := stringField(data, "password")

	if authErr := validateSignup(name, email, password); authErr != nil {
		writeError(w, http.StatusBadRequest, authErr)
		return
	}

	acct, err := a.Signup(name, email, password)
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeEmailExists, "User with this email already exists", "email"))
			return
		}
		log.Println("error creating account: ", err)
		writeError(w, http.StatusInternalServerError, NewAuthError(ErrCodeInternalError, "Something went wrong", ""))
		return
	}

	a.issueSession(w, r, http.StatusCreated, acct)
}

// HandleLogin processes password logins.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	data, err := parseBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeMissingField, "Please provide email and password", ""))
		return
	}
	email := stringField(data, "email")
	password := stringField(data, "password")

	if authErr := validateLogin(email, password); authErr != nil {
		writeError(w, http.StatusBadRequest, authErr)
		return
	}

	acct, err := a.Login(email, password)
	if err != nil {
		// Same response for unknown email and wrong password
		writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeInvalidCreds, "Invalid email or password", ""))
		return
	}

	a.issueSession(w, r, http.StatusOK, acct)
}

// HandleLogout overwrites the session cookie with an expired value. There is
// no server-side state to destroy, so logout always succeeds and is
// idempotent.
func (a *Auth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	a.Sessions.Clear(w, r)
	writeSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

// HandleForgotPassword starts the reset flow. The response is identical
// whether or not the email is registered; the lookup, token issuance and
// email delivery run off the request path so timing carries no signal
// either.
func (a *Auth) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	data, err := parseBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeMissingField, "Please provide an email address", "email"))
		return
	}
	email := stringField(data, "email")
	if email == "" {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeMissingField, "Please provide an email address", "email"))
		return
	}

	go a.ForgotPassword(email)

	writeSuccess(w, http.StatusOK, "If an account with this email exists, a password reset link has been sent", nil)
}

// HandleResetPassword consumes a reset secret and sets the new password.
// The secret arrives in the URL path (from the emailed link) or the body.
func (a *Auth) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	data, err := parseBody(r)
	if err != nil {
		data = map[string]any{}
	}

	secret := mux.Vars(r)["token"]
	if secret == "" {
		secret = stringField(data, "token")
	}
	if secret == "" {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeMissingField, "Password reset token is required", "token"))
		return
	}

	password := stringField(data, "password")
	if password == "" {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeMissingField, "New password is required", "password"))
		return
	}
	if len(password) < MinPasswordLength {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeWeakPassword, "Password must be at least 8 characters", "password"))
		return
	}

	acct, err := a.ResetPassword(secret, password)
	if err != nil {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeInvalidToken, "Password reset token is invalid or has expired", "token"))
		return
	}

	// A successful reset proves control of the registered email, which is
	// sufficient to authenticate.
	a.issueSession(w, r, http.StatusOK, acct)
}

// HandleMe returns the logged in account.
func (a *Auth) HandleMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := a.loggedInAccount(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"account": acct})
}

// HandleUpdateProfile changes name/email for the logged in account. Any
// request carrying a password field is rejected outright: password changes
// must go through the reset flow, never this route.
func (a *Auth) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	acct, ok := a.loggedInAccount(w, r)
	if !ok {
		return
	}

	data, err := parseBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeMissingField, "Invalid request body", ""))
		return
	}
	if _, present := data["password"]; present {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodePasswordField, "This route is not for password updates", "password"))
		return
	}

	email := stringField(data, "email")
	if email != "" && !emailRegex.MatchString(email) {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeInvalidEmail, "Invalid email format", "email"))
		return
	}

	updated, err := a.UpdateProfile(acct.ID, stringField(data, "name"), email)
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeEmailExists, "Email already exists", "email"))
			return
		}
		log.Println("error updating account: ", err)
		writeError(w, http.StatusInternalServerError, NewAuthError(ErrCodeInternalError, "Something went wrong", ""))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"account": updated})
}

// HandleDeleteAccount removes the logged in account and expires the cookie.
func (a *Auth) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	acct, ok := a.loggedInAccount(w, r)
	if !ok {
		return
	}
	if err := a.DeleteAccount(acct.ID); err != nil {
		log.Println("error deleting account: ", err)
		writeError(w, http.StatusInternalServerError, NewAuthError(ErrCodeInternalError, "Something went wrong", ""))
		return
	}
	a.Sessions.Clear(w, r)
	writeSuccess(w, http.StatusOK, "Account deleted successfully", nil)
}

// issueSession attaches a fresh session credential to the response and
// writes the success payload. The stored password hash never appears here:
// acct is already sanitized by the use-case layer.
func (a *Auth) issueSession(w http.ResponseWriter, r *http.Request, status int, acct *Account) {
	token, err := a.Sessions.Issue(w, r, acct.ID)
	if err != nil {
		log.Println("error signing session token: ", err)
		writeError(w, http.StatusInternalServerError, NewAuthError(ErrCodeInternalError, "Something went wrong", ""))
		return
	}
	writeSuccess(w, status, "", map[string]any{
		"token":   token,
		"account": acct,
	})
}

// loggedInAccount resolves the authenticated account for protected
// handlers, writing the 401 itself when there is none.
func (a *Auth) loggedInAccount(w http.ResponseWriter, r *http.Request) (*Account, bool) {
	userID := a.Middleware.GetLoggedInUserId(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeNotAuthorized, "Not authenticated", ""))
		return nil, false
	}
	acct, err := a.Store.ById(userID, false)
	if err != nil {
		writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeNotAuthorized, "Not authenticated", ""))
		return nil, false
	}
	return acct, true
}
