package localauth_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	la "github.com/panyam/localauth"
	"github.com/panyam/localauth/stores"
)

type capturedEmail struct {
	To       string
	Subject  string
	TextBody string
}

// captureSender records sent emails on a channel so tests can wait for the
// asynchronous forgot-password path.
type captureSender struct {
	sent chan capturedEmail
	fail bool
}

func newCaptureSender() *captureSender {
	return &captureSender{sent: make(chan capturedEmail, 4)}
}

func (c *captureSender) Send(to, subject, htmlBody, textBody string) error {
	if c.fail {
		return errors.New("smtp unavailable")
	}
	c.sent <- capturedEmail{To: to, Subject: subject, TextBody: textBody}
	return nil
}

func (c *captureSender) waitForEmail(t *testing.T) capturedEmail {
	t.Helper()
	select {
	case email := <-c.sent:
		return email
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for email")
		return capturedEmail{}
	}
}

// resetSecretFromEmail pulls the reset secret out of the emailed link.
func resetSecretFromEmail(t *testing.T, email capturedEmail) string {
	t.Helper()
	for _, line := range strings.Fields(email.TextBody) {
		if !strings.Contains(line, "token=") {
			continue
		}
		u, err := url.Parse(line)
		if err != nil {
			continue
		}
		if secret := u.Query().Get("token"); secret != "" {
			return secret
		}
	}
	t.Fatalf("No reset link found in email body: %s", email.TextBody)
	return ""
}

type testEnv struct {
	auth   *la.Auth
	server *httptest.Server
	client *http.Client
	sender *captureSender
	store  la.AccountStore
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	store := stores.NewFSAccountStore(t.TempDir())
	sender := newCaptureSender()
	auth := la.New(&la.Config{
		AppName:      "TestApp",
		BaseURL:      "http://example.com",
		JWTSecretKey: "test-secret",
	}, store, sender)

	server := httptest.NewServer(auth.Routes())
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("Failed to create cookie jar: %v", err)
	}

	return &testEnv{
		auth:   auth,
		server: server,
		client: &http.Client{Jar: jar},
		sender: sender,
		store:  store,
	}
}

func (env *testEnv) request(t *testing.T, method, path string, body map[string]any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, env.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := env.client.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp, payload
}

func (env *testEnv) signup(t *testing.T, name, email, password string) {
	t.Helper()
	resp, payload := env.request(t, http.MethodPost, "/auth/signup", map[string]any{
		"name": name, "email": email, "password": password,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Signup expected 201, got %d: %v", resp.StatusCode, payload)
	}
}

// TestSignupLoginLogoutJourney walks the core session lifecycle end to end.
func TestSignupLoginLogoutJourney(t *testing.T) {
	env := setupServer(t)

	resp, payload := env.request(t, http.MethodPost, "/auth/signup", map[string]any{
		"name": "Alice", "email": "Alice@Example.com", "password": "password123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", resp.StatusCode, payload)
	}
	data, _ := payload["data"].(map[string]any)
	if data == nil || data["token"] == "" {
		t.Fatal("Signup response should carry a session token")
	}
	acct, _ := data["account"].(map[string]any)
	if acct["email"] != "alice@example.com" {
		t.Errorf("Email should be normalized, got %v", acct["email"])
	}

	// Cookie from signup authenticates /user/me
	resp, payload = env.request(t, http.MethodGet, "/user/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from /user/me, got %d: %v", resp.StatusCode, payload)
	}

	// Duplicate signup, even with different case, is rejected
	resp, payload = env.request(t, http.MethodPost, "/auth/signup", map[string]any{
		"name": "Alice Again", "email": "ALICE@example.com", "password": "password456",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for duplicate email, got %d", resp.StatusCode)
	}
	if msg, _ := payload["message"].(string); !strings.Contains(msg, "already exists") {
		t.Errorf("Expected duplicate email message, got: %v", payload["message"])
	}

	// Logout expires the cookie
	resp, payload = env.request(t, http.MethodPost, "/auth/logout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from logout, got %d", resp.StatusCode)
	}
	if payload["message"] != "Logged out successfully" {
		t.Errorf("Unexpected logout message: %v", payload["message"])
	}

	resp, _ = env.request(t, http.MethodGet, "/user/me", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 after logout, got %d", resp.StatusCode)
	}

	// Login again with normalized-differently email
	resp, _ = env.request(t, http.MethodPost, "/auth/login", map[string]any{
		"email": "  alice@example.com  ", "password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from login, got %d", resp.StatusCode)
	}
}

// TestLoginFailuresAreUniform verifies unknown email and wrong password are
// indistinguishable to the caller.
func TestLoginFailuresAreUniform(t *testing.T) {
	env := setupServer(t)
	env.signup(t, "Bob", "bob@example.com", "password123")

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "bob@example.com", "wrongpassword"},
		{"unknown email", "nobody@example.com", "password123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, payload := env.request(t, http.MethodPost, "/auth/login", map[string]any{
				"email": tt.email, "password": tt.password,
			})
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", resp.StatusCode)
			}
			if payload["message"] != "Invalid email or password" {
				t.Errorf("Expected the generic credential message, got: %v", payload["message"])
			}
		})
	}
}

// TestPasswordResetJourney covers the full forgot/reset round trip.
func TestPasswordResetJourney(t *testing.T) {
	env := setupServer(t)
	env.signup(t, "Carol", "carol@example.com", "password123")
	env.request(t, http.MethodPost, "/auth/logout", nil)

	resp, payload := env.request(t, http.MethodPost, "/auth/forgot-password", map[string]any{
		"email": "carol@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if msg, _ := payload["message"].(string); !strings.Contains(msg, "If an account with this email exists") {
		t.Errorf("Expected generic acknowledgment, got: %v", payload["message"])
	}

	email := env.sender.waitForEmail(t)
	if email.To != "carol@example.com" {
		t.Errorf("Email sent to wrong address: %s", email.To)
	}
	if !strings.Contains(email.TextBody, "expire in 15 minutes") {
		t.Errorf("Email should state the validity window, got: %s", email.TextBody)
	}
	secret := resetSecretFromEmail(t, email)

	// Redeem the secret
	resp, payload = env.request(t, http.MethodPatch, "/auth/reset-password/"+secret, map[string]any{
		"password": "newpassword456",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from reset, got %d: %v", resp.StatusCode, payload)
	}
	data, _ := payload["data"].(map[string]any)
	if data == nil || data["token"] == "" {
		t.Error("Successful reset should log the user in")
	}

	// Old password is dead, new one works
	resp, _ = env.request(t, http.MethodPost, "/auth/login", map[string]any{
		"email": "carol@example.com", "password": "password123",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Old password should fail, got %d", resp.StatusCode)
	}
	resp, _ = env.request(t, http.MethodPost, "/auth/login", map[string]any{
		"email": "carol@example.com", "password": "newpassword456",
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("New password should work, got %d", resp.StatusCode)
	}

	// The secret is single use
	resp, payload = env.request(t, http.MethodPatch, "/auth/reset-password/"+secret, map[string]any{
		"password": "anotherpassword789",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for replayed secret, got %d", resp.StatusCode)
	}
	if payload["message"] != "Password reset token is invalid or has expired" {
		t.Errorf("Expected the uniform token error, got: %v", payload["message"])
	}
}

// TestForgotPasswordDoesNotRevealAccounts checks the response for an
// unregistered address matches the registered one, and no email goes out.
func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	env := setupServer(t)
	env.signup(t, "Dave", "dave@example.com", "password123")

	resp, payload := env.request(t, http.MethodPost, "/auth/forgot-password", map[string]any{
		"email": "stranger@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for unknown email, got %d", resp.StatusCode)
	}
	if msg, _ := payload["message"].(string); !strings.Contains(msg, "If an account with this email exists") {
		t.Errorf("Expected generic acknowledgment, got: %v", payload["message"])
	}

	select {
	case email := <-env.sender.sent:
		t.Errorf("No email should be sent for unknown address, got one to %s", email.To)
	case <-time.After(200 * time.Millisecond):
	}
}

// TestDeliveryFailureDiscardsSecret verifies a reset secret issued for an
// email that never went out cannot later be consumed.
func TestDeliveryFailureDiscardsSecret(t *testing.T) {
	env := setupServer(t)
	env.signup(t, "Erin", "erin@example.com", "password123")

	env.sender.fail = true
	env.auth.ForgotPassword("erin@example.com")

	acct, err := env.store.ByEmail("erin@example.com", true)
	if err != nil {
		t.Fatalf("ByEmail failed: %v", err)
	}
	if acct.HasPendingReset(time.Now()) {
		t.Error("Undelivered reset secret should have been discarded")
	}
}

// TestUpdateProfileRejectsPasswordField ensures password changes cannot
// sneak through the profile route.
func TestUpdateProfileRejectsPasswordField(t *testing.T) {
	env := setupServer(t)
	env.signup(t, "Frank", "frank@example.com", "password123")

	resp, payload := env.request(t, http.MethodPatch, "/user/me", map[string]any{
		"name": "Franklin", "password": "sneaky-new-password",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
	if payload["message"] != "This route is not for password updates" {
		t.Errorf("Unexpected message: %v", payload["message"])
	}

	// Without the password field the update goes through
	resp, payload = env.request(t, http.MethodPatch, "/user/me", map[string]any{
		"name": "Franklin",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", resp.StatusCode, payload)
	}
	data, _ := payload["data"].(map[string]any)
	acct, _ := data["account"].(map[string]any)
	if acct["name"] != "Franklin" {
		t.Errorf("Name should be updated, got: %v", acct["name"])
	}
}

// TestDeleteAccount verifies deletion ends the session and frees the email.
func TestDeleteAccount(t *testing.T) {
	env := setupServer(t)
	env.signup(t, "Grace", "grace@example.com", "password123")

	resp, payload := env.request(t, http.MethodDelete, "/user/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if payload["message"] != "Account deleted successfully" {
		t.Errorf("Unexpected message: %v", payload["message"])
	}

	resp, _ = env.request(t, http.MethodPost, "/auth/login", map[string]any{
		"email": "grace@example.com", "password": "password123",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Login after deletion should fail, got %d", resp.StatusCode)
	}

	// The email can be registered again
	env.signup(t, "Grace II", "grace@example.com", "password456")
}

// TestSignupValidation covers the request validation table.
func TestSignupValidation(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name       string
		body       map[string]any
		checkError string
	}{
		{"missing name", map[string]any{"email": "a@example.com", "password": "password123"}, ""},
		{"missing email", map[string]any{"name": "A", "password": "password123"}, ""},
		{"missing password", map[string]any{"name": "A", "email": "a@example.com"}, ""},
		{"bad email", map[string]any{"name": "A", "email": "not-an-email", "password": "password123"}, "email"},
		{"short password", map[string]any{"name": "A", "email": "a@example.com", "password": "short"}, "at least 8 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, payload := env.request(t, http.MethodPost, "/auth/signup", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %v", resp.StatusCode, payload)
			}
			if tt.checkError != "" {
				if msg, _ := payload["message"].(string); !strings.Contains(msg, tt.checkError) {
					t.Errorf("Expected error containing %q, got: %v", tt.checkError, payload["message"])
				}
			}
		})
	}
}
