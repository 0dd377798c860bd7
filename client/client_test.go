package client_test

import (
	"errors"
	"net/http/httptest"
	"testing"

	la "github.com/panyam/localauth"
	"github.com/panyam/localauth/client"
	"github.com/panyam/localauth/stores"
)

type recordingSender struct {
	lastText string
}

func (r *recordingSender) Send(to, subject, htmlBody, textBody string) error {
	r.lastText = textBody
	return nil
}

func setupServer(t *testing.T) (*client.AuthClient, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	auth := la.New(&la.Config{
		AppName:      "ClientTest",
		BaseURL:      "http://example.com",
		JWTSecretKey: "client-test-secret",
	}, stores.NewFSAccountStore(t.TempDir()), sender)

	server := httptest.NewServer(auth.Routes())
	t.Cleanup(server.Close)
	return client.NewAuthClient(server.URL), sender
}

func TestClientSessionLifecycle(t *testing.T) {
	c, _ := setupServer(t)

	acct, err := c.Signup("Alice", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if acct.Email != "alice@example.com" {
		t.Errorf("Unexpected email: %s", acct.Email)
	}
	if c.Token() == "" {
		t.Error("Signup should leave a session token on the client")
	}

	// Cookie jar authenticates subsequent calls
	me, err := c.Me()
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if me.ID != acct.ID {
		t.Errorf("Me returned wrong account: %s", me.ID)
	}

	updated, err := c.UpdateProfile("Alicia", "")
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Name != "Alicia" {
		t.Errorf("Name not updated: %s", updated.Name)
	}

	if err := c.Logout(); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := c.Me(); err == nil {
		t.Error("Me should fail after logout")
	}

	if _, err := c.Login("alice@example.com", "password123"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := c.Me(); err != nil {
		t.Errorf("Me should work after login: %v", err)
	}
}

func TestClientLoginError(t *testing.T) {
	c, _ := setupServer(t)

	_, err := c.Login("nobody@example.com", "password123")
	if err == nil {
		t.Fatal("Expected login to fail")
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *client.APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 401 {
		t.Errorf("Expected 401, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Invalid email or password" {
		t.Errorf("Unexpected message: %s", apiErr.Message)
	}
}

func TestClientDeleteAccount(t *testing.T) {
	c, _ := setupServer(t)

	if _, err := c.Signup("Bob", "bob@example.com", "password123"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if err := c.DeleteAccount(); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if _, err := c.Login("bob@example.com", "password123"); err == nil {
		t.Error("Login should fail after deletion")
	}
}
