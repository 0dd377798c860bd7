// Package client is a Go client for the localauth HTTP endpoints. It keeps
// the session cookie in a jar so calls after Login/Signup are
// authenticated automatically.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// Account mirrors the sanitized account payload the server returns.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// apiResponse is the server's response envelope.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Data    struct {
		Token   string   `json:"token"`
		Account *Account `json:"account"`
	} `json:"data"`
}

// APIError is returned when the server responds with success=false.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// AuthClient talks to a localauth server. The zero value is not usable;
// construct with NewAuthClient.
type AuthClient struct {
	serverURL  string
	httpClient *http.Client

	// token holds the most recent session token, for callers that need to
	// authenticate non-cookie transports (e.g. gRPC metadata).
	token string
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config, etc.)
// A cookie jar is installed if the client has none.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AuthClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewAuthClient creates a client for the server at serverURL.
func NewAuthClient(serverURL string, opts ...ClientOption) *AuthClient {
	// Normalize server URL
	u, err := url.Parse(serverURL)
	if err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}

	c := &AuthClient{
		serverURL:  serverURL,
		httpClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient.Jar == nil {
		jar, _ := cookiejar.New(nil)
		c.httpClient.Jar = jar
	}

	return c
}

// HTTPClient returns the underlying HTTP client, cookie jar included.
func (c *AuthClient) HTTPClient() *http.Client {
	return c.httpClient
}

// ServerURL returns the server URL this client is configured for
func (c *AuthClient) ServerURL() string {
	return c.serverURL
}

// Token returns the session token from the most recent Signup, Login or
// ResetPassword call, or "" if none succeeded yet.
func (c *AuthClient) Token() string {
	return c.token
}

// Signup registers an account and logs it in.
func (c *AuthClient) Signup(name, email, password string) (*Account, error) {
	resp, err := c.do(http.MethodPost, "/auth/signup", map[string]any{
		"name":     name,
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	c.token = resp.Data.Token
	return resp.Data.Account, nil
}

// Login authenticates with email and password.
func (c *AuthClient) Login(email, password string) (*Account, error) {
	resp, err := c.do(http.MethodPost, "/auth/login", map[string]any{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	c.token = resp.Data.Token
	return resp.Data.Account, nil
}

// Logout clears the session. Safe to call when not logged in.
func (c *AuthClient) Logout() error {
	_, err := c.do(http.MethodPost, "/auth/logout", nil)
	c.token = ""
	return err
}

// ForgotPassword requests a reset email. The server response is the same
// whether or not the address is registered.
func (c *AuthClient) ForgotPassword(email string) error {
	_, err := c.do(http.MethodPost, "/auth/forgot-password", map[string]any{
		"email": email,
	})
	return err
}

// ResetPassword redeems a reset secret (from the emailed link) and sets the
// new password. On success the client is logged in as that account.
func (c *AuthClient) ResetPassword(secret, newPassword string) (*Account, error) {
	resp, err := c.do(http.MethodPatch, "/auth/reset-password/"+url.PathEscape(secret), map[string]any{
		"password": newPassword,
	})
	if err != nil {
		return nil, err
	}
	c.token = resp.Data.Token
	return resp.Data.Account, nil
}

// Me returns the logged in account.
func (c *AuthClient) Me() (*Account, error) {
	resp, err := c.do(http.MethodGet, "/user/me", nil)
	if err != nil {
		return nil, err
	}
	return resp.Data.Account, nil
}

// UpdateProfile changes name and/or email. Pass "" to leave a field alone.
// Password changes are rejected by the server on this route.
func (c *AuthClient) UpdateProfile(name, email string) (*Account, error) {
	body := map[string]any{}
	if name != "" {
		body["name"] = name
	}
	if email != "" {
		body["email"] = email
	}
	resp, err := c.do(http.MethodPatch, "/user/me", body)
	if err != nil {
		return nil, err
	}
	return resp.Data.Account, nil
}

// DeleteAccount removes the logged in account.
func (c *AuthClient) DeleteAccount() error {
	_, err := c.do(http.MethodDelete, "/user/me", nil)
	c.token = ""
	return err
}

func (c *AuthClient) do(method, path string, body map[string]any) (*apiResponse, error) {
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest(method, c.serverURL+path, &reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", path, err)
	}

	if !resp.Success {
		return nil, &APIError{
			StatusCode: httpResp.StatusCode,
			Code:       resp.Code,
			Message:    resp.Message,
		}
	}
	return &resp, nil
}
