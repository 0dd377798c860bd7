// Package localauth provides the credential and session-token lifecycle for
// web backends that authenticate with an email address and password.
//
// It covers signup, login, logout and a single-use, time-boxed password reset
// flow, backed by signed session tokens delivered as HTTP-only cookies. The
// HTTP framework around it, request rate limiting, CORS configuration and the
// email transport are deliberately out of scope: localauth consumes an
// AccountStore and an EmailSender and exposes plain http.HandlerFunc
// endpoints that any router can mount.
//
// # Architecture
//
// Account: the identity record. Stores the account's bcrypt password hash and,
// while a reset is pending, the SHA-256 digest and expiry of the reset secret.
// Plaintext passwords and reset secrets are never persisted.
//
// SessionSigner: issues and verifies short-lived signed tokens (JWT, HS256)
// binding an account id to an expiry. Tokens are stateless; validity is
// derived purely from signature and expiry.
//
// ResetTokens: generates 256-bit random reset secrets, stores only their
// digest plus expiry on the account, and consumes them exactly once.
//
// SessionIssuer: turns a signed token into an HTTP credential - an HTTP-only,
// SameSite=Strict cookie - and optionally mirrors the login into a server-side
// session manager.
//
// Auth: the use-case layer composing the above against the AccountStore with
// enumeration-safe responses.
//
// # Basic Usage
//
// Set up a store and construct the Auth service:
//
//	import (
//	    "github.com/panyam/localauth"
//	    "github.com/panyam/localauth/stores"
//	)
//
//	cfg := (&localauth.Config{
//	    AppName:      "MyApp",
//	    BaseURL:      "https://myapp.example.com",
//	    JWTSecretKey: secretFromYourConfigLayer,
//	}).EnsureDefaults()
//
//	store := stores.NewFSAccountStore("/path/to/storage")
//	auth := localauth.New(cfg, store, &localauth.ConsoleEmailSender{})
//
// Mount the routes:
//
//	http.ListenAndServe(":8080", auth.Routes())
//
// Or wire individual handlers into your own router:
//
//	r.HandleFunc("/auth/login", auth.HandleLogin).Methods("POST")
//
// Production deployments replace the FS store with the GORM or Datastore
// backed stores in stores/gorm and stores/gae, and the console email sender
// with a real one.
package localauth
