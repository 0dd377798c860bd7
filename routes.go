package localauth

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// Routes returns a router with the auth and account endpoints mounted:
//
//	POST   /auth/signup
//	POST   /auth/login
//	POST   /auth/logout
//	POST   /auth/forgot-password
//	PATCH  /auth/reset-password/{token}
//	GET    /user/me
//	PATCH  /user/me
//	DELETE /user/me
//
// Callers who want their own routing can mount the Handle* methods
// directly; the /user subtree then needs Middleware.EnsureUser in front.
func (a *Auth) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.recoverPanic)

	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/signup", a.HandleSignup).Methods(http.MethodPost)
	auth.HandleFunc("/login", a.HandleLogin).Methods(http.MethodPost)
	auth.HandleFunc("/logout", a.HandleLogout).Methods(http.MethodPost)
	auth.HandleFunc("/forgot-password", a.HandleForgotPassword).Methods(http.MethodPost)
	auth.HandleFunc("/reset-password/{token}", a.HandleResetPassword).Methods(http.MethodPatch)
	auth.HandleFunc("/reset-password", a.HandleResetPassword).Methods(http.MethodPatch)

	user := r.PathPrefix("/user").Subrouter()
	user.Use(a.Middleware.EnsureUser)
	user.HandleFunc("/me", a.HandleMe).Methods(http.MethodGet)
	user.HandleFunc("/me", a.HandleUpdateProfile).Methods(http.MethodPatch)
	user.HandleFunc("/me", a.HandleDeleteAccount).Methods(http.MethodDelete)

	return r
}

// recoverPanic converts an unexpected panic into a generic 500. The error
// is logged server-side; nothing internal reaches the caller.
func (a *Auth) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, NewAuthError(ErrCodeInternalError, "Something went wrong!", ""))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
