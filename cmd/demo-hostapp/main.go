// demo-hostapp runs a localauth server against the filesystem store with
// reset emails printed to the console. Useful for poking at the endpoints
// with curl during development, not for production.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/alexedwards/scs/v2"

	la "github.com/panyam/localauth"
	"github.com/panyam/localauth/stores"
)

func main() {
	addr := flag.String("addr", ":8080", "address to listen on")
	dataDir := flag.String("data", "/tmp/localauth-demo", "directory for account storage")
	flag.Parse()

	secret := os.Getenv("LOCALAUTH_JWT_SECRET")
	if secret == "" {
		log.Println("LOCALAUTH_JWT_SECRET not set, using an insecure demo secret")
		secret = "demo-secret-do-not-use"
	}

	cfg := &la.Config{
		AppName:      "DemoApp",
		BaseURL:      "http://localhost" + *addr,
		JWTSecretKey: secret,
	}

	auth := la.New(cfg, stores.NewFSAccountStore(*dataDir), &la.ConsoleEmailSender{})

	sessionManager := scs.New()
	auth.Sessions.Session = sessionManager
	auth.Middleware.SessionGetter = func(r *http.Request, param string) any {
		return sessionManager.Get(r.Context(), param)
	}

	log.Printf("listening on %s, storing accounts under %s", *addr, *dataDir)
	if err := http.ListenAndServe(*addr, sessionManager.LoadAndSave(auth.Routes())); err != nil {
		log.Fatal(err)
	}
}
