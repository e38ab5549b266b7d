package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/icza/gox/osx"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// ListenAddr is where the local redirect server listens during
// consent flows. It must match the redirect URIs registered with
// the identity providers.
const ListenAddr = "localhost:48500"

const errNotAuthorized string = "notauthorized"

// Surface is the presentation context consent screens are shown on.
// It is passed through to the identity provider and never inspected.
type Surface interface {
	Open(url string) error
}

// Browser presents consent screens on the system default browser.
type Browser struct{}

func (Browser) Open(url string) error {
	return osx.OpenDefault(url)
}

// Session is the identity provider's current session: the issued
// token and the permission scopes granted with it.
type Session struct {
	Token  *oauth2.Token
	Scopes []string
}

// HasScopes reports whether every provided scope has been granted.
func (s *Session) HasScopes(scopes ...string) bool {
	for _, scope := range scopes {
		granted := false

		for _, g := range s.Scopes {
			if g == scope {
				granted = true
				break
			}
		}

		if !granted {
			return false
		}
	}

	return true
}

// Identity is an identity provider client. It owns all session state,
// drive adapters only query it.
type Identity interface {
	SignIn(ctx context.Context, surface Surface) error
	Session() (*Session, bool)
	RequestScopes(ctx context.Context, surface Surface, scopes ...string) error
	SignOut()
}

// sendOutcome never blocks: the flow consumes a single outcome and a
// late or repeated redirect has nobody left to receive it.
func sendOutcome(ch chan string, outcome string) {
	select {
	case ch <- outcome:
	default:
	}
}

// serve starts a local http server for the provider redirect. A server
// that can't start (port already bound) reports through errc so the
// flow fails instead of waiting for a redirect that can never arrive.
// The server must be shut down by the caller once the flow completes.
func serve(mux *http.ServeMux, wg *sync.WaitGroup, errc chan error) *http.Server {
	srv := &http.Server{
		Addr:    ListenAddr,
		Handler: mux,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("redirect server crashed: %v", err)
			errc <- fmt.Errorf("redirect server crashed: %v", err)
		}
	}()

	return srv
}

// awaitRedirect opens the consent screen on the provided surface and
// blocks until the provider redirects back with an outcome, the server
// fails, or the context is canceled.
func awaitRedirect(ctx context.Context, surface Surface, authURL string, mux *http.ServeMux, ch chan string) (string, error) {
	wg := &sync.WaitGroup{}
	errc := make(chan error, 1)

	srv := serve(mux, wg, errc)

	if err := surface.Open(authURL); err != nil {
		srv.Shutdown(context.Background())
		return "", fmt.Errorf("couldn't present consent screen: %v", err)
	}

	var outcome string
	select {
	case outcome = <-ch:
	case err := <-errc:
		return "", err
	case <-ctx.Done():
		srv.Shutdown(context.Background())
		return "", ctx.Err()
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		return "", fmt.Errorf("couldn't shutdown redirect server: %v", err)
	}

	wg.Wait()

	if outcome == errNotAuthorized {
		return "", fmt.Errorf("access to the account isn't authorized")
	}

	return outcome, nil
}
