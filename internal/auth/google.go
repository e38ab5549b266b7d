package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleRedirectPath = "/gdrive/redirect"

// GoogleIdentity signs in to Google over the OAuth authorization code
// flow with a local redirect server and keeps the resulting session.
type GoogleIdentity struct {
	config *oauth2.Config

	mu      sync.Mutex
	session *Session
}

// NewGoogleIdentity creates an identity client for the Google account
// consent flow. The provided scopes are requested on sign-in but the
// session records what was actually granted.
func NewGoogleIdentity(apiKey, clientID string, scopes ...string) *GoogleIdentity {
	return &GoogleIdentity{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: apiKey,
			Endpoint:     google.Endpoint,
			RedirectURL:  fmt.Sprintf("http://%s%s", ListenAddr, googleRedirectPath),
			Scopes:       scopes,
		},
	}
}

func googleRedirectHandler(ch chan string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		code, present := query["code"]

		if !present || len(code) != 1 {
			sendOutcome(ch, errNotAuthorized)
			return
		}

		sendOutcome(ch, code[0])

		http.Redirect(w, r, "https://drive.google.com", http.StatusFound)
	})
}

// SignIn runs the consent flow and establishes a session.
func (g *GoogleIdentity) SignIn(ctx context.Context, surface Surface) error {
	authURL := g.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	token, err := g.exchange(ctx, surface, g.config, authURL)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.session = &Session{Token: token, Scopes: grantedScopes(token)}
	g.mu.Unlock()

	return nil
}

// Session returns the current session, if any.
func (g *GoogleIdentity) Session() (*Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session == nil {
		return nil, false
	}

	return g.session, true
}

// RequestScopes asks the user for additional scopes on top of the ones
// already granted. The granted set is re-checked afterwards since the
// provider may grant fewer scopes than requested.
func (g *GoogleIdentity) RequestScopes(ctx context.Context, surface Surface, scopes ...string) error {
	g.mu.Lock()
	session := g.session
	g.mu.Unlock()

	if session == nil {
		return fmt.Errorf("no active session")
	}

	conf := *g.config
	conf.Scopes = scopes

	authURL := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"))

	token, err := g.exchange(ctx, surface, &conf, authURL)
	if err != nil {
		return err
	}

	sess := &Session{Token: token, Scopes: grantedScopes(token)}
	if !sess.HasScopes(scopes...) {
		return fmt.Errorf("requested scopes weren't granted")
	}

	g.mu.Lock()
	g.session = sess
	g.mu.Unlock()

	return nil
}

// SignOut drops the local session. Grants on the Google account are
// left untouched.
func (g *GoogleIdentity) SignOut() {
	g.mu.Lock()
	g.session = nil
	g.mu.Unlock()
}

func (g *GoogleIdentity) exchange(ctx context.Context, surface Surface, conf *oauth2.Config, authURL string) (*oauth2.Token, error) {
	ch := make(chan string, 1)

	mux := http.NewServeMux()
	mux.Handle(googleRedirectPath, googleRedirectHandler(ch))

	code, err := awaitRedirect(ctx, surface, authURL, mux, ch)
	if err != nil {
		return nil, err
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("couldn't exchange authorization code: %v", err)
	}

	return token, nil
}

// grantedScopes extracts the scopes granted with the token. Google
// reports them space separated in the token response.
func grantedScopes(token *oauth2.Token) []string {
	scope, _ := token.Extra("scope").(string)

	return strings.Fields(scope)
}
