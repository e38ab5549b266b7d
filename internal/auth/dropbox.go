package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/oauth2"
)

const (
	dropboxOAuth2URLTemplate = "https://www.dropbox.com/oauth2/authorize?client_id=%s&response_type=token&redirect_uri=%s"
	dropboxRedirectPath      = "/dbx/redirect"
	dropboxTokenPath         = "/dbx/token"
)

const htmlTemplate = `
<html><head><script>

var post = function(result) {
	var http = new XMLHttpRequest();
	var url = "/dbx/token";

	http.open("POST", url, true);

	http.setRequestHeader("Content-type", "application/json");

	http.onreadystatechange = function() {
		if (this.readyState == 4) {
			window.location.href = "https://www.dropbox.com/";
		}
	};

	http.send(JSON.stringify(result));
};

var hash = window.location.hash;
var atIdx = hash.indexOf("access_token");

if (atIdx === -1) {
	post({ status: 0 });
} else {
	var start = atIdx + "access_token=".length;
	var end = hash.indexOf("&", start);

	post({ status: 1, token: hash.substring(start, end) });
}

</script></head></html>
` // the token arrives in the URL fragment, only the browser can see it

type dropboxResult struct {
	Status int
	Token  string
}

// DropboxIdentity obtains a Dropbox app-folder access token over the
// implicit grant flow. App-folder tokens carry their grants with them,
// so the session has no separate scope set.
type DropboxIdentity struct {
	appKey string

	mu      sync.Mutex
	session *Session
}

// NewDropboxIdentity creates an identity client for the given Dropbox app key.
func NewDropboxIdentity(appKey string) *DropboxIdentity {
	return &DropboxIdentity{appKey: appKey}
}

func dropboxRedirectHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, htmlTemplate)
}

func dropboxTokenHandler(ch chan string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1024))
		if err != nil {
			sendOutcome(ch, errNotAuthorized)
			return
		}

		var res dropboxResult
		if err := json.Unmarshal(body, &res); err != nil || res.Status == 0 {
			sendOutcome(ch, errNotAuthorized)
			return
		}

		sendOutcome(ch, res.Token)
	})
}

// SignIn runs the consent flow and establishes a session.
func (d *DropboxIdentity) SignIn(ctx context.Context, surface Surface) error {
	ch := make(chan string, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(dropboxRedirectPath, dropboxRedirectHandler)
	mux.Handle(dropboxTokenPath, dropboxTokenHandler(ch))

	redirectURI := fmt.Sprintf("http://%s%s", ListenAddr, dropboxRedirectPath)
	authURL := fmt.Sprintf(dropboxOAuth2URLTemplate, d.appKey, url.QueryEscape(redirectURI))

	token, err := awaitRedirect(ctx, surface, authURL, mux, ch)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.session = &Session{
		Token: &oauth2.Token{AccessToken: token, TokenType: "bearer"},
	}
	d.mu.Unlock()

	return nil
}

// Session returns the current session, if any.
func (d *DropboxIdentity) Session() (*Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, false
	}

	return d.session, true
}

// RequestScopes is a no-op for Dropbox: app-folder tokens can't be
// granted additional scopes after issuance.
func (d *DropboxIdentity) RequestScopes(ctx context.Context, surface Surface, scopes ...string) error {
	if _, ok := d.Session(); !ok {
		return fmt.Errorf("no active session")
	}

	return nil
}

// SignOut drops the local session without revoking the token.
func (d *DropboxIdentity) SignOut() {
	d.mu.Lock()
	d.session = nil
	d.mu.Unlock()
}
