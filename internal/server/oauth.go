package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/pxm/internal/shared"
	"golang.org/x/oauth2"
)

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles the OAuth2 authorization code callback.
type OAuthHandler struct {
	config   *oauth2.Config
	state    string
	verifier string
	path     string
	results  chan OAuthResult
	once     sync.Once
	mu       sync.Mutex
	hit      bool
}

// NewOAuthHandler creates a callback handler for path.
//
// state must match the value sent with the consent URL; verifier is the PKCE code verifier, or empty to skip PKCE.
func NewOAuthHandler(config *oauth2.Config, state, verifier, path string) *OAuthHandler {
	if path == "" {
		path = "/callback"
	}
	return &OAuthHandler{
		config:   config,
		state:    state,
		verifier: verifier,
		path:     path,
		results:  make(chan OAuthResult, 1),
	}
}

// AuthCodeURL returns the consent URL requesting offline access, so the token carries a refresh token.
func (h *OAuthHandler) AuthCodeURL() string {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.ApprovalForce}
	if h.verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(h.verifier))
	}
	return h.config.AuthCodeURL(h.state, opts...)
}

func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP validates the callback and exchanges the authorization code. Only the first callback is processed.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.Send(OAuthResult{err: fmt.Errorf("%w: %s %s", shared.ErrAuthFailed, query.Get("error"), query.Get("error_description"))})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	var opts []oauth2.AuthCodeOption
	if h.verifier != "" {
		opts = append(opts, oauth2.VerifierOption(h.verifier))
	}

	token, err := h.config.Exchange(r.Context(), code, opts...)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("%w: token exchange failed: %v", shared.ErrAuthFailed, err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.Send(OAuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Send delivers result to [OAuthHandler.Result]. Only the first call has any effect.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>pxm: Google Photos authorized</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f8f9fa; }
        .card { text-align: center; background: white; padding: 2rem;
                border-radius: 8px; box-shadow: 0 1px 3px rgba(60,64,67,0.3); }
        h1 { color: #1a73e8; margin: 0 0 1rem 0; }
        p { color: #5f6368; margin: 0; }
    </style>
</head>
<body>
    <div class="card">
        <h1>✓ Google Photos authorized</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
