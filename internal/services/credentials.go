package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pxm/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Google Photos Library API scopes. The library scope was narrowed to app-created content in 2025,
// which still covers every album and item this tool creates.
var GooglePhotosScopes = []string{
	"https://www.googleapis.com/auth/photoslibrary.appendonly",
	"https://www.googleapis.com/auth/photoslibrary.readonly.appcreateddata",
	"https://www.googleapis.com/auth/photoslibrary.edit.appcreateddata",
}

// CredentialProvider hands out bearer values that are valid for the next request.
type CredentialProvider interface {
	ValidToken(ctx context.Context) (string, error)
}

// StaticCredential is a fixed secret such as an API key.
type StaticCredential string

func (s StaticCredential) ValidToken(context.Context) (string, error) {
	if s == "" {
		return "", shared.ErrMissingCredentials
	}
	return string(s), nil
}

// RefreshingCredential wraps an OAuth2 token and refreshes it synchronously
// once the last refresh is older than the threshold or the token is no longer valid.
//
// Refreshed tokens are written back to the token file when one is configured.
type RefreshingCredential struct {
	config      *oauth2.Config
	token       *oauth2.Token
	lastRefresh time.Time
	threshold   time.Duration
	tokenFile   string
	now         func() time.Time
	logger      *log.Logger
}

// NewRefreshingCredential creates a credential around a cached token.
//
// A token that is still valid counts as freshly refreshed.
func NewRefreshingCredential(config *oauth2.Config, token *oauth2.Token, threshold time.Duration, tokenFile string, logger *log.Logger) *RefreshingCredential {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	c := &RefreshingCredential{
		config:    config,
		token:     token,
		threshold: threshold,
		tokenFile: tokenFile,
		now:       time.Now,
		logger:    logger,
	}
	if token != nil && token.Valid() {
		c.lastRefresh = c.now()
	}
	return c
}

// ValidToken returns an access token, refreshing first when it is stale.
func (c *RefreshingCredential) ValidToken(ctx context.Context) (string, error) {
	if c.token == nil {
		return "", shared.ErrNotAuthenticated
	}

	if c.now().Sub(c.lastRefresh) > c.threshold || !c.token.Valid() {
		if err := c.Refresh(ctx); err != nil {
			return "", err
		}
	}
	return c.token.AccessToken, nil
}

// Refresh exchanges the refresh token for a new access token.
func (c *RefreshingCredential) Refresh(ctx context.Context) error {
	if c.token == nil {
		return shared.ErrNotAuthenticated
	}
	if c.token.RefreshToken == "" {
		return fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrNoRefreshToken)
	}

	c.logger.Debug("refreshing access token", "last_refresh", c.lastRefresh)

	src := c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: c.token.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = c.token.RefreshToken
	}

	c.token = token
	c.lastRefresh = c.now()

	if c.tokenFile != "" {
		if err := SaveToken(c.tokenFile, token); err != nil {
			c.logger.Warn("failed to persist refreshed token", "path", c.tokenFile, "error", err)
		}
	}
	return nil
}

// Token returns the current token.
func (c *RefreshingCredential) Token() *oauth2.Token { return c.token }

// LoadToken reads a cached OAuth2 token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no token at %s", shared.ErrNotAuthenticated, path)
		}
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("%w: failed to parse token: %v", shared.ErrInvalidCredentials, err)
	}
	return &token, nil
}

// SaveToken writes token to path with owner-only permissions.
func SaveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// GoogleOAuthConfig builds an OAuth2 config from a downloaded Google client secret file
// (either the "installed" or the "web" application type).
func GoogleOAuthConfig(clientSecretFile, redirectURI string) (*oauth2.Config, error) {
	data, err := os.ReadFile(clientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read client secret: %v", shared.ErrMissingCredentials, err)
	}

	type clientSecret struct {
		ClientID     string   `json:"client_id"`
		ClientSecret string   `json:"client_secret"`
		AuthURI      string   `json:"auth_uri"`
		TokenURI     string   `json:"token_uri"`
		RedirectURIs []string `json:"redirect_uris"`
	}
	var file struct {
		Installed *clientSecret `json:"installed"`
		Web       *clientSecret `json:"web"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: failed to parse client secret: %v", shared.ErrInvalidCredentials, err)
	}

	secret := file.Installed
	if secret == nil {
		secret = file.Web
	}
	if secret == nil || secret.ClientID == "" || secret.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client secret has no client_id/client_secret", shared.ErrInvalidCredentials)
	}

	endpoint := endpoints.Google
	if secret.AuthURI != "" {
		endpoint.AuthURL = secret.AuthURI
	}
	if secret.TokenURI != "" {
		endpoint.TokenURL = secret.TokenURI
	}

	if redirectURI == "" && len(secret.RedirectURIs) > 0 {
		redirectURI = secret.RedirectURIs[0]
	}

	return &oauth2.Config{
		ClientID:     secret.ClientID,
		ClientSecret: secret.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       GooglePhotosScopes,
		Endpoint:     endpoint,
	}, nil
}
