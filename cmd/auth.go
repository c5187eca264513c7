package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/pxm/internal/server"
	"github.com/desertthunder/pxm/internal/services"
	"github.com/desertthunder/pxm/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// callbackAddr splits a redirect URI into the address to listen on and the callback path.
func callbackAddr(redirectURI string) (addr, path string, err error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("%w: redirect_uri %q is not an absolute URL", shared.ErrInvalidConfig, redirectURI)
	}
	if u.Scheme != "http" {
		return "", "", fmt.Errorf("%w: redirect_uri must use http for the local callback, got %q", shared.ErrInvalidConfig, u.Scheme)
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return u.Host, path, nil
}

// AuthGoogle performs the OAuth2 authorization code flow for Google Photos.
//
// Starts a local HTTP server on the redirect URI, opens the browser for consent,
// exchanges the code (with PKCE) and caches the token.
func (r *Runner) AuthGoogle(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	google := config.Credentials.Google

	oauthConfig, err := services.GoogleOAuthConfig(google.ClientSecretFile, google.RedirectURI)
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, oauthConfig, cmd.Duration("timeout"), !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}
	if token.RefreshToken == "" {
		r.logger.Warn("no refresh token returned; the token cannot be renewed after it expires")
	}

	if err := services.SaveToken(google.TokenFile, token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token saved to %s\n\n", google.TokenFile)
	r.writePlain("You can now use: pxm migrate run\n")
	return nil
}

func (r *Runner) doOAuth(ctx context.Context, oauthConfig *oauth2.Config, timeout time.Duration, openBrowser bool) (*oauth2.Token, error) {
	addr, path, err := callbackAddr(oauthConfig.RedirectURL)
	if err != nil {
		return nil, err
	}

	verifier := oauth2.GenerateVerifier()
	oauthHandler := server.NewOAuthHandler(oauthConfig, shared.GenerateState(), verifier, path)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	listenAddr, serverErrors, err := server.Start(srvCtx, addr, router)
	if err != nil {
		return nil, err
	}
	r.logger.Infof("starting OAuth callback server at %v", listenAddr)

	authURL := oauthHandler.AuthCodeURL()
	if openBrowser {
		r.writePlain("→ Opening browser for Google Photos authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			openBrowser = false
		}
	}
	if !openBrowser {
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	if timeout <= 0 {
		timeout = authTimeout
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		if err == nil {
			err = errors.New("callback server stopped")
		}
		return nil, fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

// AuthStatus reports the cached Google token and whether Flickr credentials are configured.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	flickr := config.Credentials.Flickr
	r.writePlainHeader("Flickr")
	if flickr.APIKey == "" || flickr.Username == "" {
		r.writePlain("Credentials: ✗ api_key and username must be set\n")
	} else {
		r.writePlain("Credentials: ✓ api key configured\n")
		r.writePlain("Account: %s\n", flickr.Username)
	}

	r.writePlain("\n")
	r.writePlainHeader("Google Photos")
	token, err := services.LoadToken(config.Credentials.Google.TokenFile)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		r.writePlain("Authentication: ✗ Not authenticated (run `pxm auth google`)\n")
		return nil
	} else if err != nil {
		return err
	}

	r.writePlain("Token file: %s\n", config.Credentials.Google.TokenFile)
	if token.Expiry.IsZero() {
		r.writePlain("Access token: no expiry recorded\n")
	} else if token.Valid() {
		r.writePlain("Access token: ✓ valid until %s\n", token.Expiry.Local().Format(time.DateTime))
	} else {
		r.writePlain("Access token: expired at %s\n", token.Expiry.Local().Format(time.DateTime))
	}
	if token.RefreshToken != "" {
		r.writePlain("Refresh token: ✓ present\n")
	} else {
		r.writePlain("Refresh token: ✗ missing (run `pxm auth google` again)\n")
	}
	return nil
}
