// Package server runs the short-lived loopback HTTP server used to authorize against Google Photos.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback. It validates the state parameter,
// exchanges the code (with the PKCE verifier) for a token, and sends exactly one [OAuthResult] through a channel.
// Later callbacks are rejected.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] wraps [http.ServeMux]
// and applies [Middleware] so that the first one added is the outermost. [RequestLogger] logs every request.
//
// [Start] binds a listener and serves a router until its context ends, so `pxm auth google` can shut the
// server down as soon as the token arrives.
package server
