// Package services defines the [Source] and [Destination] interfaces for hosted photo libraries and implements them for Flickr and Google Photos.
//
// # Source: Flickr
//
// [FlickrService] reads a user's library through the Flickr REST API with an API key.
// Every REST call waits on a [rate.Limiter] so long migrations stay inside Flickr's hourly quota.
// Failed calls (stat "fail") surface the Flickr code and message.
//
// # Destination: Google Photos
//
// [GooglePhotosService] writes through the Library API: albums are listed and created,
// bytes are uploaded raw for an upload token, tokens become media items in one batchCreate call,
// and items are attached to albums with batchAddMediaItems.
//
// # Credentials
//
// Both services obtain their secret through a [CredentialProvider] before each request:
//   - [StaticCredential] : a fixed API key
//   - [RefreshingCredential] : an OAuth2 token refreshed once the last refresh is older than a threshold
//
// Callers never touch transport internals to read the token.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : source request failed
//   - [shared.ErrUserNotFound] : the Flickr username does not exist
//   - [shared.ErrDestinationRequest] : destination request failed
//   - [shared.ErrNotAuthenticated] : no cached OAuth token
//   - [shared.ErrRefreshFailed] : the OAuth token could not be refreshed
package services
