package resolver

import "errors"

// Sentinel error kinds the resolver and its callers branch on. The backend
// gateway maps transport-level failures onto these before they reach the
// resolver, so retry and dialog decisions never inspect HTTP status codes.
var (
	// ErrNotAuthorized means the account token is missing or was rejected
	// even after a refresh attempt. Never retried.
	ErrNotAuthorized = errors.New("spotify account not authorized")

	// ErrTransient marks a failure worth retrying: a 5xx from the backend,
	// a timeout, or a dropped connection.
	ErrTransient = errors.New("transient backend failure")

	// ErrNoDevices means no Spotify Connect device is available to play on.
	ErrNoDevices = errors.New("no playback devices available")

	// ErrPlaylistNotFound means a requested playlist matched nothing in the
	// user's library or the public catalog.
	ErrPlaylistNotFound = errors.New("playlist not found")
)
