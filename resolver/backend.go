package resolver

import "context"

// Backend is the catalog surface the resolver queries. The Spotify gateway
// implements it; tests substitute a fake.
//
// Errors returned by a Backend are expected to be wrapped in the sentinel
// kinds from errors.go where they apply, so the resolver can decide what to
// retry and what to surface.
type Backend interface {
	// Search runs a catalog search scoped to one result kind. Term may use
	// Spotify's query operators ("*bad magic* artist:motorhead").
	Search(ctx context.Context, term string, kind QueryKind) ([]Candidate, error)

	// CurrentUserPlaylists lists the playlists in the user's library.
	CurrentUserPlaylists(ctx context.Context) ([]Candidate, error)

	// PlaylistTracks lists the tracks of a playlist by URI.
	PlaylistTracks(ctx context.Context, uri string) ([]Candidate, error)

	// ArtistTopTracks lists an artist's top tracks by artist URI.
	ArtistTopTracks(ctx context.Context, uri string) ([]Candidate, error)

	// AlbumTracks lists an album's tracks in album order by album URI.
	AlbumTracks(ctx context.Context, uri string) ([]Candidate, error)

	// SavedTracks lists every track the user has saved, fully paginated.
	SavedTracks(ctx context.Context) ([]Candidate, error)

	// Devices lists the Spotify Connect devices currently visible.
	Devices(ctx context.Context) ([]Device, error)
}
