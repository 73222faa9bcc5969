// Package spotify is the gateway to the Spotify Web API. It owns
// authorization, token refresh, pagination and error classification, and
// exposes the catalog through resolver.Backend plus a set of playback
// operations.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/forslund/spotify-skill/config"
	"github.com/forslund/spotify-skill/resolver"
)

const searchLimit = 10

// Client wraps the Spotify API client. Safe for concurrent use.
type Client struct {
	auth      *spotifyauth.Authenticator
	oauthConf *oauth2.Config
	tokenPath string
	country   string
	log       *zap.Logger

	mu  sync.Mutex
	api *spotify.Client
}

// NewClient creates an authorized Spotify client from a previously saved
// token. Use Authorize first when no token file exists.
func NewClient(cfg *config.Config, log *zap.Logger) (*Client, error) {
	c := newClient(cfg, log)

	token, err := LoadToken(cfg.Spotify.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("not authorized, run with -authorize first: %w", resolver.ErrNotAuthorized)
	}
	c.setToken(context.Background(), token)
	return c, nil
}

func newClient(cfg *config.Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		auth: spotifyauth.New(
			spotifyauth.WithRedirectURL(cfg.Spotify.RedirectURI),
			spotifyauth.WithClientID(cfg.Spotify.ClientID),
			spotifyauth.WithClientSecret(cfg.Spotify.ClientSecret),
			spotifyauth.WithScopes(
				spotifyauth.ScopePlaylistReadPrivate,
				spotifyauth.ScopePlaylistReadCollaborative,
				spotifyauth.ScopeUserLibraryRead,
				spotifyauth.ScopeUserReadPlaybackState,
				spotifyauth.ScopeUserModifyPlaybackState,
			),
		),
		oauthConf: &oauth2.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RedirectURL:  cfg.Spotify.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		tokenPath: cfg.Spotify.TokenFile,
		country:   cfg.Spotify.Country,
		log:       log,
	}
}

// setToken installs an API client backed by token. Refreshed tokens are
// written back to the token file.
func (c *Client) setToken(ctx context.Context, token *oauth2.Token) {
	src := newPersistingSource(c.oauthConf.TokenSource(ctx, token), c.tokenPath)
	httpClient := oauth2.NewClient(ctx, src)
	c.mu.Lock()
	c.api = spotify.New(httpClient)
	c.mu.Unlock()
}

func (c *Client) apiClient() *spotify.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.api
}

// call runs fn and classifies its error. A rejected token gets one forced
// re-authorization from the token file and one retry; a second rejection
// surfaces as ErrNotAuthorized.
func (c *Client) call(ctx context.Context, op string, fn func(api *spotify.Client) error) error {
	err := classify(fn(c.apiClient()))
	if err == nil {
		return nil
	}
	if !errors.Is(err, resolver.ErrNotAuthorized) {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.log.Info("access token rejected, re-authorizing", zap.String("op", op))
	token, lerr := LoadToken(c.tokenPath)
	if lerr != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	// Expire the cached access token so the next call refreshes it.
	token.Expiry = time.Now().Add(-time.Minute)
	c.setToken(ctx, token)

	if err := classify(fn(c.apiClient())); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Search runs a catalog search scoped to one result kind.
func (c *Client) Search(ctx context.Context, term string, kind resolver.QueryKind) ([]resolver.Candidate, error) {
	var out []resolver.Candidate
	err := c.call(ctx, "search", func(api *spotify.Client) error {
		result, err := api.Search(ctx, term, searchType(kind), spotify.Limit(searchLimit))
		if err != nil {
			return err
		}
		out = searchCandidates(result, kind)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CurrentUserPlaylists fetches all playlists in the user's library.
func (c *Client) CurrentUserPlaylists(ctx context.Context) ([]resolver.Candidate, error) {
	var out []resolver.Candidate
	err := c.call(ctx, "get user playlists", func(api *spotify.Client) error {
		page, err := api.CurrentUsersPlaylists(ctx, spotify.Limit(50))
		if err != nil {
			return err
		}
		for {
			for _, p := range page.Playlists {
				out = append(out, playlistCandidate(p))
			}
			if err := api.NextPage(ctx, page); err != nil {
				if errors.Is(err, spotify.ErrNoMorePages) {
					return nil
				}
				return err
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PlaylistTracks fetches all tracks of a playlist by URI.
func (c *Client) PlaylistTracks(ctx context.Context, uri string) ([]resolver.Candidate, error) {
	id := idFromURI(uri)
	var out []resolver.Candidate
	err := c.call(ctx, "get playlist tracks", func(api *spotify.Client) error {
		offset := 0
		for {
			page, err := api.GetPlaylistTracks(ctx, spotify.ID(id), spotify.Offset(offset), spotify.Limit(100))
			if err != nil {
				if notFound(err) {
					return resolver.ErrPlaylistNotFound
				}
				return err
			}
			for _, item := range page.Tracks {
				out = append(out, trackCandidate(item.Track))
			}
			if len(page.Tracks) < 100 {
				return nil
			}
			offset += 100
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ArtistTopTracks fetches an artist's top tracks by URI.
func (c *Client) ArtistTopTracks(ctx context.Context, uri string) ([]resolver.Candidate, error) {
	id := idFromURI(uri)
	var out []resolver.Candidate
	err := c.call(ctx, "get artist top tracks", func(api *spotify.Client) error {
		tracks, err := api.GetArtistsTopTracks(ctx, spotify.ID(id), c.country)
		if err != nil {
			return err
		}
		for _, t := range tracks {
			out = append(out, trackCandidate(t))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AlbumTracks fetches an album's tracks in album order by URI.
func (c *Client) AlbumTracks(ctx context.Context, uri string) ([]resolver.Candidate, error) {
	id := idFromURI(uri)
	var out []resolver.Candidate
	err := c.call(ctx, "get album tracks", func(api *spotify.Client) error {
		offset := 0
		for {
			page, err := api.GetAlbumTracks(ctx, spotify.ID(id), spotify.Offset(offset), spotify.Limit(50))
			if err != nil {
				return err
			}
			for _, t := range page.Tracks {
				out = append(out, simpleTrackCandidate(t))
			}
			if len(page.Tracks) < 50 {
				return nil
			}
			offset += 50
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SavedTracks fetches the user's entire saved-tracks library.
func (c *Client) SavedTracks(ctx context.Context) ([]resolver.Candidate, error) {
	var out []resolver.Candidate
	err := c.call(ctx, "get saved tracks", func(api *spotify.Client) error {
		page, err := api.CurrentUsersTracks(ctx, spotify.Limit(50))
		if err != nil {
			return err
		}
		for {
			for _, t := range page.Tracks {
				out = append(out, trackCandidate(t.FullTrack))
			}
			if err := api.NextPage(ctx, page); err != nil {
				if errors.Is(err, spotify.ErrNoMorePages) {
					return nil
				}
				return err
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Devices lists the visible Spotify Connect devices. Restricted devices
// cannot accept playback commands and are skipped.
func (c *Client) Devices(ctx context.Context) ([]resolver.Device, error) {
	var out []resolver.Device
	err := c.call(ctx, "get devices", func(api *spotify.Client) error {
		devices, err := api.PlayerDevices(ctx)
		if err != nil {
			return err
		}
		for _, d := range devices {
			if d.Restricted {
				continue
			}
			out = append(out, resolver.Device{
				ID:     string(d.ID),
				Name:   d.Name,
				Active: d.Active,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Play starts playback on a device. Exactly one of contextURI (an album,
// artist or playlist) or uris (individual tracks) should be set; with
// neither, playback resumes.
func (c *Client) Play(ctx context.Context, deviceID, contextURI string, uris []string) error {
	opts := &spotify.PlayOptions{}
	if deviceID != "" {
		id := spotify.ID(deviceID)
		opts.DeviceID = &id
	}
	if contextURI != "" {
		u := spotify.URI(contextURI)
		opts.PlaybackContext = &u
	}
	for _, u := range uris {
		opts.URIs = append(opts.URIs, spotify.URI(u))
	}
	return c.call(ctx, "start playback", func(api *spotify.Client) error {
		return api.PlayOpt(ctx, opts)
	})
}

// Pause pauses playback on a device.
func (c *Client) Pause(ctx context.Context, deviceID string) error {
	return c.call(ctx, "pause playback", func(api *spotify.Client) error {
		return api.PauseOpt(ctx, deviceOpts(deviceID))
	})
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context, deviceID string) error {
	return c.call(ctx, "next track", func(api *spotify.Client) error {
		return api.NextOpt(ctx, deviceOpts(deviceID))
	})
}

// Previous skips to the previous track.
func (c *Client) Previous(ctx context.Context, deviceID string) error {
	return c.call(ctx, "previous track", func(api *spotify.Client) error {
		return api.PreviousOpt(ctx, deviceOpts(deviceID))
	})
}

// SetVolume sets a device's volume in percent.
func (c *Client) SetVolume(ctx context.Context, deviceID string, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return c.call(ctx, "set volume", func(api *spotify.Client) error {
		return api.VolumeOpt(ctx, percent, deviceOpts(deviceID))
	})
}

// SetShuffle toggles shuffle on a device.
func (c *Client) SetShuffle(ctx context.Context, deviceID string, on bool) error {
	return c.call(ctx, "set shuffle", func(api *spotify.Client) error {
		return api.ShuffleOpt(ctx, on, deviceOpts(deviceID))
	})
}

// SetRepeat sets the repeat state on a device: "off", "track" or "context".
func (c *Client) SetRepeat(ctx context.Context, deviceID, state string) error {
	return c.call(ctx, "set repeat", func(api *spotify.Client) error {
		return api.RepeatOpt(ctx, state, deviceOpts(deviceID))
	})
}

// TransferPlayback moves playback to another device.
func (c *Client) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	return c.call(ctx, "transfer playback", func(api *spotify.Client) error {
		return api.TransferPlayback(ctx, spotify.ID(deviceID), play)
	})
}

// Status returns what is currently playing, if anything.
func (c *Client) Status(ctx context.Context) (resolver.NowPlaying, error) {
	var np resolver.NowPlaying
	err := c.call(ctx, "get playback status", func(api *spotify.Client) error {
		current, err := api.PlayerCurrentlyPlaying(ctx)
		if err != nil {
			return err
		}
		np.Playing = current.Playing
		if current.Item != nil {
			np.Track = current.Item.Name
			if len(current.Item.Artists) > 0 {
				np.Artist = current.Item.Artists[0].Name
			}
			np.Album = current.Item.Album.Name
		}
		return nil
	})
	if err != nil {
		return resolver.NowPlaying{}, err
	}
	return np, nil
}

func deviceOpts(deviceID string) *spotify.PlayOptions {
	opts := &spotify.PlayOptions{}
	if deviceID != "" {
		id := spotify.ID(deviceID)
		opts.DeviceID = &id
	}
	return opts
}

func searchType(kind resolver.QueryKind) spotify.SearchType {
	switch kind {
	case resolver.KindArtist:
		return spotify.SearchTypeArtist
	case resolver.KindAlbum:
		return spotify.SearchTypeAlbum
	case resolver.KindTrack:
		return spotify.SearchTypeTrack
	case resolver.KindShow:
		return spotify.SearchTypeShow
	default:
		return spotify.SearchTypePlaylist
	}
}

func searchCandidates(result *spotify.SearchResult, kind resolver.QueryKind) []resolver.Candidate {
	var out []resolver.Candidate
	switch kind {
	case resolver.KindArtist:
		if result.Artists != nil {
			for _, a := range result.Artists.Artists {
				out = append(out, artistCandidate(a))
			}
		}
	case resolver.KindAlbum:
		if result.Albums != nil {
			for _, a := range result.Albums.Albums {
				out = append(out, albumCandidate(a))
			}
		}
	case resolver.KindTrack:
		if result.Tracks != nil {
			for _, t := range result.Tracks.Tracks {
				out = append(out, trackCandidate(t))
			}
		}
	case resolver.KindShow:
		if result.Shows != nil {
			for _, s := range result.Shows.Shows {
				out = append(out, showCandidate(s))
			}
		}
	default:
		if result.Playlists != nil {
			for _, p := range result.Playlists.Playlists {
				out = append(out, playlistCandidate(p))
			}
		}
	}
	return out
}

func artistCandidate(a spotify.FullArtist) resolver.Candidate {
	return resolver.Candidate{
		Kind:       resolver.KindArtist,
		Name:       a.Name,
		URI:        string(a.URI),
		ArtworkURL: firstImage(a.Images),
		Popularity: int(a.Popularity),
	}
}

func albumCandidate(a spotify.SimpleAlbum) resolver.Candidate {
	return resolver.Candidate{
		Kind:       resolver.KindAlbum,
		Name:       a.Name,
		URI:        string(a.URI),
		ArtworkURL: firstImage(a.Images),
		Artists:    artistNames(a.Artists),
	}
}

func trackCandidate(t spotify.FullTrack) resolver.Candidate {
	return resolver.Candidate{
		Kind:       resolver.KindTrack,
		Name:       t.Name,
		URI:        string(t.URI),
		ArtworkURL: firstImage(t.Album.Images),
		Artists:    artistNames(t.Artists),
		DurationMs: int(t.Duration),
		Popularity: int(t.Popularity),
	}
}

func simpleTrackCandidate(t spotify.SimpleTrack) resolver.Candidate {
	return resolver.Candidate{
		Kind:       resolver.KindTrack,
		Name:       t.Name,
		URI:        string(t.URI),
		Artists:    artistNames(t.Artists),
		DurationMs: int(t.Duration),
	}
}

func playlistCandidate(p spotify.SimplePlaylist) resolver.Candidate {
	return resolver.Candidate{
		Kind:       resolver.KindPlaylist,
		Name:       p.Name,
		URI:        string(p.URI),
		ArtworkURL: firstImage(p.Images),
	}
}

func showCandidate(s spotify.FullShow) resolver.Candidate {
	c := resolver.Candidate{
		Kind:       resolver.KindShow,
		Name:       s.Name,
		URI:        string(s.URI),
		ArtworkURL: firstImage(s.Images),
	}
	if s.Publisher != "" {
		c.Artists = []string{s.Publisher}
	}
	return c
}

func artistNames(artists []spotify.SimpleArtist) []string {
	if len(artists) == 0 {
		return nil
	}
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return names
}

func firstImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

// idFromURI extracts the ID from a Spotify URI like "spotify:album:123".
// A bare ID passes through unchanged.
func idFromURI(uri string) string {
	if i := strings.LastIndex(uri, ":"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
