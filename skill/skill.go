// Package skill is the voice-assistant-facing layer. It combines the
// resolver's query results with playback control: answering "can you play
// this" probes with match levels and playable entries, starting playback on
// the right device, and picking the dialog to speak when something fails.
package skill

import (
	"context"

	"go.uber.org/zap"

	"github.com/forslund/spotify-skill/resolver"
)

// maxPlaylistEntries bounds the track list attached to an entry. Hosts show
// these in a picker; a full saved-tracks library would drown it.
const maxPlaylistEntries = 25

// Match levels the host compares across competing skills.
const (
	levelExplicit = 100
	levelResume   = 70
)

// Player is the playback half of the Spotify gateway.
type Player interface {
	Play(ctx context.Context, deviceID, contextURI string, uris []string) error
	Pause(ctx context.Context, deviceID string) error
	Next(ctx context.Context, deviceID string) error
	Previous(ctx context.Context, deviceID string) error
	SetVolume(ctx context.Context, deviceID string, percent int) error
	SetShuffle(ctx context.Context, deviceID string, on bool) error
	SetRepeat(ctx context.Context, deviceID, state string) error
	TransferPlayback(ctx context.Context, deviceID string, play bool) error
	Status(ctx context.Context) (resolver.NowPlaying, error)
}

// Service is everything the facade needs from the gateway.
type Service interface {
	resolver.Backend
	Player
}

// TrackInfo is one row of an entry's track list.
type TrackInfo struct {
	Title      string
	Artist     string
	URI        string
	DurationMs int
	Image      string
}

// Entry is the playable-media record handed back to the host for a query.
type Entry struct {
	MatchConfidence int
	URI             string
	MediaType       string // "music" or "podcast"
	PlaybackType    string
	Title           string
	Artist          string
	Image           string
	Playlist        []TrackInfo
}

// Result is a query answer: the resolved match, the match level after
// overrides, and the entry to hand to the host.
type Result struct {
	Match resolver.ResolvedMatch
	Level int
	Entry Entry
}

// Facade answers media queries and drives playback.
type Facade struct {
	resolver *resolver.Resolver
	svc      Service
	log      *zap.Logger
}

// New returns a Facade resolving with res and playing through svc.
func New(res *resolver.Resolver, svc Service, log *zap.Logger) *Facade {
	if log == nil {
		log = zap.NewNop()
	}
	return &Facade{resolver: res, svc: svc, log: log}
}

// Search answers a "can you play this" probe. ok is false when nothing
// matched. A phrase that names this backend outright always answers at the
// explicit level: the user asked for Spotify, so no other skill should
// outbid it. A bare resume request without the backend name answers at a
// lower level so a more specific skill can win.
func (f *Facade) Search(ctx context.Context, phrase string, hint resolver.MediaHint) (Result, bool) {
	_, specified := resolver.StripMarker(phrase)

	m := f.resolver.Resolve(ctx, phrase, hint)
	if !m.Found() {
		return Result{}, false
	}

	level := m.Confidence
	switch {
	case specified:
		level = levelExplicit
	case m.Kind == resolver.KindContinue:
		level = levelResume
	}

	return Result{
		Match: m,
		Level: level,
		Entry: f.buildEntry(ctx, m),
	}, true
}

// buildEntry fills the playable-media record for a match, including up to
// maxPlaylistEntries tracks for aggregate kinds. Track list failures are
// not fatal: the entry still identifies what to play.
func (f *Facade) buildEntry(ctx context.Context, m resolver.ResolvedMatch) Entry {
	entry := Entry{
		MatchConfidence: m.Confidence,
		URI:             m.URI,
		MediaType:       "music",
		PlaybackType:    "audio",
		Title:           m.Name,
	}
	if m.Kind == resolver.KindShow {
		entry.MediaType = "podcast"
	}

	tracks := m.Candidates
	var err error
	switch m.Kind {
	case resolver.KindPlaylist:
		tracks, err = f.svc.PlaylistTracks(ctx, m.URI)
	case resolver.KindArtist:
		tracks, err = f.svc.ArtistTopTracks(ctx, m.URI)
	case resolver.KindAlbum:
		tracks, err = f.svc.AlbumTracks(ctx, m.URI)
	}
	if err != nil {
		f.log.Warn("failed to fetch entry tracks",
			zap.String("kind", m.Kind.String()),
			zap.String("uri", m.URI),
			zap.Error(err))
		tracks = nil
	}

	if len(tracks) > maxPlaylistEntries {
		tracks = tracks[:maxPlaylistEntries]
	}
	for _, t := range tracks {
		entry.Playlist = append(entry.Playlist, TrackInfo{
			Title:      t.Name,
			Artist:     t.PrimaryArtist(),
			URI:        t.URI,
			DurationMs: t.DurationMs,
			Image:      t.ArtworkURL,
		})
		if entry.Image == "" {
			entry.Image = t.ArtworkURL
		}
	}
	if entry.Artist == "" && len(tracks) > 0 {
		entry.Artist = tracks[0].PrimaryArtist()
	}
	return entry
}
