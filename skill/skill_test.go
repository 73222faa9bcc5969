package skill

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/forslund/spotify-skill/cache"
	"github.com/forslund/spotify-skill/resolver"
)

type playCall struct {
	deviceID   string
	contextURI string
	uris       []string
}

// fakeService implements Service with canned catalog data and records
// playback calls.
type fakeService struct {
	searchResults  map[resolver.QueryKind][]resolver.Candidate
	playlists      []resolver.Candidate
	saved          []resolver.Candidate
	playlistTracks []resolver.Candidate
	topTracks      []resolver.Candidate
	albumTracks    []resolver.Candidate
	devices        []resolver.Device
	status         resolver.NowPlaying
	statusErr      error

	plays     []playCall
	transfers []string
	pauses    int
	volume    int
}

func (s *fakeService) Search(ctx context.Context, term string, kind resolver.QueryKind) ([]resolver.Candidate, error) {
	return s.searchResults[kind], nil
}

func (s *fakeService) CurrentUserPlaylists(ctx context.Context) ([]resolver.Candidate, error) {
	return s.playlists, nil
}

func (s *fakeService) PlaylistTracks(ctx context.Context, uri string) ([]resolver.Candidate, error) {
	return s.playlistTracks, nil
}

func (s *fakeService) ArtistTopTracks(ctx context.Context, uri string) ([]resolver.Candidate, error) {
	return s.topTracks, nil
}

func (s *fakeService) AlbumTracks(ctx context.Context, uri string) ([]resolver.Candidate, error) {
	return s.albumTracks, nil
}

func (s *fakeService) SavedTracks(ctx context.Context) ([]resolver.Candidate, error) {
	return s.saved, nil
}

func (s *fakeService) Devices(ctx context.Context) ([]resolver.Device, error) {
	return s.devices, nil
}

func (s *fakeService) Play(ctx context.Context, deviceID, contextURI string, uris []string) error {
	s.plays = append(s.plays, playCall{deviceID, contextURI, uris})
	return nil
}

func (s *fakeService) Pause(ctx context.Context, deviceID string) error {
	s.pauses++
	return nil
}

func (s *fakeService) Next(ctx context.Context, deviceID string) error     { return nil }
func (s *fakeService) Previous(ctx context.Context, deviceID string) error { return nil }

func (s *fakeService) SetVolume(ctx context.Context, deviceID string, percent int) error {
	s.volume = percent
	return nil
}

func (s *fakeService) SetShuffle(ctx context.Context, deviceID string, on bool) error { return nil }
func (s *fakeService) SetRepeat(ctx context.Context, deviceID, state string) error    { return nil }

func (s *fakeService) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	s.transfers = append(s.transfers, deviceID)
	return nil
}

func (s *fakeService) Status(ctx context.Context) (resolver.NowPlaying, error) {
	return s.status, s.statusErr
}

func newTestFacade(svc *fakeService) *Facade {
	res := resolver.New(svc, cache.New(), zap.NewNop(), resolver.Options{})
	return New(res, svc, zap.NewNop())
}

func TestSearchExplicitBackendName(t *testing.T) {
	svc := &fakeService{
		searchResults: map[resolver.QueryKind][]resolver.Candidate{
			resolver.KindPlaylist: {{Kind: resolver.KindPlaylist, Name: "Heavy Metal", URI: "spotify:playlist:hm"}},
		},
		playlistTracks: []resolver.Candidate{
			{Kind: resolver.KindTrack, Name: "Ace of Spades", URI: "spotify:track:1", Artists: []string{"Motörhead"}, ArtworkURL: "http://img/1"},
		},
	}
	f := newTestFacade(svc)

	result, ok := f.Search(context.Background(), "heavy metal on spotify", resolver.HintGeneric)
	if !ok {
		t.Fatal("Expected a match")
	}
	if result.Level != 100 {
		t.Errorf("Expected explicit level 100, got %d", result.Level)
	}
	if result.Entry.Title != "Heavy Metal" {
		t.Errorf("Unexpected entry title %q", result.Entry.Title)
	}
	if len(result.Entry.Playlist) != 1 {
		t.Fatalf("Expected playlist tracks on the entry, got %d", len(result.Entry.Playlist))
	}
	if result.Entry.Playlist[0].Artist != "Motörhead" {
		t.Errorf("Unexpected track artist %q", result.Entry.Playlist[0].Artist)
	}
	if result.Entry.Image != "http://img/1" {
		t.Errorf("Expected entry image from first track, got %q", result.Entry.Image)
	}
}

func TestSearchResumeWithoutBackendName(t *testing.T) {
	f := newTestFacade(&fakeService{})

	result, ok := f.Search(context.Background(), "", resolver.HintGeneric)
	if !ok {
		t.Fatal("Expected a resume match")
	}
	if result.Match.Kind != resolver.KindContinue {
		t.Fatalf("Expected continue kind, got %v", result.Match.Kind)
	}
	if result.Level != levelResume {
		t.Errorf("Expected resume level %d, got %d", levelResume, result.Level)
	}
}

func TestSearchResumeWithBackendName(t *testing.T) {
	f := newTestFacade(&fakeService{})

	result, ok := f.Search(context.Background(), "spotify", resolver.HintGeneric)
	if !ok {
		t.Fatal("Expected a resume match")
	}
	if result.Level != levelExplicit {
		t.Errorf("Expected explicit level %d, got %d", levelExplicit, result.Level)
	}
}

func TestSearchNoMatch(t *testing.T) {
	f := newTestFacade(&fakeService{})

	if _, ok := f.Search(context.Background(), "qwertyuiop", resolver.HintGeneric); ok {
		t.Error("Expected no match")
	}
}

func TestEntryPlaylistTruncated(t *testing.T) {
	tracks := make([]resolver.Candidate, 40)
	for i := range tracks {
		tracks[i] = resolver.Candidate{
			Kind: resolver.KindTrack,
			Name: fmt.Sprintf("Track %d", i),
			URI:  fmt.Sprintf("spotify:track:%d", i),
		}
	}
	f := newTestFacade(&fakeService{playlistTracks: tracks})

	entry := f.buildEntry(context.Background(), resolver.ResolvedMatch{
		Kind:       resolver.KindPlaylist,
		Confidence: 90,
		URI:        "spotify:playlist:big",
		Name:       "Big Playlist",
	})
	if len(entry.Playlist) != maxPlaylistEntries {
		t.Errorf("Expected %d tracks, got %d", maxPlaylistEntries, len(entry.Playlist))
	}
}

func TestEntryPodcastMediaType(t *testing.T) {
	f := newTestFacade(&fakeService{})

	entry := f.buildEntry(context.Background(), resolver.ResolvedMatch{
		Kind:       resolver.KindShow,
		Confidence: 100,
		URI:        "spotify:show:hb",
		Name:       "Hidden Brain",
	})
	if entry.MediaType != "podcast" {
		t.Errorf("Expected podcast media type, got %q", entry.MediaType)
	}
}

func TestPlayMatchTrackUsesURIList(t *testing.T) {
	svc := &fakeService{
		devices: []resolver.Device{{ID: "d1", Name: "Kitchen"}},
	}
	f := newTestFacade(svc)

	err := f.PlayMatch(context.Background(), resolver.ResolvedMatch{
		Kind:       resolver.KindTrack,
		Confidence: 95,
		URI:        "spotify:track:1",
		Candidates: []resolver.Candidate{{URI: "spotify:track:1"}},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(svc.plays) != 1 {
		t.Fatalf("Expected one play call, got %d", len(svc.plays))
	}
	call := svc.plays[0]
	if call.contextURI != "" || len(call.uris) != 1 || call.uris[0] != "spotify:track:1" {
		t.Errorf("Unexpected play call %+v", call)
	}
	if len(svc.transfers) != 1 || svc.transfers[0] != "d1" {
		t.Errorf("Expected transfer to the inactive device, got %v", svc.transfers)
	}
}

func TestPlayMatchSavedTracksCapped(t *testing.T) {
	svc := &fakeService{
		devices: []resolver.Device{{ID: "d1", Name: "Kitchen", Active: true}},
	}
	f := newTestFacade(svc)

	saved := make([]resolver.Candidate, 120)
	for i := range saved {
		saved[i] = resolver.Candidate{
			Kind: resolver.KindTrack,
			URI:  fmt.Sprintf("spotify:track:%d", i),
		}
	}
	err := f.PlayMatch(context.Background(), resolver.ResolvedMatch{
		Kind:       resolver.KindSavedTracks,
		Confidence: 100,
		Candidates: saved,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(svc.plays) != 1 {
		t.Fatalf("Expected one play call, got %d", len(svc.plays))
	}
	call := svc.plays[0]
	if call.contextURI != "" {
		t.Errorf("Expected no context URI, got %q", call.contextURI)
	}
	if len(call.uris) != maxPlayURIs {
		t.Errorf("Expected %d uris, got %d", maxPlayURIs, len(call.uris))
	}
	if call.uris[0] != "spotify:track:0" {
		t.Errorf("Expected the list to start at the first saved track, got %q", call.uris[0])
	}
}

func TestPlayMatchAlbumUsesContext(t *testing.T) {
	svc := &fakeService{
		devices: []resolver.Device{{ID: "d1", Name: "Kitchen", Active: true}},
	}
	f := newTestFacade(svc)

	err := f.PlayMatch(context.Background(), resolver.ResolvedMatch{
		Kind:       resolver.KindAlbum,
		Confidence: 95,
		URI:        "spotify:album:1",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	call := svc.plays[0]
	if call.contextURI != "spotify:album:1" || len(call.uris) != 0 {
		t.Errorf("Unexpected play call %+v", call)
	}
	if len(svc.transfers) != 0 {
		t.Errorf("Expected no transfer for an active device, got %v", svc.transfers)
	}
}

func TestPlayMatchNoDevices(t *testing.T) {
	f := newTestFacade(&fakeService{})

	err := f.PlayMatch(context.Background(), resolver.ResolvedMatch{
		Kind: resolver.KindAlbum,
		URI:  "spotify:album:1",
	})
	if !errors.Is(err, resolver.ErrNoDevices) {
		t.Fatalf("Expected ErrNoDevices, got %v", err)
	}
}

func TestPlayOnNamedDevice(t *testing.T) {
	svc := &fakeService{
		devices: []resolver.Device{
			{ID: "d1", Name: "Kitchen", Active: true},
			{ID: "d2", Name: "Office"},
		},
	}
	f := newTestFacade(svc)

	err := f.PlayOn(context.Background(), resolver.ResolvedMatch{
		Kind: resolver.KindAlbum,
		URI:  "spotify:album:1",
	}, "office")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if svc.plays[0].deviceID != "d2" {
		t.Errorf("Expected playback on the named device, got %+v", svc.plays[0])
	}
}

func TestSongInfoUnknownFallback(t *testing.T) {
	f := newTestFacade(&fakeService{})

	track, artist, err := f.SongInfo(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if track != "unknown" || artist != "unknown" {
		t.Errorf("Expected unknown fallbacks, got %q / %q", track, artist)
	}
}

func TestSongInfo(t *testing.T) {
	f := newTestFacade(&fakeService{status: resolver.NowPlaying{
		Playing: true,
		Track:   "Ace of Spades",
		Artist:  "Motörhead",
		Album:   "Ace of Spades",
	}})

	track, artist, err := f.SongInfo(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if track != "Ace of Spades" || artist != "Motörhead" {
		t.Errorf("Unexpected song info %q / %q", track, artist)
	}
}

func TestDialogKey(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{resolver.ErrNotAuthorized, "NotAuthorized"},
		{fmt.Errorf("wrapped: %w", resolver.ErrNoDevices), "NoDevicesAvailable"},
		{resolver.ErrPlaylistNotFound, "PlaylistNotFound"},
		{resolver.ErrTransient, "TryAgain"},
		{errors.New("anything else"), "PlaybackFailed"},
	}
	for _, c := range cases {
		if got := DialogKey(c.err); got != c.want {
			t.Errorf("DialogKey(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
