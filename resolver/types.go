package resolver

// QueryKind classifies what a spoken phrase resolved to.
type QueryKind int

const (
	KindNone QueryKind = iota
	KindSavedTracks
	KindPlaylist
	KindAlbum
	KindArtist
	KindTrack
	KindShow
	KindContinue
)

func (k QueryKind) String() string {
	switch k {
	case KindSavedTracks:
		return "saved_tracks"
	case KindPlaylist:
		return "playlist"
	case KindAlbum:
		return "album"
	case KindArtist:
		return "artist"
	case KindTrack:
		return "track"
	case KindShow:
		return "show"
	case KindContinue:
		return "continue"
	default:
		return "none"
	}
}

// MediaHint is the host's media-type hint passed alongside the phrase.
type MediaHint int

const (
	HintGeneric MediaHint = iota
	HintMusic
	HintPodcast
)

// Candidate is one backend search result: an artist, album, track, playlist
// or show. Fields that do not apply to a given kind are zero.
type Candidate struct {
	Kind       QueryKind
	Name       string
	URI        string
	ArtworkURL string
	Artists    []string // primary artist first
	DurationMs int
	Popularity int
}

// PrimaryArtist returns the first listed artist, or "" when none is known.
func (c Candidate) PrimaryArtist() string {
	if len(c.Artists) == 0 {
		return ""
	}
	return c.Artists[0]
}

// Device is one Spotify Connect playback target. Devices are transient and
// never persisted; the resolver refreshes them on a short TTL.
type Device struct {
	ID     string
	Name   string
	Active bool
}

// NowPlaying describes the current playback state.
type NowPlaying struct {
	Playing bool
	Track   string
	Artist  string
	Album   string
}

// ResolvedMatch is the resolver's output: what the phrase referred to and how
// confident the match is. Confidence is always an integer percentage in
// [0,100]; internal unit-scale scores are converted at this boundary.
//
// Candidates carries the playable collection for aggregate kinds (a
// playlist's tracks, the saved-tracks list). For SavedTracks the URI is empty
// because the saved-tracks pseudo-playlist has no addressable URI.
type ResolvedMatch struct {
	Kind       QueryKind
	Confidence int
	URI        string
	Name       string
	Candidates []Candidate
}

// NothingFound is the canonical empty result: confidence 0, no URI, no
// candidates. It is returned, never an error, whenever the backend has no
// result or no score clears a threshold.
var NothingFound = ResolvedMatch{}

// Found reports whether the match carries a usable result.
func (m ResolvedMatch) Found() bool {
	return m.Kind != KindNone && m.Confidence > 0
}
