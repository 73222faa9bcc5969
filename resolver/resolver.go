// Package resolver turns a spoken phrase into a concrete Spotify playback
// target with a confidence score. It owns the intent grammar, the per-kind
// query algorithms, the confidence thresholds and the device selection
// chain; all catalog access goes through the Backend interface.
package resolver

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forslund/spotify-skill/cache"
)

// Confidence thresholds and bonuses on the internal [0,1] scale.
const (
	// directConfidence short-circuits the generic query chain: a score above
	// it is returned immediately without trying the remaining kinds.
	directConfidence = 0.8

	// matchConfidence is the floor for the generic chain's best-of fallback.
	matchConfidence = 0.5

	// playlistConfidence gates playlist name matches, which are noisier than
	// track or artist matches.
	playlistConfidence = 0.7

	// deviceConfidence gates fuzzy device-name lookups.
	deviceConfidence = 0.5

	// kindBonus rewards queries that carry extra structure: an artist-kind
	// match, or a phrase that split cleanly on " by ".
	kindBonus = 0.1

	// trackTieBand groups near-equal track scores so popularity can break
	// the tie among them.
	trackTieBand = 0.1
)

const (
	artistSearchAttempts = 5
	artistRetryDelay     = 50 * time.Millisecond
)

var (
	// markerPattern strips the backend-name marker from a phrase. "play bad
	// magic on spotify" and "play bad magic" must resolve identically.
	markerPattern = regexp.MustCompile(`(?i)\b(?:(?:on|in|using|with)\s+)?spotify\b`)
	spacePattern  = regexp.MustCompile(`\s+`)

	savedPattern    = regexp.MustCompile(`(?i)^(?:my\s+)?(?:saved|liked|favou?rite)\s+(?:songs|tracks|music)$`)
	playlistPattern = regexp.MustCompile(`(?i)^(?:my\s+)?(?:the\s+)?playlist\s+(.+)$`)
	albumPattern    = regexp.MustCompile(`(?i)^(?:the\s+)?album\s+(.+)$`)
	artistPattern   = regexp.MustCompile(`(?i)^(?:songs?\s+by|music\s+by|(?:the\s+)?artist)\s+(.+)$`)
	trackPattern    = regexp.MustCompile(`(?i)^(?:the\s+)?(?:song|track)\s+(.+)$`)
	showPattern     = regexp.MustCompile(`(?i)^(?:the\s+)?(?:podcast|show)\s+(.+)$`)
)

// Options configures a Resolver. Zero values fall back to the package
// defaults, so tests can construct a Resolver from an empty Options.
type Options struct {
	// DefaultDeviceName is the user-configured preferred playback device,
	// matched fuzzily against the available device names.
	DefaultDeviceName string

	// HostDeviceName is the name of the device this process runs next to,
	// matched exactly (case-insensitively).
	HostDeviceName string

	PlaylistTTL    time.Duration
	SavedTracksTTL time.Duration
	DeviceTTL      time.Duration
}

// Resolver resolves phrases against a Backend. Safe for concurrent use.
type Resolver struct {
	backend Backend
	store   *cache.Store
	log     *zap.Logger

	defaultDeviceName string
	hostDeviceName    string
	playlistTTL       time.Duration
	savedTracksTTL    time.Duration
	deviceTTL         time.Duration

	retryDelay time.Duration
}

// New returns a Resolver querying backend, memoizing expensive collections
// in store.
func New(backend Backend, store *cache.Store, log *zap.Logger, opts Options) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{
		backend:           backend,
		store:             store,
		log:               log,
		defaultDeviceName: opts.DefaultDeviceName,
		hostDeviceName:    opts.HostDeviceName,
		playlistTTL:       opts.PlaylistTTL,
		savedTracksTTL:    opts.SavedTracksTTL,
		deviceTTL:         opts.DeviceTTL,
		retryDelay:        artistRetryDelay,
	}
	if r.playlistTTL == 0 {
		r.playlistTTL = cache.PlaylistTTL
	}
	if r.savedTracksTTL == 0 {
		r.savedTracksTTL = cache.SavedTracksTTL
	}
	if r.deviceTTL == 0 {
		r.deviceTTL = cache.DeviceTTL
	}
	return r
}

// StripMarker removes the backend-name marker from a phrase and reports
// whether the marker was present. The cleaned phrase has normalized spacing.
func StripMarker(phrase string) (clean string, specified bool) {
	specified = markerPattern.MatchString(phrase)
	clean = markerPattern.ReplaceAllString(phrase, " ")
	clean = strings.TrimSpace(spacePattern.ReplaceAllString(clean, " "))
	return clean, specified
}

// Resolve maps a phrase to the best playback target. It never returns an
// error: backend failures during individual sub-queries are logged and the
// remaining kinds are still tried, and a phrase nothing matches yields
// NothingFound.
func (r *Resolver) Resolve(ctx context.Context, phrase string, hint MediaHint) ResolvedMatch {
	clean, _ := StripMarker(phrase)
	if clean == "" {
		// Bare "play spotify": resume whatever was playing.
		return ResolvedMatch{Kind: KindContinue, Confidence: 100}
	}

	if m, ok := r.resolveSpecific(ctx, clean); ok {
		return m
	}

	if hint == HintPodcast {
		if m := r.settle(r.queryShow(ctx, clean))("show"); m.Found() {
			return m
		}
	}

	return r.resolveGeneric(ctx, clean)
}

// resolveSpecific handles phrases that name their media kind outright, like
// "the album bad magic" or "playlist discover weekly". A recognized kind is
// authoritative: its result is returned even at low confidence, because
// falling through to the generic chain would second-guess an explicit
// request.
func (r *Resolver) resolveSpecific(ctx context.Context, phrase string) (ResolvedMatch, bool) {
	if savedPattern.MatchString(phrase) {
		return r.settle(r.querySavedTracks(ctx))("saved tracks"), true
	}
	if m := playlistPattern.FindStringSubmatch(phrase); m != nil {
		return r.settle(r.queryPlaylist(ctx, m[1]))("playlist"), true
	}
	if m := albumPattern.FindStringSubmatch(phrase); m != nil {
		return r.settle(r.queryAlbum(ctx, m[1]))("album"), true
	}
	if m := artistPattern.FindStringSubmatch(phrase); m != nil {
		return r.settle(r.queryArtist(ctx, m[1]))("artist"), true
	}
	if m := trackPattern.FindStringSubmatch(phrase); m != nil {
		return r.settle(r.querySong(ctx, m[1]))("song"), true
	}
	if m := showPattern.FindStringSubmatch(phrase); m != nil {
		return r.settle(r.queryShow(ctx, m[1]))("show"), true
	}
	return NothingFound, false
}

// resolveGeneric tries every kind in a fixed order. A score clearing
// directConfidence wins immediately; otherwise the best score wins if it
// clears matchConfidence.
func (r *Resolver) resolveGeneric(ctx context.Context, phrase string) ResolvedMatch {
	steps := []struct {
		name string
		run  func() (ResolvedMatch, error)
	}{
		{"user playlist", func() (ResolvedMatch, error) { return r.queryUserPlaylist(ctx, phrase) }},
		{"artist", func() (ResolvedMatch, error) { return r.queryArtist(ctx, phrase) }},
		{"song", func() (ResolvedMatch, error) { return r.querySong(ctx, phrase) }},
		{"album", func() (ResolvedMatch, error) { return r.queryAlbum(ctx, phrase) }},
		{"public playlist", func() (ResolvedMatch, error) { return r.queryPublicPlaylist(ctx, phrase) }},
	}

	best := NothingFound
	for _, step := range steps {
		m := r.settle(step.run())(step.name)
		if !m.Found() {
			continue
		}
		if m.Confidence > pct(directConfidence) {
			r.log.Debug("direct match",
				zap.String("query", step.name),
				zap.String("name", m.Name),
				zap.Int("confidence", m.Confidence))
			return m
		}
		if m.Confidence > best.Confidence {
			best = m
		}
	}

	if best.Confidence > pct(matchConfidence) {
		return best
	}
	return NothingFound
}

// settle folds a sub-query's error into the no-result case so the chain
// keeps going when one kind's backend call fails.
func (r *Resolver) settle(m ResolvedMatch, err error) func(what string) ResolvedMatch {
	return func(what string) ResolvedMatch {
		if err != nil {
			r.log.Warn("query failed", zap.String("query", what), zap.Error(err))
			return NothingFound
		}
		return m
	}
}
