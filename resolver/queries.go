package resolver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forslund/spotify-skill/cache"
	"github.com/forslund/spotify-skill/fuzzy"
)

// querySavedTracks resolves the user's saved-tracks library. There is nothing
// to score, so a non-empty library is a full-confidence match.
func (r *Resolver) querySavedTracks(ctx context.Context) (ResolvedMatch, error) {
	tracks, err := r.savedTracks(ctx)
	if err != nil {
		return NothingFound, err
	}
	if len(tracks) == 0 {
		return NothingFound, nil
	}
	return ResolvedMatch{
		Kind:       KindSavedTracks,
		Confidence: 100,
		Name:       "Saved songs",
		Candidates: tracks,
	}, nil
}

// queryPlaylist resolves an explicitly named playlist: the user's own
// library first, the public catalog as fallback.
func (r *Resolver) queryPlaylist(ctx context.Context, name string) (ResolvedMatch, error) {
	m, err := r.queryUserPlaylist(ctx, name)
	if err != nil {
		r.log.Warn("user playlist lookup failed", zap.Error(err))
	} else if m.Found() && m.Confidence > pct(matchConfidence) {
		return m, nil
	}
	return r.queryPublicPlaylist(ctx, name)
}

// queryUserPlaylist matches the phrase against the names of the user's own
// playlists. Matches at or below playlistConfidence are discarded.
func (r *Resolver) queryUserPlaylist(ctx context.Context, phrase string) (ResolvedMatch, error) {
	playlists, err := r.userPlaylists(ctx)
	if err != nil {
		return NothingFound, err
	}
	byName := make(map[string]Candidate, len(playlists))
	names := make([]string, 0, len(playlists))
	for _, p := range playlists {
		key := strings.ToLower(p.Name)
		if _, seen := byName[key]; !seen {
			byName[key] = p
			names = append(names, key)
		}
	}

	best, score, ok := fuzzy.RankOne(phrase, names)
	if !ok || score <= playlistConfidence {
		return NothingFound, nil
	}
	p := byName[best]
	return ResolvedMatch{
		Kind:       KindPlaylist,
		Confidence: pct(score),
		URI:        p.URI,
		Name:       p.Name,
	}, nil
}

// queryPublicPlaylist searches the public catalog for a playlist and scores
// the first hit's name against the phrase.
func (r *Resolver) queryPublicPlaylist(ctx context.Context, phrase string) (ResolvedMatch, error) {
	results, err := r.backend.Search(ctx, phrase, KindPlaylist)
	if err != nil {
		return NothingFound, err
	}
	if len(results) == 0 {
		return NothingFound, nil
	}
	p := results[0]
	score := fuzzy.Ratio(p.Name, phrase)
	if score <= playlistConfidence {
		return NothingFound, nil
	}
	return ResolvedMatch{
		Kind:       KindPlaylist,
		Confidence: pct(score),
		URI:        p.URI,
		Name:       p.Name,
	}, nil
}

// queryArtist scores the top artist hit against the phrase. Artist names are
// short and distinctive, so a kind bonus keeps a good artist match ahead of
// incidental track-title overlap. Artist search is the first remote call of
// most generic queries, so transient failures are retried a few times before
// giving up.
func (r *Resolver) queryArtist(ctx context.Context, phrase string) (ResolvedMatch, error) {
	results, err := r.searchArtist(ctx, phrase)
	if err != nil {
		return NothingFound, err
	}
	if len(results) == 0 {
		return NothingFound, nil
	}
	a := results[0]
	conf := clamp01(fuzzy.Ratio(a.Name, phrase) + kindBonus)
	return ResolvedMatch{
		Kind:       KindArtist,
		Confidence: pct(conf),
		URI:        a.URI,
		Name:       a.Name,
	}, nil
}

func (r *Resolver) searchArtist(ctx context.Context, phrase string) ([]Candidate, error) {
	var lastErr error
	for attempt := 1; attempt <= artistSearchAttempts; attempt++ {
		results, err := r.backend.Search(ctx, phrase, KindArtist)
		if err == nil {
			return results, nil
		}
		if !errors.Is(err, ErrTransient) {
			return nil, err
		}
		lastErr = err
		if attempt < artistSearchAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("artist search failed after %d attempts: %w", artistSearchAttempts, lastErr)
}

// queryAlbum scores the top album hit. A phrase of the form "<album> by
// <artist>" becomes a scoped catalog search and earns a kind bonus, and only
// the album part is scored against the hit's title.
func (r *Resolver) queryAlbum(ctx context.Context, phrase string) (ResolvedMatch, error) {
	term, title, bonus := scopedSearch(phrase)
	results, err := r.backend.Search(ctx, term, KindAlbum)
	if err != nil {
		return NothingFound, err
	}
	if len(results) == 0 {
		return NothingFound, nil
	}
	a := results[0]
	conf := clamp01(fuzzy.TitleScore(a.Name, title) + bonus)
	return ResolvedMatch{
		Kind:       KindAlbum,
		Confidence: pct(conf),
		URI:        a.URI,
		Name:       a.Name,
	}, nil
}

// querySong picks the best track for the phrase. All hits are scored on
// title similarity; hits within trackTieBand of the best score count as ties
// and the most popular recording among them wins, which prefers the original
// release over covers and karaoke versions of the same title. Similarity
// between the full phrase and the winner's primary artist is added as a
// bonus so "<track> by <artist>" phrasings rank the right recording.
func (r *Resolver) querySong(ctx context.Context, phrase string) (ResolvedMatch, error) {
	term, title, bonus := scopedSearch(phrase)
	results, err := r.backend.Search(ctx, term, KindTrack)
	if err != nil {
		return NothingFound, err
	}
	if len(results) == 0 {
		return NothingFound, nil
	}

	type scored struct {
		score float64
		track Candidate
	}
	ranked := make([]scored, len(results))
	for i, t := range results {
		ranked[i] = scored{fuzzy.TitleScore(t.Name, title), t}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	winner := ranked[0]
	for _, s := range ranked[1:] {
		if s.score <= ranked[0].score-trackTieBand {
			break
		}
		if s.track.Popularity > winner.track.Popularity {
			winner = s
		}
	}

	conf := clamp01(winner.score + bonus + fuzzy.Ratio(phrase, winner.track.PrimaryArtist()))
	return ResolvedMatch{
		Kind:       KindTrack,
		Confidence: pct(conf),
		URI:        winner.track.URI,
		Name:       winner.track.Name,
		Candidates: []Candidate{winner.track},
	}, nil
}

// queryShow scores the top podcast hit against the phrase. No bonus: show
// queries only run when the phrase or the hint asked for a podcast.
func (r *Resolver) queryShow(ctx context.Context, phrase string) (ResolvedMatch, error) {
	results, err := r.backend.Search(ctx, phrase, KindShow)
	if err != nil {
		return NothingFound, err
	}
	if len(results) == 0 {
		return NothingFound, nil
	}
	s := results[0]
	return ResolvedMatch{
		Kind:       KindShow,
		Confidence: pct(fuzzy.Ratio(s.Name, phrase)),
		URI:        s.URI,
		Name:       s.Name,
	}, nil
}

// scopedSearch rewrites "<title> by <artist>" into a catalog search scoped
// to the artist. The split happens at the first " by ", so a title that
// itself contains "by" splits early and falls back to whole-phrase scoring
// through the artist bonus.
func scopedSearch(phrase string) (term, title string, bonus float64) {
	lower := strings.ToLower(phrase)
	i := strings.Index(lower, " by ")
	if i <= 0 {
		return phrase, phrase, 0
	}
	title = strings.TrimSpace(phrase[:i])
	artist := strings.TrimSpace(phrase[i+len(" by "):])
	if title == "" || artist == "" {
		return phrase, phrase, 0
	}
	return fmt.Sprintf("*%s* artist:%s", title, artist), title, kindBonus
}

// Cached collection fetchers.

func (r *Resolver) userPlaylists(ctx context.Context) ([]Candidate, error) {
	return cache.Fetch(r.store, cache.KeyPlaylists, r.playlistTTL, func() ([]Candidate, error) {
		return r.backend.CurrentUserPlaylists(ctx)
	})
}

func (r *Resolver) savedTracks(ctx context.Context) ([]Candidate, error) {
	return cache.Fetch(r.store, cache.KeySavedTracks, r.savedTracksTTL, func() ([]Candidate, error) {
		return r.backend.SavedTracks(ctx)
	})
}

// pct converts an internal unit-scale score to the public integer
// percentage, clamped to [0,100].
func pct(score float64) int {
	return int(math.Round(clamp01(score) * 100))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
