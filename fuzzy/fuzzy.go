// Package fuzzy provides the string-similarity primitives used to score
// Spotify search results against a spoken phrase.
//
// All scores are on a [0,1] scale and all functions are pure: identical
// inputs always produce identical outputs, so callers may cache or compare
// results freely.
package fuzzy

import (
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// qualifierPattern matches a trailing parenthesized group or a trailing
// " - ..." suffix. Streaming catalogs append edition qualifiers like
// "(Deluxe Version/Remastered 2009)" or "- Radio Edit" which should not
// penalize an otherwise exact title match.
var qualifierPattern = regexp.MustCompile(`(\(.+\)|-.+)$`)

// Ratio returns a case-insensitive similarity between a and b in [0,1].
// It takes the better of Jaro-Winkler similarity and a normalized
// Levenshtein ratio, so both transposition-heavy voice mistranscriptions
// and small edit differences score well.
func Ratio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	score := matchr.JaroWinkler(a, b, false)
	if lev := levenshteinRatio(a, b); lev > score {
		score = lev
	}
	return clampUnit(score)
}

// TitleScore scores a catalog title against the user's query. The title is
// tested both raw and with its trailing qualifier stripped, and the better
// score wins, so "Hello Nasty (Deluxe Version/Remastered 2009)" still
// matches "hello nasty" at full strength.
func TitleScore(title, query string) float64 {
	best := Ratio(title, query)
	stripped := StripQualifier(title)
	if stripped != title {
		if s := Ratio(stripped, query); s > best {
			best = s
		}
	}
	return best
}

// StripQualifier removes a trailing parenthesized group or " - ..." suffix
// from a title. The input is returned unchanged when no qualifier is found.
func StripQualifier(title string) string {
	return strings.TrimSpace(qualifierPattern.ReplaceAllString(title, ""))
}

// RankOne picks the single best-scoring choice for a query. Each choice is
// scored with a token-set-aware strategy so word reordering and partial
// queries still match ("metal" against "Heavy Metal Classics"). ok is false
// when choices is empty.
func RankOne(query string, choices []string) (best string, score float64, ok bool) {
	if len(choices) == 0 {
		return "", 0, false
	}
	for _, choice := range choices {
		s := tokenSetRatio(query, choice)
		if s > score {
			best = choice
			score = s
		}
	}
	if best == "" {
		// Every choice scored zero; still return the first one so callers
		// can threshold on the score alone.
		best = choices[0]
	}
	return best, clampUnit(score), true
}

// tokenSetRatio compares two strings using the best of three strategies:
// the plain ratio, a token-sorted ratio (robust to word reordering), and a
// token-containment score (robust to the query being a subset of the
// choice's words).
func tokenSetRatio(query, choice string) float64 {
	score := Ratio(query, choice)

	qTokens := tokens(query)
	cTokens := tokens(choice)
	if len(qTokens) == 0 || len(cTokens) == 0 {
		return score
	}

	if s := Ratio(strings.Join(sortedCopy(qTokens), " "), strings.Join(sortedCopy(cTokens), " ")); s > score {
		score = s
	}

	if s := containmentScore(qTokens, cTokens); s > score {
		score = s
	}
	return score
}

// containmentScore measures how much of the query's token set appears in
// the choice's token set. Each query token is matched against its best
// choice token, then the average is discounted by how much of the choice
// is left unmatched, so "metal" scores high against "Heavy Metal Classics"
// but not a perfect 1.0.
func containmentScore(qTokens, cTokens []string) float64 {
	var total float64
	for _, qt := range qTokens {
		var best float64
		for _, ct := range cTokens {
			if s := Ratio(qt, ct); s > best {
				best = s
			}
		}
		total += best
	}
	avg := total / float64(len(qTokens))

	// Discount for choice tokens the query never mentioned.
	if len(cTokens) > len(qTokens) {
		surplus := float64(len(cTokens)-len(qTokens)) / float64(len(cTokens))
		avg *= 1 - surplus*0.25
	}
	return avg
}

func tokens(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func levenshteinRatio(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	dist := matchr.Levenshtein(a, b)
	return 1 - float64(dist)/float64(longest)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
