package ranking

import (
	"sort"
	"strings"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
)

// DefaultLimit is the number of results kept when the caller does not ask for a limit.
const DefaultLimit = 10

// Score weights.
const (
	scoreExact       = 100
	scorePrefix      = 50
	scoreContains    = 30
	scoreCity        = 20
	scoreAddress     = 15
	scoreVerified    = 25
	scoreCoordinates = 10
	scoreImportance  = 10
	scoreLive        = 5
)

// Merge concatenates result sets in priority order. Earlier sets win ties
// and deduplication.
func Merge(sets ...[]location.Suggestion) []location.Suggestion {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	out := make([]location.Suggestion, 0, n)
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// Dedupe drops suggestions with empty text and every later suggestion whose
// normalized text was already seen.
func Dedupe(candidates []location.Suggestion) []location.Suggestion {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]location.Suggestion, 0, len(candidates))
	for _, c := range candidates {
		key := location.NormalizeText(c.Text)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Score returns the relevance of a suggestion for a query. The text match
// bonus is the best of exact, prefix and substring match.
func Score(s location.Suggestion, query string) float64 {
	q := location.NormalizeText(query)
	text := location.NormalizeText(s.Text)

	var score float64
	if q != "" {
		switch {
		case text == q:
			score += scoreExact
		case strings.HasPrefix(text, q):
			score += scorePrefix
		case strings.Contains(text, q):
			score += scoreContains
		}
		if strings.Contains(strings.ToLower(s.City), q) {
			score += scoreCity
		}
		if strings.Contains(strings.ToLower(s.Address), q) {
			score += scoreAddress
		}
	}

	if s.Verified() {
		score += scoreVerified
	}
	if s.Coordinates != nil {
		score += scoreCoordinates
	}
	score += clampImportance(s.Importance) * scoreImportance
	if !s.IsApproximate {
		score += scoreLive
	}
	return score
}

// Rank deduplicates, scores and orders candidates, keeping at most limit
// results. Equal scores keep their input order.
func Rank(candidates []location.Suggestion, query string, limit int) []location.Suggestion {
	if limit <= 0 {
		limit = DefaultLimit
	}

	unique := Dedupe(candidates)
	scores := make([]float64, len(unique))
	for i, s := range unique {
		scores[i] = Score(s, query)
	}

	idx := make([]int, len(unique))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	if len(idx) > limit {
		idx = idx[:limit]
	}
	out := make([]location.Suggestion, len(idx))
	for i, j := range idx {
		out[i] = unique[j]
	}
	return out
}

func clampImportance(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
