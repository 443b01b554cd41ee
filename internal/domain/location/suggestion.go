package location

import "strings"

// Origin tells the UI where a suggestion came from.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginFallback Origin = "fallback"
	OriginHistory  Origin = "history"
)

// Suggestion is a candidate match produced by search or autocomplete.
type Suggestion struct {
	ID            string       `json:"id"`
	Text          string       `json:"text"`
	Address       string       `json:"address,omitempty"`
	City          string       `json:"city,omitempty"`
	Country       string       `json:"country,omitempty"`
	Type          string       `json:"type,omitempty"`
	Importance    float64      `json:"importance"`
	OpaqueKey     string       `json:"opaque_key,omitempty"`
	Coordinates   *Coordinates `json:"coordinates,omitempty"`
	IsApproximate bool         `json:"is_approximate"`
	Origin        Origin       `json:"origin"`
}

// Verified reports whether the suggestion carries a key for a detail lookup.
func (s Suggestion) Verified() bool {
	return s.OpaqueKey != ""
}

// Selection returns the resolver input for the suggestion when it is picked.
func (s Suggestion) Selection() Selection {
	return Selection{
		OpaqueKey:   s.OpaqueKey,
		Coordinates: copyCoordinates(s.Coordinates),
		Text:        s.Text,
	}
}

// NormalizeText returns the deduplication key for display text.
func NormalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// AnyApproximate reports whether at least one suggestion came from offline data.
func AnyApproximate(suggestions []Suggestion) bool {
	for _, s := range suggestions {
		if s.IsApproximate {
			return true
		}
	}
	return false
}

// FormatAddress trims every comma separated part and drops empty ones.
func FormatAddress(address string) string {
	if address == "" {
		return ""
	}
	parts := strings.Split(address, ",")
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// ExtractCity returns the second to last part of a comma separated address,
// or the whole address when it has a single part.
func ExtractCity(address string) string {
	if address == "" {
		return ""
	}
	parts := strings.Split(address, ",")
	if len(parts) > 1 {
		return strings.TrimSpace(parts[len(parts)-2])
	}
	return strings.TrimSpace(address)
}
