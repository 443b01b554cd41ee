package location

import (
	"time"

	"github.com/google/uuid"
)

// MaxHistoryEntries caps the persisted search history.
const MaxHistoryEntries = 10

// SearchHistoryEntry records a prior successful selection.
type SearchHistoryEntry struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Address     string       `json:"address,omitempty"`
	City        string       `json:"city,omitempty"`
	Country     string       `json:"country,omitempty"`
	OpaqueKey   string       `json:"opaque_key,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Approximate bool         `json:"approximate"`
	SelectedAt  time.Time    `json:"selected_at"`
}

// NewHistoryEntry creates an entry for a location that was just resolved.
func NewHistoryEntry(loc ResolvedLocation) SearchHistoryEntry {
	f := loc.Fields()
	text := f.Name
	if text == "" {
		text = f.Address
	}
	return SearchHistoryEntry{
		ID:          uuid.NewString(),
		Text:        text,
		Address:     f.Address,
		City:        f.City,
		Country:     f.Country,
		OpaqueKey:   f.OpaqueKey,
		Coordinates: f.Coordinates,
		Approximate: f.Approximate,
		SelectedAt:  time.Now().UTC(),
	}
}

// Suggestion converts the entry so it shares the click contract of live results.
func (e SearchHistoryEntry) Suggestion() Suggestion {
	return Suggestion{
		ID:            "history-" + e.ID,
		Text:          e.Text,
		Address:       e.Address,
		City:          e.City,
		Country:       e.Country,
		OpaqueKey:     e.OpaqueKey,
		Coordinates:   copyCoordinates(e.Coordinates),
		IsApproximate: e.Approximate,
		Origin:        OriginHistory,
	}
}

// PrependHistory puts entry first, drops older entries with the same
// normalized text and trims the list to MaxHistoryEntries.
func PrependHistory(entries []SearchHistoryEntry, entry SearchHistoryEntry) []SearchHistoryEntry {
	list := make([]SearchHistoryEntry, 0, len(entries)+1)
	list = append(list, entry)
	return NormalizeHistory(append(list, entries...))
}

// NormalizeHistory keeps the first entry for each normalized text, drops
// entries without text and trims the list to MaxHistoryEntries.
func NormalizeHistory(entries []SearchHistoryEntry) []SearchHistoryEntry {
	out := make([]SearchHistoryEntry, 0, MaxHistoryEntries)
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if len(out) == MaxHistoryEntries {
			break
		}
		k := NormalizeText(e.Text)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}
