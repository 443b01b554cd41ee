package location

import "strings"

// SelectionKind names the strategy the resolver uses for a selection.
type SelectionKind string

const (
	SelectByOpaqueKey   SelectionKind = "opaque_key"
	SelectByCoordinates SelectionKind = "coordinates"
	SelectByText        SelectionKind = "text"
	SelectNone          SelectionKind = ""
)

// Selection is what the booking UI sends when a candidate is picked.
type Selection struct {
	OpaqueKey   string       `json:"opaque_key,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Text        string       `json:"text,omitempty"`
}

// Kind returns the resolution order: opaque key, then coordinates, then text.
// Coordinate-shaped text is treated as coordinates.
func (s Selection) Kind() SelectionKind {
	switch {
	case s.OpaqueKey != "":
		return SelectByOpaqueKey
	case s.Coordinates != nil:
		return SelectByCoordinates
	case IsCoordinate(s.Text):
		return SelectByCoordinates
	case strings.TrimSpace(s.Text) != "":
		return SelectByText
	default:
		return SelectNone
	}
}

// Point returns the coordinates the selection refers to, parsing them from
// text when needed.
func (s Selection) Point() (Coordinates, bool) {
	if s.Coordinates != nil {
		return *s.Coordinates, true
	}
	c, err := ParseCoordinates(s.Text)
	if err != nil {
		return Coordinates{}, false
	}
	return c, true
}
