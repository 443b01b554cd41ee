package location

import (
	"encoding/json"
	"time"
)

// ErrMissingCoordinates is the default error carried by a location that was
// resolved without coordinates.
const ErrMissingCoordinates = "location details returned without coordinates"

// ResolvedFields holds the inputs for building a ResolvedLocation.
type ResolvedFields struct {
	Name        string
	Address     string
	City        string
	Country     string
	Postcode    string
	Coordinates *Coordinates
	OpaqueKey   string
	Approximate bool
	ResolvedAt  time.Time
	Error       string
}

// ResolvedLocation is the authoritative, immutable record for a chosen
// pickup or dropoff point. Coordinates may be absent; an absent pair always
// comes with an error message.
type ResolvedLocation struct {
	name                string
	address             string
	city                string
	country             string
	postcode            string
	coordinates         *Coordinates
	opaqueKey           string
	sourceIsApproximate bool
	resolvedAt          time.Time
	err                 string
}

// NewResolvedLocation builds a ResolvedLocation. A zero ResolvedAt is set to now.
func NewResolvedLocation(f ResolvedFields) ResolvedLocation {
	resolvedAt := f.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}

	errMsg := f.Error
	if f.Coordinates == nil && errMsg == "" {
		errMsg = ErrMissingCoordinates
	}

	return ResolvedLocation{
		name:                f.Name,
		address:             f.Address,
		city:                f.City,
		country:             f.Country,
		postcode:            f.Postcode,
		coordinates:         copyCoordinates(f.Coordinates),
		opaqueKey:           f.OpaqueKey,
		sourceIsApproximate: f.Approximate,
		resolvedAt:          resolvedAt,
		err:                 errMsg,
	}
}

// Unresolved builds a location without coordinates for the given reason.
func Unresolved(name, reason string) ResolvedLocation {
	return NewResolvedLocation(ResolvedFields{Name: name, Error: reason})
}

// --- Getters ---

func (l ResolvedLocation) Name() string              { return l.name }
func (l ResolvedLocation) Address() string           { return l.address }
func (l ResolvedLocation) City() string              { return l.city }
func (l ResolvedLocation) Country() string           { return l.country }
func (l ResolvedLocation) Postcode() string          { return l.postcode }
func (l ResolvedLocation) OpaqueKey() string         { return l.opaqueKey }
func (l ResolvedLocation) SourceIsApproximate() bool { return l.sourceIsApproximate }
func (l ResolvedLocation) ResolvedAt() time.Time     { return l.resolvedAt }
func (l ResolvedLocation) Error() string             { return l.err }

// Coordinates returns the pair and whether it is present.
func (l ResolvedLocation) Coordinates() (Coordinates, bool) {
	if l.coordinates == nil {
		return Coordinates{}, false
	}
	return *l.coordinates, true
}

// HasCoordinates reports whether route calculation may proceed from this location.
func (l ResolvedLocation) HasCoordinates() bool {
	return l.coordinates != nil
}

// Fields returns a copy of the record's data, e.g. to build a modified copy.
func (l ResolvedLocation) Fields() ResolvedFields {
	return ResolvedFields{
		Name:        l.name,
		Address:     l.address,
		City:        l.city,
		Country:     l.country,
		Postcode:    l.postcode,
		Coordinates: copyCoordinates(l.coordinates),
		OpaqueKey:   l.opaqueKey,
		Approximate: l.sourceIsApproximate,
		ResolvedAt:  l.resolvedAt,
		Error:       l.err,
	}
}

// SameAs reports whether two records are field-identical ignoring ResolvedAt.
func (l ResolvedLocation) SameAs(other ResolvedLocation) bool {
	a, b := l.Fields(), other.Fields()
	a.ResolvedAt, b.ResolvedAt = time.Time{}, time.Time{}
	if (a.Coordinates == nil) != (b.Coordinates == nil) {
		return false
	}
	if a.Coordinates != nil && *a.Coordinates != *b.Coordinates {
		return false
	}
	a.Coordinates, b.Coordinates = nil, nil
	return a == b
}

type resolvedLocationJSON struct {
	Name                string       `json:"name"`
	Address             string       `json:"address"`
	City                string       `json:"city"`
	Country             string       `json:"country"`
	Postcode            string       `json:"postcode"`
	Coordinates         *Coordinates `json:"coordinates"`
	OpaqueKey           string       `json:"opaque_key,omitempty"`
	SourceIsApproximate bool         `json:"source_is_approximate"`
	ResolvedAt          time.Time    `json:"resolved_at"`
	Error               string       `json:"error,omitempty"`
}

// MarshalJSON renders absent coordinates as an explicit null.
func (l ResolvedLocation) MarshalJSON() ([]byte, error) {
	return json.Marshal(resolvedLocationJSON{
		Name:                l.name,
		Address:             l.address,
		City:                l.city,
		Country:             l.country,
		Postcode:            l.postcode,
		Coordinates:         l.coordinates,
		OpaqueKey:           l.opaqueKey,
		SourceIsApproximate: l.sourceIsApproximate,
		ResolvedAt:          l.resolvedAt,
		Error:               l.err,
	})
}

// UnmarshalJSON rebuilds a record sent back by the booking UI.
func (l *ResolvedLocation) UnmarshalJSON(data []byte) error {
	var raw resolvedLocationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = NewResolvedLocation(ResolvedFields{
		Name:        raw.Name,
		Address:     raw.Address,
		City:        raw.City,
		Country:     raw.Country,
		Postcode:    raw.Postcode,
		Coordinates: raw.Coordinates,
		OpaqueKey:   raw.OpaqueKey,
		Approximate: raw.SourceIsApproximate,
		ResolvedAt:  raw.ResolvedAt,
		Error:       raw.Error,
	})
	return nil
}
