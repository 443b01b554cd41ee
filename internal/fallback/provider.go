package fallback

import (
	"fmt"
	"strings"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/route"
)

// IDPrefix marks suggestion ids that point into the offline dataset.
const IDPrefix = "fallback-"

// Landmark is one entry of the offline dataset.
type Landmark struct {
	Name        string
	Type        string
	City        string
	Country     string
	Coordinates location.Coordinates
}

// seedLandmarks is the fixed offline dataset. Coordinates are the published
// positions of each landmark.
var seedLandmarks = []Landmark{
	{Name: "Kigali International Airport (KGL)", Type: "airport", Coordinates: location.Coordinates{Lat: -1.9686, Lng: 30.1395}},
	{Name: "Kigali Convention Center", Type: "venue", Coordinates: location.Coordinates{Lat: -1.9536, Lng: 30.0937}},
	{Name: "Kigali Heights", Type: "building", Coordinates: location.Coordinates{Lat: -1.9517, Lng: 30.0928}},
	{Name: "Kigali City Tower", Type: "building", Coordinates: location.Coordinates{Lat: -1.9441, Lng: 30.0597}},
	{Name: "Kigali Business Center", Type: "building", Coordinates: location.Coordinates{Lat: -1.9480, Lng: 30.0920}},
	{Name: "Nyabugogo Bus Station", Type: "bus_station", Coordinates: location.Coordinates{Lat: -1.9390, Lng: 30.0445}},
	{Name: "Kimironko Market", Type: "market", Coordinates: location.Coordinates{Lat: -1.9493, Lng: 30.1257}},
	{Name: "Remera, Kigali", Type: "neighbourhood", Coordinates: location.Coordinates{Lat: -1.9578, Lng: 30.1127}},
	{Name: "Gikondo, Kigali", Type: "neighbourhood", Coordinates: location.Coordinates{Lat: -1.9780, Lng: 30.0770}},
	{Name: "Nyarutarama, Kigali", Type: "neighbourhood", Coordinates: location.Coordinates{Lat: -1.9355, Lng: 30.1030}},
	{Name: "Kacyiru, Kigali", Type: "neighbourhood", Coordinates: location.Coordinates{Lat: -1.9397, Lng: 30.0822}},
	{Name: "Kanombe, Kigali", Type: "neighbourhood", Coordinates: location.Coordinates{Lat: -1.9750, Lng: 30.1500}},
}

// Provider serves deterministic offline data. Every record it returns is
// flagged approximate.
type Provider struct {
	landmarks []Landmark
}

// NewProvider creates a Provider over the built-in Kigali dataset.
func NewProvider() *Provider {
	landmarks := make([]Landmark, len(seedLandmarks))
	for i, l := range seedLandmarks {
		l.City = "Kigali"
		l.Country = "Rwanda"
		landmarks[i] = l
	}
	return &Provider{landmarks: landmarks}
}

// Landmarks returns a copy of the dataset.
func (p *Provider) Landmarks() []Landmark {
	out := make([]Landmark, len(p.landmarks))
	copy(out, p.landmarks)
	return out
}

// MockSuggestions returns the landmarks whose name contains the query, or
// whose first word the query contains, in dataset order.
func (p *Provider) MockSuggestions(query string) []location.Suggestion {
	q := location.NormalizeText(query)
	out := make([]location.Suggestion, 0)
	for i, l := range p.landmarks {
		if !matches(l.Name, q) {
			continue
		}
		out = append(out, p.suggestion(i))
	}
	return out
}

// MockLocationDetails looks a landmark up by fallback id or by its exact
// name. An unknown key yields a location without coordinates.
func (p *Provider) MockLocationDetails(key string) location.ResolvedLocation {
	i, ok := p.lookup(key)
	if !ok {
		f := location.ResolvedFields{
			Name:        strings.TrimSpace(key),
			Approximate: true,
			Error:       fmt.Sprintf("no offline data for %q", strings.TrimSpace(key)),
		}
		return location.NewResolvedLocation(f)
	}

	l := p.landmarks[i]
	coords := l.Coordinates
	return location.NewResolvedLocation(location.ResolvedFields{
		Name:        l.Name,
		Address:     location.FormatAddress(l.Name + ", " + l.City + ", " + l.Country),
		City:        l.City,
		Country:     l.Country,
		Coordinates: &coords,
		Approximate: true,
	})
}

// MockRoute returns a straight-line estimate between two points.
func (p *Provider) MockRoute(origin, destination location.Coordinates) route.RouteEstimate {
	return route.StraightLineEstimate(origin, destination)
}

// IsFallbackID reports whether id refers to an offline dataset entry.
func IsFallbackID(id string) bool {
	return strings.HasPrefix(id, IDPrefix)
}

func (p *Provider) suggestion(i int) location.Suggestion {
	l := p.landmarks[i]
	coords := l.Coordinates
	return location.Suggestion{
		ID:            fmt.Sprintf("%s%d", IDPrefix, i),
		Text:          l.Name,
		Address:       location.FormatAddress(l.Name + ", " + l.City),
		City:          l.City,
		Country:       l.Country,
		Type:          l.Type,
		Coordinates:   &coords,
		IsApproximate: true,
		Origin:        location.OriginFallback,
	}
}

func (p *Provider) lookup(key string) (int, bool) {
	key = strings.TrimSpace(key)
	if IsFallbackID(key) {
		var i int
		if _, err := fmt.Sscanf(strings.TrimPrefix(key, IDPrefix), "%d", &i); err == nil && i >= 0 && i < len(p.landmarks) {
			return i, true
		}
		return 0, false
	}

	k := location.NormalizeText(key)
	if k == "" {
		return 0, false
	}
	for i, l := range p.landmarks {
		if location.NormalizeText(l.Name) == k {
			return i, true
		}
	}
	return 0, false
}

func matches(name, q string) bool {
	n := strings.ToLower(name)
	if strings.Contains(n, q) {
		return true
	}
	first := strings.TrimRight(strings.Fields(n)[0], ",")
	return first != "" && strings.Contains(q, first)
}
