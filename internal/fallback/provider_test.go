package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/route"
)

func TestNewProvider_Dataset(t *testing.T) {
	p := NewProvider()
	landmarks := p.Landmarks()
	require.Len(t, landmarks, 12)
	for _, l := range landmarks {
		assert.True(t, l.Coordinates.Valid(), l.Name)
		assert.Equal(t, "Kigali", l.City)
		assert.Equal(t, "Rwanda", l.Country)
	}
}

func TestMockSuggestions(t *testing.T) {
	p := NewProvider()

	out := p.MockSuggestions("Kimironko")
	require.Len(t, out, 1)
	s := out[0]
	assert.Equal(t, "Kimironko Market", s.Text)
	assert.True(t, s.IsApproximate)
	assert.Empty(t, s.OpaqueKey)
	assert.Equal(t, location.OriginFallback, s.Origin)
	assert.True(t, IsFallbackID(s.ID))
	require.NotNil(t, s.Coordinates)

	// every name starting with the query's first word matches
	out = p.MockSuggestions("kigali conv")
	var texts []string
	for _, s := range out {
		texts = append(texts, s.Text)
	}
	assert.Contains(t, texts, "Kigali Convention Center")
	assert.Contains(t, texts, "Kigali Heights")
	assert.NotContains(t, texts, "Remera, Kigali")

	assert.Empty(t, p.MockSuggestions("zzz"))
}

func TestMockSuggestions_Deterministic(t *testing.T) {
	p := NewProvider()
	assert.Equal(t, p.MockSuggestions("remera"), p.MockSuggestions("remera"))
	assert.Equal(t, p.MockSuggestions("remera"), NewProvider().MockSuggestions("REMERA "))
}

func TestMockLocationDetails(t *testing.T) {
	p := NewProvider()

	byName := p.MockLocationDetails("kigali heights")
	coords, ok := byName.Coordinates()
	require.True(t, ok)
	assert.Equal(t, location.Coordinates{Lat: -1.9517, Lng: 30.0928}, coords)
	assert.True(t, byName.SourceIsApproximate())
	assert.Equal(t, "Kigali Heights", byName.Name())

	var id string
	for _, s := range p.MockSuggestions("Kigali Heights") {
		if s.Text == "Kigali Heights" {
			id = s.ID
		}
	}
	require.NotEmpty(t, id)
	byID := p.MockLocationDetails(id)
	assert.True(t, byID.SameAs(byName))

	unknown := p.MockLocationDetails("Musanze")
	assert.False(t, unknown.HasCoordinates())
	assert.NotEmpty(t, unknown.Error())
	assert.True(t, unknown.SourceIsApproximate())

	assert.False(t, p.MockLocationDetails(IDPrefix+"99").HasCoordinates())

	// partial names never pick a landmark
	for _, partial := range []string{"Kigali", "ka", "heights"} {
		assert.False(t, p.MockLocationDetails(partial).HasCoordinates(), partial)
	}
}

func TestMockRoute(t *testing.T) {
	p := NewProvider()
	a := location.Coordinates{Lat: -1.9441, Lng: 30.0619}
	b := location.Coordinates{Lat: -1.9686, Lng: 30.1395}

	est := p.MockRoute(a, b)
	assert.True(t, est.IsApproximate)
	assert.InDelta(t, route.GreatCircleKm(a, b), est.DistanceKm, 1e-9)
	assert.Equal(t, route.FallbackDurationMinutes(est.DistanceKm), est.DurationMinutes)
	assert.Equal(t, []location.Coordinates{a, b}, est.Path)
	assert.Equal(t, est, p.MockRoute(a, b))
}
