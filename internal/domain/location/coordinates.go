package location

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// coordinatePattern matches "lat,lng" input such as "-1.9441, 30.0619".
var coordinatePattern = regexp.MustCompile(`^-?\d+\.?\d*,\s*-?\d+\.?\d*$`)

// Coordinates is a WGS84 latitude/longitude pair in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both components are inside their geographic range.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// String formats the pair as "lat,lng".
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// IsCoordinate reports whether the input is shaped like a "lat,lng" pair.
func IsCoordinate(s string) bool {
	return coordinatePattern.MatchString(strings.TrimSpace(s))
}

// ParseCoordinates parses "lat,lng" input. Out-of-range pairs are rejected.
func ParseCoordinates(s string) (Coordinates, error) {
	s = strings.TrimSpace(s)
	if !coordinatePattern.MatchString(s) {
		return Coordinates{}, fmt.Errorf("not a coordinate pair: %q", s)
	}

	parts := strings.SplitN(s, ",", 2)
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("invalid latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("invalid longitude: %w", err)
	}

	c := Coordinates{Lat: lat, Lng: lng}
	if !c.Valid() {
		return Coordinates{}, fmt.Errorf("coordinates out of range: %s", c)
	}
	return c, nil
}

// copyCoordinates returns a detached copy so value objects never share state.
func copyCoordinates(c *Coordinates) *Coordinates {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
