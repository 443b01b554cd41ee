package geocoding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/failure"
	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/route"
)

// Payload shapes accepted for place lists.
const (
	shapeArray       = "array"
	shapeSuggestions = "suggestions"
	shapeResults     = "results"
	shapeFeatures    = "features"
	shapeCandidates  = "candidates"
	shapeObject      = "object"
	shapeUnknown     = "unknown"
)

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func floatOf(f *flexFloat) (float64, bool) {
	if f == nil {
		return 0, false
	}
	v := float64(*f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// rawPoint is a coordinate pair in any of the accepted spellings: an object
// with lat/lng, lat/lon, latitude/longitude or x/y, a GeoJSON geometry, or a
// bare [lng, lat] array. Unrecognized values leave the point absent.
type rawPoint struct {
	c *location.Coordinates
}

func (p *rawPoint) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '[':
		var arr []flexFloat
		if err := json.Unmarshal(b, &arr); err != nil || len(arr) < 2 {
			return nil
		}
		p.set(float64(arr[1]), float64(arr[0]))
	case '{':
		var o struct {
			Lat         *flexFloat `json:"lat"`
			Lng         *flexFloat `json:"lng"`
			Lon         *flexFloat `json:"lon"`
			Latitude    *flexFloat `json:"latitude"`
			Longitude   *flexFloat `json:"longitude"`
			X           *flexFloat `json:"x"`
			Y           *flexFloat `json:"y"`
			Coordinates *rawPoint  `json:"coordinates"`
		}
		if err := json.Unmarshal(b, &o); err != nil {
			return nil
		}
		if lat, ok := floatOf(o.Lat); ok {
			if lng, ok := firstFloat(o.Lng, o.Lon); ok {
				p.set(lat, lng)
				return nil
			}
		}
		if lat, ok := floatOf(o.Latitude); ok {
			if lng, ok := floatOf(o.Longitude); ok {
				p.set(lat, lng)
				return nil
			}
		}
		if lng, ok := floatOf(o.X); ok {
			if lat, ok := floatOf(o.Y); ok {
				p.set(lat, lng)
				return nil
			}
		}
		if o.Coordinates != nil && o.Coordinates.c != nil {
			p.c = o.Coordinates.c
		}
	}
	return nil
}

func (p *rawPoint) set(lat, lng float64) {
	c := location.Coordinates{Lat: lat, Lng: lng}
	if c.Valid() {
		p.c = &c
	}
}

func firstFloat(vals ...*flexFloat) (float64, bool) {
	for _, v := range vals {
		if f, ok := floatOf(v); ok {
			return f, true
		}
	}
	return 0, false
}

// rawAddress is either a single address line or a structured address object.
type rawAddress struct {
	line     string
	city     string
	country  string
	postcode string
}

func (a *rawAddress) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &a.line)
	}
	if b[0] != '{' {
		return nil
	}
	var o struct {
		MatchAddr   string `json:"Match_addr"`
		LongLabel   string `json:"LongLabel"`
		City        string `json:"City"`
		Postal      string `json:"Postal"`
		CountryCode string `json:"CountryCode"`
		CntryName   string `json:"CntryName"`
		Road        string `json:"road"`
		Suburb      string `json:"suburb"`
		CityLower   string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		Country     string `json:"country"`
		Postcode    string `json:"postcode"`
	}
	if err := json.Unmarshal(b, &o); err != nil {
		return nil
	}
	a.line = firstNonEmpty(o.LongLabel, o.MatchAddr, joinNonEmpty(o.Road, o.Suburb))
	a.city = firstNonEmpty(o.City, o.CityLower, o.Town, o.Village)
	a.country = firstNonEmpty(o.CntryName, o.Country, o.CountryCode)
	a.postcode = firstNonEmpty(o.Postal, o.Postcode)
	return nil
}

// rawPlace is one place record as sent by the service. GeoJSON features keep
// their fields under Properties.
type rawPlace struct {
	ID               flexString `json:"id"`
	PlaceID          flexString `json:"place_id"`
	Name             string     `json:"name"`
	DisplayName      string     `json:"display_name"`
	Text             string     `json:"text"`
	Address          rawAddress `json:"address"`
	FormattedAddress string     `json:"formatted_address"`
	City             string     `json:"city"`
	Country          string     `json:"country"`
	Postcode         string     `json:"postcode"`
	Type             string     `json:"type"`
	Category         string     `json:"category"`
	Importance       *flexFloat `json:"importance"`
	Score            *flexFloat `json:"score"`
	MagicKey         string     `json:"magicKey"`
	MagicKeySnake    string     `json:"magic_key"`
	Location         rawPoint   `json:"location"`
	Coordinates      rawPoint   `json:"coordinates"`
	Geometry         rawPoint   `json:"geometry"`
	Lat              *flexFloat `json:"lat"`
	Lng              *flexFloat `json:"lng"`
	Lon              *flexFloat `json:"lon"`
	Properties       *rawPlace  `json:"properties"`
	Attributes       *rawPlace  `json:"attributes"`
}

func (p rawPlace) props() rawPlace {
	switch {
	case p.Properties != nil:
		return *p.Properties
	case p.Attributes != nil:
		return *p.Attributes
	default:
		return rawPlace{}
	}
}

func (p rawPlace) text() string {
	pr := p.props()
	return strings.TrimSpace(firstNonEmpty(p.Name, p.DisplayName, p.Text, pr.Name, pr.DisplayName, pr.Text))
}

func (p rawPlace) opaqueKey() string {
	pr := p.props()
	return firstNonEmpty(p.MagicKey, p.MagicKeySnake, pr.MagicKey, pr.MagicKeySnake)
}

func (p rawPlace) addressLine() string {
	pr := p.props()
	line := firstNonEmpty(p.Address.line, p.FormattedAddress, pr.Address.line, pr.FormattedAddress)
	if line == "" && p.DisplayName != "" && p.DisplayName != p.Name {
		line = p.DisplayName
	}
	return location.FormatAddress(line)
}

func (p rawPlace) city() string {
	pr := p.props()
	if c := firstNonEmpty(p.City, p.Address.city, pr.City, pr.Address.city); c != "" {
		return c
	}
	if addr := p.addressLine(); strings.Contains(addr, ",") {
		return location.ExtractCity(addr)
	}
	return ""
}

func (p rawPlace) country() string {
	pr := p.props()
	return firstNonEmpty(p.Country, p.Address.country, pr.Country, pr.Address.country)
}

func (p rawPlace) postcode() string {
	pr := p.props()
	return firstNonEmpty(p.Postcode, p.Address.postcode, pr.Postcode, pr.Address.postcode)
}

func (p rawPlace) kind() string {
	// A GeoJSON feature's own type is always "Feature".
	if p.Properties != nil {
		return firstNonEmpty(p.Properties.Type, p.Properties.Category)
	}
	return firstNonEmpty(p.Type, p.Category)
}

func (p rawPlace) importance() float64 {
	pr := p.props()
	if v, ok := firstFloat(p.Importance, pr.Importance); ok {
		return v
	}
	// Candidate scores are on a 0-100 scale.
	if v, ok := firstFloat(p.Score, pr.Score); ok {
		return v / 100
	}
	return 0
}

func (p rawPlace) coordinates() *location.Coordinates {
	for _, pt := range []rawPoint{p.Location, p.Coordinates, p.Geometry} {
		if pt.c != nil {
			c := *pt.c
			return &c
		}
	}
	if lat, ok := floatOf(p.Lat); ok {
		if lng, ok := firstFloat(p.Lng, p.Lon); ok {
			c := location.Coordinates{Lat: lat, Lng: lng}
			if c.Valid() {
				return &c
			}
		}
	}
	if p.Properties != nil {
		return p.Properties.coordinates()
	}
	return nil
}

func (p rawPlace) id() string {
	pr := p.props()
	return firstNonEmpty(string(p.ID), string(p.PlaceID), string(pr.ID), string(pr.PlaceID))
}

func (p rawPlace) empty() bool {
	return p.text() == "" && p.addressLine() == "" && p.coordinates() == nil
}

// suggestion maps the record onto the suggestion schema. Records without
// display text are dropped.
func (p rawPlace) suggestion(index int) (location.Suggestion, bool) {
	text := p.text()
	if text == "" {
		return location.Suggestion{}, false
	}
	id := p.id()
	if id == "" {
		id = fmt.Sprintf("live-%d", index)
	}
	return location.Suggestion{
		ID:          id,
		Text:        text,
		Address:     p.addressLine(),
		City:        p.city(),
		Country:     p.country(),
		Type:        p.kind(),
		Importance:  p.importance(),
		OpaqueKey:   p.opaqueKey(),
		Coordinates: p.coordinates(),
		Origin:      location.OriginLive,
	}, true
}

// resolved maps the record onto a resolved location. Coordinates are taken
// only from the record itself.
func (p rawPlace) resolved(opaqueKey string) location.ResolvedLocation {
	name := p.text()
	addr := p.addressLine()
	if name == "" {
		name = addr
	}
	if opaqueKey == "" {
		opaqueKey = p.opaqueKey()
	}
	return location.NewResolvedLocation(location.ResolvedFields{
		Name:        name,
		Address:     addr,
		City:        p.city(),
		Country:     p.country(),
		Postcode:    p.postcode(),
		Coordinates: p.coordinates(),
		OpaqueKey:   opaqueKey,
	})
}

// placeEnvelope lists the envelope keys a place list may arrive under.
type placeEnvelope struct {
	Suggestions *[]rawPlace `json:"suggestions"`
	Results     *[]rawPlace `json:"results"`
	Features    *[]rawPlace `json:"features"`
	Candidates  *[]rawPlace `json:"candidates"`
}

func (e placeEnvelope) list() ([]rawPlace, string) {
	switch {
	case e.Suggestions != nil:
		return *e.Suggestions, shapeSuggestions
	case e.Results != nil:
		return *e.Results, shapeResults
	case e.Features != nil:
		return *e.Features, shapeFeatures
	case e.Candidates != nil:
		return *e.Candidates, shapeCandidates
	default:
		return nil, shapeUnknown
	}
}

// decodePlaceList decodes a bare array or one of the known envelopes.
// Anything else is a MalformedResponse.
func decodePlaceList(body []byte) ([]rawPlace, string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, shapeUnknown, failure.New(failure.KindMalformedResponse, "empty response body")
	}

	switch body[0] {
	case '[':
		var items []rawPlace
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, shapeArray, failure.Wrap(failure.KindMalformedResponse, "invalid place array", err)
		}
		return items, shapeArray, nil
	case '{':
		var env placeEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, shapeObject, failure.Wrap(failure.KindMalformedResponse, "invalid place envelope", err)
		}
		items, shape := env.list()
		if shape == shapeUnknown {
			return nil, shapeObject, failure.New(failure.KindMalformedResponse, "unrecognized place envelope")
		}
		return items, shape, nil
	default:
		return nil, shapeUnknown, failure.New(failure.KindMalformedResponse, "response is not a JSON object or array")
	}
}

// decodeSuggestions maps a place list payload onto suggestions.
func decodeSuggestions(body []byte) ([]location.Suggestion, string, error) {
	items, shape, err := decodePlaceList(body)
	if err != nil {
		return nil, shape, err
	}
	out := make([]location.Suggestion, 0, len(items))
	for i, item := range items {
		if s, ok := item.suggestion(i); ok {
			out = append(out, s)
		}
	}
	return out, shape, nil
}

// decodePlace decodes a single place, either as a bare object or as the
// first entry of a place list.
func decodePlace(body []byte) (rawPlace, string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env placeEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return rawPlace{}, shapeObject, failure.Wrap(failure.KindMalformedResponse, "invalid place object", err)
		}
		if _, shape := env.list(); shape == shapeUnknown {
			var p rawPlace
			if err := json.Unmarshal(trimmed, &p); err != nil {
				return rawPlace{}, shapeObject, failure.Wrap(failure.KindMalformedResponse, "invalid place object", err)
			}
			if p.empty() {
				return rawPlace{}, shapeObject, failure.New(failure.KindMalformedResponse, "place object has no recognizable fields")
			}
			return p, shapeObject, nil
		}
	}

	items, shape, err := decodePlaceList(trimmed)
	if err != nil {
		return rawPlace{}, shape, err
	}
	for _, item := range items {
		if !item.empty() {
			return item, shape, nil
		}
	}
	return rawPlace{}, shape, failure.New(failure.KindNotFound, "no matching place")
}

// arcgisFeature is one solved route in ArcGIS form.
type arcgisFeature struct {
	Attributes struct {
		TotalKilometers *flexFloat `json:"Total_Kilometers"`
		TotalMiles      *flexFloat `json:"Total_Miles"`
		TotalTravelTime *flexFloat `json:"Total_TravelTime"`
	} `json:"attributes"`
	Geometry struct {
		Paths [][][]float64 `json:"paths"`
	} `json:"geometry"`
}

// osrmRoute is one route in OSRM form. Distance is in meters, duration in seconds.
type osrmRoute struct {
	Distance *flexFloat      `json:"distance"`
	Duration *flexFloat      `json:"duration"`
	Geometry json.RawMessage `json:"geometry"`
}

const kmPerMile = 1.609344

// routeSummary is the decoded route before it is turned into an estimate.
type routeSummary struct {
	distanceKm float64
	minutes    *float64
	path       []location.Coordinates
}

// decodeRoute accepts a bare ArcGIS feature list, a {features} envelope, a
// {routes:{features}} solve result, or an OSRM {routes:[...]} result.
func decodeRoute(body []byte) (routeSummary, string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return routeSummary{}, shapeUnknown, failure.New(failure.KindMalformedResponse, "empty route response")
	}

	switch body[0] {
	case '[':
		var features []arcgisFeature
		if err := json.Unmarshal(body, &features); err != nil {
			return routeSummary{}, shapeArray, failure.Wrap(failure.KindMalformedResponse, "invalid route array", err)
		}
		s, err := summarizeArcGIS(features)
		return s, shapeArray, err
	case '{':
		var env struct {
			Features *[]arcgisFeature `json:"features"`
			Routes   json.RawMessage  `json:"routes"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return routeSummary{}, shapeObject, failure.Wrap(failure.KindMalformedResponse, "invalid route envelope", err)
		}
		routes := bytes.TrimSpace(env.Routes)
		switch {
		case env.Features != nil:
			s, err := summarizeArcGIS(*env.Features)
			return s, shapeFeatures, err
		case len(routes) > 0 && routes[0] == '[':
			var rs []osrmRoute
			if err := json.Unmarshal(routes, &rs); err != nil {
				return routeSummary{}, "osrm", failure.Wrap(failure.KindMalformedResponse, "invalid OSRM routes", err)
			}
			s, err := summarizeOSRM(rs)
			return s, "osrm", err
		case len(routes) > 0 && routes[0] == '{':
			return decodeRoute(routes)
		}
		return routeSummary{}, shapeObject, failure.New(failure.KindMalformedResponse, "unrecognized route envelope")
	default:
		return routeSummary{}, shapeUnknown, failure.New(failure.KindMalformedResponse, "route response is not a JSON object or array")
	}
}

func summarizeArcGIS(features []arcgisFeature) (routeSummary, error) {
	if len(features) == 0 {
		return routeSummary{}, failure.New(failure.KindNotFound, "no route between the stops")
	}
	f := features[0]

	var s routeSummary
	if km, ok := floatOf(f.Attributes.TotalKilometers); ok {
		s.distanceKm = km
	} else if mi, ok := floatOf(f.Attributes.TotalMiles); ok {
		s.distanceKm = mi * kmPerMile
	} else {
		return routeSummary{}, failure.New(failure.KindMalformedResponse, "route has no distance")
	}
	if m, ok := floatOf(f.Attributes.TotalTravelTime); ok {
		s.minutes = &m
	}

	// Multi-part paths are flattened in order.
	for _, part := range f.Geometry.Paths {
		for _, pt := range part {
			if len(pt) < 2 {
				continue
			}
			c := location.Coordinates{Lat: pt[1], Lng: pt[0]}
			if c.Valid() {
				s.path = append(s.path, c)
			}
		}
	}
	return s, nil
}

func summarizeOSRM(routes []osrmRoute) (routeSummary, error) {
	if len(routes) == 0 {
		return routeSummary{}, failure.New(failure.KindNotFound, "no route between the stops")
	}
	r := routes[0]

	meters, ok := floatOf(r.Distance)
	if !ok {
		return routeSummary{}, failure.New(failure.KindMalformedResponse, "route has no distance")
	}
	s := routeSummary{distanceKm: meters / 1000}
	if secs, ok := floatOf(r.Duration); ok {
		m := secs / 60
		s.minutes = &m
	}

	geom := bytes.TrimSpace(r.Geometry)
	if len(geom) > 0 && geom[0] == '{' {
		var g struct {
			Coordinates [][]float64 `json:"coordinates"`
		}
		if err := json.Unmarshal(geom, &g); err == nil {
			for _, pt := range g.Coordinates {
				if len(pt) < 2 {
					continue
				}
				c := location.Coordinates{Lat: pt[1], Lng: pt[0]}
				if c.Valid() {
					s.path = append(s.path, c)
				}
			}
		}
	}
	return s, nil
}

// estimate turns the summary into an authoritative estimate. Travel time is
// rounded up to whole minutes. A route without geometry gets the two
// endpoints as its path.
func (s routeSummary) estimate(from, to location.Coordinates) (route.RouteEstimate, error) {
	minutes := route.FallbackDurationMinutes(s.distanceKm)
	if s.minutes != nil && *s.minutes >= 0 {
		minutes = int(math.Ceil(*s.minutes))
	}
	path := s.path
	if len(path) == 0 {
		path = []location.Coordinates{from, to}
	}
	est, err := route.NewRouteEstimate(s.distanceKm, minutes, path, false)
	if err != nil {
		return route.RouteEstimate{}, failure.Wrap(failure.KindMalformedResponse, "route values out of range", err)
	}
	return est, nil
}

// shapeOf names the top-level JSON shape of a body for diagnostics.
func shapeOf(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "empty"
	}
	switch body[0] {
	case '[':
		return shapeArray
	case '{':
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(body, &keys); err != nil {
			return shapeObject
		}
		names := make([]string, 0, len(keys))
		for k := range keys {
			names = append(names, k)
		}
		sort.Strings(names)
		if len(names) > 5 {
			names = names[:5]
		}
		return "object{" + strings.Join(names, ",") + "}"
	default:
		return shapeUnknown
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
