// Package preview builds the map preview for a route candidate. The
// geometry is a fixed mock path around a demo region; nothing here fetches
// tiles or calls a mapping service, it only computes coordinates, styling
// and links.
package preview

import (
	"fmt"
	"math"
	"strings"

	"github.com/NERVsystems/ecoroute/pkg/estimator"
)

// Zoom limits for the preview tile.
const (
	DefaultZoom = 13
	MinZoom     = 1
	MaxZoom     = 19
)

// Location is a WGS84 coordinate.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Region is a map viewport: a centre and the span it covers.
type Region struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitude_delta"`
	LongitudeDelta float64 `json:"longitude_delta"`
}

// Center returns the centre of the region.
func (r Region) Center() Location {
	return Location{Latitude: r.Latitude, Longitude: r.Longitude}
}

// DefaultRegion is the demo viewport over San Francisco.
var DefaultRegion = Region{
	Latitude:       37.78825,
	Longitude:      -122.4324,
	LatitudeDelta:  0.0922,
	LongitudeDelta: 0.0421,
}

// MockPath returns the start, waypoint and end drawn for every route.
func MockPath(r Region) []Location {
	return []Location{
		{Latitude: r.Latitude - 0.01, Longitude: r.Longitude - 0.01},
		{Latitude: r.Latitude - 0.005, Longitude: r.Longitude},
		{Latitude: r.Latitude + 0.01, Longitude: r.Longitude + 0.01},
	}
}

// MapType is the base layer of the preview.
type MapType string

const (
	MapStandard  MapType = "standard"
	MapSatellite MapType = "satellite"
)

// ParseMapType accepts "standard" or "satellite". Empty means standard.
func ParseMapType(s string) (MapType, error) {
	switch MapType(strings.ToLower(strings.TrimSpace(s))) {
	case "", MapStandard:
		return MapStandard, nil
	case MapSatellite:
		return MapSatellite, nil
	}
	return "", fmt.Errorf("unknown map type %q", s)
}

// Toggle switches between standard and satellite.
func (m MapType) Toggle() MapType {
	if m == MapSatellite {
		return MapStandard
	}
	return MapSatellite
}

var modeColors = map[estimator.Mode]string{
	estimator.Driving:   "#FF6B6B",
	estimator.Bicycling: "#4ECDC4",
	estimator.Transit:   "#45B7D1",
	estimator.Walking:   "#96CEB4",
}

var modeIcons = map[estimator.Mode]string{
	estimator.Driving:   "🚗",
	estimator.Bicycling: "🚴",
	estimator.Transit:   "🚌",
	estimator.Walking:   "🚶",
}

// DefaultColor is the line colour of an unknown mode.
const DefaultColor = "#007AFF"

// ModeColor returns the path colour for a mode.
func ModeColor(m estimator.Mode) string {
	if c, ok := modeColors[m]; ok {
		return c
	}
	return DefaultColor
}

// ModeIcon returns the emoji shown next to a mode. Unknown modes get the
// driving icon.
func ModeIcon(m estimator.Mode) string {
	if icon, ok := modeIcons[m]; ok {
		return icon
	}
	return modeIcons[estimator.Driving]
}

// Summary is the one-line card text for a route.
func Summary(r estimator.RouteCandidate) string {
	return fmt.Sprintf("%s %s · %v km · %d min · %d g CO₂ · score %d",
		ModeIcon(r.Mode), strings.ToUpper(string(r.Mode)),
		r.DistanceKm, r.TimeMin, r.CO2g, r.Score)
}

// Tile is a slippy-map tile address.
type Tile struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Zoom int `json:"zoom"`
}

// LatLonToTile converts latitude, longitude and zoom to tile coordinates
func LatLonToTile(lat, lon float64, zoom int) Tile {
	lat = math.Max(-85.05112878, math.Min(85.05112878, lat))
	n := math.Pow(2, float64(zoom))

	x := int(math.Floor((lon + 180.0) / 360.0 * n))
	y := int(math.Floor((1.0 - math.Log(math.Tan(lat*math.Pi/180.0)+1.0/math.Cos(lat*math.Pi/180.0))/math.Pi) / 2.0 * n))

	return Tile{X: x, Y: y, Zoom: zoom}
}

// TileToLatLon returns the north-west corner of a tile.
func TileToLatLon(t Tile) Location {
	n := math.Pow(2, float64(t.Zoom))
	lon := float64(t.X)/n*360.0 - 180.0

	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(t.Y)/n)))

	return Location{Latitude: latRad * 180.0 / math.Pi, Longitude: lon}
}

// TileURL returns the tile image address for a map type.
func TileURL(t Tile, m MapType) string {
	if m == MapSatellite {
		return fmt.Sprintf("https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/%d/%d/%d",
			t.Zoom, t.Y, t.X)
	}
	return fmt.Sprintf("https://tile.openstreetmap.org/%d/%d/%d.png", t.Zoom, t.X, t.Y)
}

// OSMLink returns the openstreetmap.org address centred on loc.
func OSMLink(loc Location, zoom int) string {
	return fmt.Sprintf("https://www.openstreetmap.org/#map=%d/%.5f/%.5f", zoom, loc.Latitude, loc.Longitude)
}

// ValidateZoom reports whether zoom is within MinZoom and MaxZoom.
func ValidateZoom(zoom int) error {
	if zoom < MinZoom || zoom > MaxZoom {
		return fmt.Errorf("zoom must be between %d and %d, got %d", MinZoom, MaxZoom, zoom)
	}
	return nil
}

// ZoomIn and ZoomOut step the zoom by one, clamped to the valid range.
func ZoomIn(zoom int) int  { return min(zoom+1, MaxZoom) }
func ZoomOut(zoom int) int { return max(zoom-1, MinZoom) }

// Marker is a labelled point on the preview.
type Marker struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Location    Location `json:"location"`
}

// Options selects how a preview is rendered. Zero values use the defaults.
type Options struct {
	Zoom        int
	MapType     MapType
	FromAddress string
	ToAddress   string
	Region      *Region
}

// Preview is everything needed to draw one route on a map.
type Preview struct {
	Route    estimator.RouteCandidate `json:"route"`
	Summary  string                   `json:"summary"`
	Icon     string                   `json:"icon"`
	Color    string                   `json:"color"`
	MapType  MapType                  `json:"map_type"`
	Region   Region                   `json:"region"`
	Path     []Location               `json:"path"`
	Polyline string                   `json:"polyline"`
	Markers  []Marker                 `json:"markers"`
	Tile     Tile                     `json:"tile"`
	TileURL  string                   `json:"tile_url"`
	OSMURL   string                   `json:"osm_url"`
}

// Build computes the preview of route.
func Build(route estimator.RouteCandidate, opts Options) (Preview, error) {
	zoom := opts.Zoom
	if zoom == 0 {
		zoom = DefaultZoom
	}
	if err := ValidateZoom(zoom); err != nil {
		return Preview{}, err
	}

	mapType, err := ParseMapType(string(opts.MapType))
	if err != nil {
		return Preview{}, err
	}

	region := DefaultRegion
	if opts.Region != nil {
		region = *opts.Region
	}

	path := MockPath(region)
	center := region.Center()
	tile := LatLonToTile(center.Latitude, center.Longitude, zoom)

	return Preview{
		Route:    route,
		Summary:  Summary(route),
		Icon:     ModeIcon(route.Mode),
		Color:    ModeColor(route.Mode),
		MapType:  mapType,
		Region:   region,
		Path:     path,
		Polyline: EncodePolyline(path),
		Markers: []Marker{
			{Title: "Start", Description: orDefault(opts.FromAddress, "Starting Point"), Icon: "🟢", Location: path[0]},
			{Title: "Destination", Description: orDefault(opts.ToAddress, "Destination Point"), Icon: "🔴", Location: path[len(path)-1]},
		},
		Tile:    tile,
		TileURL: TileURL(tile, mapType),
		OSMURL:  OSMLink(center, zoom),
	}, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
