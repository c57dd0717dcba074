// Package estimator synthesizes eco-scored route candidates between two
// addresses and ranks them.
package estimator

import (
	"fmt"
	"math"
)

// Mode is the transport method a route candidate represents.
type Mode string

// Supported transport modes.
const (
	Driving   Mode = "driving"
	Bicycling Mode = "bicycling"
	Transit   Mode = "transit"
	Walking   Mode = "walking"
)

// Modes lists every mode in generation order. Ranking ties keep this order.
var Modes = []Mode{Driving, Bicycling, Transit, Walking}

// Valid reports whether m is one of the supported modes.
func (m Mode) Valid() bool {
	switch m {
	case Driving, Bicycling, Transit, Walking:
		return true
	default:
		return false
	}
}

// ParseMode converts a user supplied mode name into a Mode.
// Common aliases ("car", "bike", "bus", "foot", ...) are accepted.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "driving", "car", "drive":
		return Driving, nil
	case "bicycling", "bike", "bicycle", "cycling":
		return Bicycling, nil
	case "transit", "bus", "public_transport", "public_transit":
		return Transit, nil
	case "walking", "walk", "foot":
		return Walking, nil
	default:
		return "", fmt.Errorf("unknown transport mode %q", s)
	}
}

// RouteCandidate is one synthesized route estimate for a single mode.
// Values are immutable once produced.
type RouteCandidate struct {
	Mode       Mode    `json:"mode"`
	DistanceKm float64 `json:"distance_km"`
	TimeMin    int     `json:"time_min"`
	CO2g       int     `json:"co2_g"`
	Score      int     `json:"score"`
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
