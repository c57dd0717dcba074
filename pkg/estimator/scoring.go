package estimator

import (
	"math"
	"slices"
	"sort"
)

// Eco-score weights. CO2 grams are divided by co2Normalizer to land on
// roughly the same scale as minutes.
const (
	timeWeight    = 0.6
	co2Weight     = 0.4
	co2Normalizer = 10.0
)

// EcoScore combines travel time and emissions into a single ranking value.
// Lower is better.
func EcoScore(timeMin, co2g int) int {
	score := float64(timeMin)*timeWeight + (float64(co2g)/co2Normalizer)*co2Weight
	return int(math.Round(score))
}

// Synthesize derives one candidate per mode from a route hash, in
// generation order.
func Synthesize(routeHash int64) []RouteCandidate {
	h := routeHash
	if h < 0 {
		h = -h
	}
	base := float64(5 + h%20)

	return []RouteCandidate{
		newCandidate(Driving, base, base*1.2+float64(h%10), base*180+float64(h%100)),
		newCandidate(Bicycling, base*1.1, base*3.5+float64(h%15), 0),
		newCandidate(Transit, base*1.2, base*2.8+float64(h%20), base*45+float64(h%30)),
		newCandidate(Walking, base*0.9, base*12+float64(h%25), 0),
	}
}

// newCandidate rounds time and emissions, scores them, and rounds the
// distance for display last.
func newCandidate(mode Mode, distanceKm, minutes, co2g float64) RouteCandidate {
	t := int(math.Round(minutes))
	c := int(math.Round(co2g))

	return RouteCandidate{
		Mode:       mode,
		DistanceKm: roundTo(distanceKm, 1),
		TimeMin:    t,
		CO2g:       c,
		Score:      EcoScore(t, c),
	}
}

// Rank returns the n best candidates in ascending score order.
// Equal scores keep their input order. n <= 0 returns every candidate.
// The input slice is not modified.
func Rank(candidates []RouteCandidate, n int) []RouteCandidate {
	ranked := slices.Clone(candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
