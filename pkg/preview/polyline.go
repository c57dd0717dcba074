package preview

import (
	"errors"
	"math"
)

// EncodePolyline encodes points using Google's Polyline Algorithm Format
// (Polyline5) with 1e-5 degree precision.
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
func EncodePolyline(points []Location) string {
	if len(points) == 0 {
		return ""
	}

	result := make([]byte, 0, len(points)*12)

	prevLat := 0
	prevLon := 0

	for _, point := range points {
		lat := int(math.Round(point.Latitude * 1e5))
		lon := int(math.Round(point.Longitude * 1e5))

		result = append(result, encodeSigned(lat-prevLat)...)
		result = append(result, encodeSigned(lon-prevLon)...)

		prevLat = lat
		prevLon = lon
	}

	return string(result)
}

// DecodePolyline decodes a Polyline5 string.
func DecodePolyline(polyline string) ([]Location, error) {
	if len(polyline) == 0 {
		return []Location{}, nil
	}

	points := make([]Location, 0, len(polyline)/8+1)

	index := 0
	prevLat := 0
	prevLon := 0
	strLen := len(polyline)

	for index < strLen {
		lat, newIndex, err := decodeValue(polyline, index, prevLat)
		if err != nil {
			return nil, err
		}
		index = newIndex
		prevLat = lat

		if index >= strLen {
			return nil, errors.New("invalid polyline: unexpected end of string")
		}
		lon, newIndex, err := decodeValue(polyline, index, prevLon)
		if err != nil {
			return nil, err
		}
		index = newIndex
		prevLon = lon

		points = append(points, Location{
			Latitude:  float64(lat) * 1e-5,
			Longitude: float64(lon) * 1e-5,
		})
	}

	return points, nil
}

func decodeValue(polyline string, index, prev int) (int, int, error) {
	strLen := len(polyline)
	result := 0
	shift := 0

	for {
		if index >= strLen {
			return 0, 0, errors.New("invalid polyline: unexpected end of string")
		}
		b := int(polyline[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, 0, errors.New("invalid polyline: character out of range")
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	// Undo the zigzag sign encoding
	delta := (result >> 1) ^ (-(result & 1))

	return prev + delta, index, nil
}

func encodeSigned(value int) []byte {
	s := value << 1
	if value < 0 {
		s = ^s
	}

	var buf []byte
	for s >= 0x20 {
		buf = append(buf, byte((0x20|(s&0x1f))+63))
		s >>= 5
	}
	buf = append(buf, byte(s+63))
	return buf
}
