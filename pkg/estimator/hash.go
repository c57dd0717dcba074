package estimator

import "unicode/utf16"

// HashFunc derives the route hash from a pair of trimmed addresses.
type HashFunc func(from, to string) int64

// RouteHash computes the rolling hash of from+to.
//
// The accumulation runs over UTF-16 code units with h = h*31 + c, truncated
// to a signed 32-bit integer at every step. The absolute value is returned
// widened to int64 so that |MinInt32| is representable.
func RouteHash(from, to string) int64 {
	var h int32
	for _, c := range utf16.Encode([]rune(from + to)) {
		h = h*31 + int32(c)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}
