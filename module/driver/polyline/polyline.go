// Package polyline implements the compact encoded-polyline format used by
// mapping and directions services: coordinates are stored as deltas in units
// of 1e-5 degrees, zig-zag encoded and split into 5-bit groups, each group
// offset by 63 into printable ASCII with 0x20 as the continuation bit.
package polyline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
)

const (
	precision    = 1e5
	charOffset   = 63
	chunkMask    = 0x1f
	continuation = 0x20
)

var ErrTruncated = errors.New("polyline: truncated input")

// Decode returns the coordinates encoded in s, one per (lat, lon) delta pair.
func Decode(s string) ([]domain.Coordinate, error) {
	var (
		path     []domain.Coordinate
		lat, lon int64
	)

	for i := 0; i < len(s); {
		dLat, n, err := decodeValue(s, i)
		if err != nil {
			return nil, err
		}
		i = n

		dLon, n, err := decodeValue(s, i)
		if err != nil {
			return nil, err
		}
		i = n

		lat += dLat
		lon += dLon
		path = append(path, domain.Coordinate{
			Lat: float64(lat) / precision,
			Lon: float64(lon) / precision,
		})
	}
	return path, nil
}

func decodeValue(s string, i int) (int64, int, error) {
	var (
		result int64
		shift  uint
	)
	for {
		if i >= len(s) {
			return 0, i, ErrTruncated
		}
		b := int64(s[i]) - charOffset
		if b < 0 || b > 0x3f {
			return 0, i, fmt.Errorf("polyline: invalid byte %q at %d", s[i], i)
		}
		if shift >= 60 {
			return 0, i, fmt.Errorf("polyline: value too long at %d", i)
		}
		i++
		result |= (b & chunkMask) << shift
		shift += 5
		if b < continuation {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), i, nil
	}
	return result >> 1, i, nil
}

// Encode is the inverse of Decode.
func Encode(path []domain.Coordinate) string {
	var (
		sb               strings.Builder
		prevLat, prevLon int64
	)
	for _, c := range path {
		lat := int64(math.Round(c.Lat * precision))
		lon := int64(math.Round(c.Lon * precision))
		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return sb.String()
}

func encodeValue(sb *strings.Builder, v int64) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= continuation {
		sb.WriteByte(byte((continuation | (u & chunkMask)) + charOffset))
		u >>= 5
	}
	sb.WriteByte(byte(u + charOffset))
}
