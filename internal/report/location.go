package report

import (
	"fmt"
	"math"
)

// DefaultPublicPrecision is the decimal precision of public coordinates.
// Four places is roughly an 11m grid: coarse enough to hide an exact
// address for anonymous reporters, fine enough for map clustering.
const DefaultPublicPrecision = 4

// PublicCoordinate rounds a raw coordinate pair to the given decimal
// precision for public display. Pure and idempotent: rounding an
// already-rounded coordinate yields the same value.
func PublicCoordinate(lat, lng float64, precision int) (float64, float64) {
	return roundTo(lat, precision), roundTo(lng, precision)
}

func roundTo(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}

// ValidateCoordinate rejects latitudes outside [-90,90] and longitudes
// outside [-180,180] before any mutation happens.
func ValidateCoordinate(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidInput, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidInput, lng)
	}
	return nil
}
