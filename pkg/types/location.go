package types

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const earthRadiusKm = 6371.0

// Location is a named point on the map. Coordinates arrive as decimal
// strings.
type Location struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Latitude    decimal.Decimal `json:"latitude"`
	Longitude   decimal.Decimal `json:"longitude"`
}

// Point returns the coordinates as floats.
func (l Location) Point() (lat, lng float64) {
	return l.Latitude.InexactFloat64(), l.Longitude.InexactFloat64()
}

// Validate checks the coordinate ranges.
func (l Location) Validate() error {
	lat, lng := l.Point()
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %s out of range", l.Latitude)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %s out of range", l.Longitude)
	}
	return nil
}

// DistanceKm is the great-circle distance to (lat, lng).
func (l Location) DistanceKm(lat, lng float64) float64 {
	fromLat, fromLng := l.Point()
	dLat := radians(lat - fromLat)
	dLng := radians(lng - fromLng)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(fromLat))*math.Cos(radians(lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
