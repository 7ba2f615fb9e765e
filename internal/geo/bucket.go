package geo

import (
	geohash "github.com/TomiHiltunen/geohash-golang"

	"propsearch-bknd/internal/models"
)

// DefaultPropertiesZoomThreshold is the zoom at which the map stops
// clustering and shows individual pins.
const DefaultPropertiesZoomThreshold = 14

// Resolver maps a zoom level to a search mode and a geohash precision.
// Pure and total over [0, 22]; invalid zoom is rejected by request
// validation before it gets here.
type Resolver struct {
	PropertiesZoomThreshold int
}

func NewResolver(threshold int) Resolver {
	if threshold <= 0 {
		threshold = DefaultPropertiesZoomThreshold
	}
	return Resolver{PropertiesZoomThreshold: threshold}
}

// Mode returns clusters below the threshold, properties at or above it.
func (r Resolver) Mode(zoom int) string {
	if zoom >= r.PropertiesZoomThreshold {
		return models.ModeProperties
	}
	return models.ModeClusters
}

// Precision is a monotonic step function of zoom: coarse cells when zoomed
// out, finer cells as the user zooms in. The breakpoints are tuning values;
// monotonicity and determinism are the contract.
func (r Resolver) Precision(zoom int) int {
	switch {
	case zoom <= 8:
		return 3
	case zoom <= 11:
		return 4
	case zoom <= 13:
		return 5
	default:
		return 6
	}
}

// BucketKey returns the geohash cell a coordinate falls into at the given
// precision.
func BucketKey(lat, lng float64, precision int) string {
	return geohash.EncodeWithPrecision(lat, lng, precision)
}

// CellBounds returns the geographic box of a geohash cell.
func CellBounds(key string) models.Bounds {
	box := geohash.Decode(key)
	sw := box.SouthWest()
	ne := box.NorthEast()
	return models.Bounds{
		MinLat: sw.Lat(),
		MaxLat: ne.Lat(),
		MinLng: sw.Lng(),
		MaxLng: ne.Lng(),
	}
}
