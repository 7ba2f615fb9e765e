package geo

import (
	"math"

	"propsearch-bknd/internal/models"
)

// Camera is the drill-down target: where the map should fly when a cluster
// is clicked. The caller performs the transition; there are no side effects
// here.
type Camera struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom int     `json:"zoom"`
}

const (
	// MaxZoom caps every drill-down target.
	MaxZoom = 22

	// degenerateSpanDeg treats a member box below this span as a single
	// point (two listings in the same building, or a one-member cluster).
	degenerateSpanDeg = 0.0001

	// minSpanDeg expands tiny member boxes to roughly 300 m so the camera
	// fit never over-zooms into a sliver.
	minSpanDeg = 0.0027

	// degenerateZoomStep is how far to fly in when there is no usable box.
	degenerateZoomStep = 3

	// Camera fit assumes a fixed virtual viewport; the client clamps to its
	// real one after the transition.
	fitWidthPx   = 1024
	fitHeightPx  = 768
	fitPaddingPx = 48
	tileSizePx   = 256
)

// DrillTarget computes the viewport to fly to when a cluster is clicked.
// Degenerate, absent or non-finite member bounds fall back to a fixed zoom
// step toward the centroid. Otherwise the member box is expanded to a
// minimum span and fitted; the target always advances at least one zoom
// level so a click never turns into a pure pan.
func DrillTarget(centroidLat, centroidLng float64, bounds *models.Bounds, currentZoom int) Camera {
	if bounds == nil || !finiteBounds(bounds) || bounds.Span() < degenerateSpanDeg {
		return Camera{
			Lat:  centroidLat,
			Lng:  centroidLng,
			Zoom: clampZoom(currentZoom + degenerateZoomStep),
		}
	}

	b := expandToMinSpan(*bounds, minSpanDeg)

	zoom := fitZoom(b)
	if zoom <= currentZoom {
		zoom = currentZoom + 1
	}

	return Camera{
		Lat:  (b.MinLat + b.MaxLat) / 2,
		Lng:  (b.MinLng + b.MaxLng) / 2,
		Zoom: clampZoom(zoom),
	}
}

func finiteBounds(b *models.Bounds) bool {
	for _, v := range []float64{b.MinLat, b.MaxLat, b.MinLng, b.MaxLng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MaxLat >= b.MinLat && b.MaxLng >= b.MinLng
}

func expandToMinSpan(b models.Bounds, minSpan float64) models.Bounds {
	if latSpan := b.MaxLat - b.MinLat; latSpan < minSpan {
		pad := (minSpan - latSpan) / 2
		b.MinLat -= pad
		b.MaxLat += pad
	}
	if lngSpan := b.MaxLng - b.MinLng; lngSpan < minSpan {
		pad := (minSpan - lngSpan) / 2
		b.MinLng -= pad
		b.MaxLng += pad
	}
	return b
}

// fitZoom returns the highest integer zoom at which the box fits the
// virtual viewport under padding, using the web mercator projection.
func fitZoom(b models.Bounds) int {
	latFraction := (mercatorY(b.MinLat) - mercatorY(b.MaxLat))
	lngFraction := (b.MaxLng - b.MinLng) / 360

	usableW := float64(fitWidthPx - 2*fitPaddingPx)
	usableH := float64(fitHeightPx - 2*fitPaddingPx)

	latZoom := math.Log2(usableH / tileSizePx / latFraction)
	lngZoom := math.Log2(usableW / tileSizePx / lngFraction)

	zoom := math.Min(latZoom, lngZoom)
	if math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return MaxZoom
	}
	return int(math.Floor(zoom))
}

// mercatorY maps latitude to [0, 1] in tile space, north at 0.
func mercatorY(lat float64) float64 {
	sin := math.Sin(lat * math.Pi / 180)
	y := 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi
	if y < 0 {
		return 0
	}
	if y > 1 {
		return 1
	}
	return y
}

func clampZoom(z int) int {
	if z < 0 {
		return 0
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}
