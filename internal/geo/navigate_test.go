package geo

import (
	"math"
	"testing"

	"propsearch-bknd/internal/models"
)

func TestDrillTargetDegenerateSingleMember(t *testing.T) {
	// A one-member cluster has a ~zero-span box: fly to the point at
	// current+3, never error.
	b := &models.Bounds{MinLat: 19.43, MaxLat: 19.43, MinLng: -99.13, MaxLng: -99.13}

	cam := DrillTarget(19.43, -99.13, b, 10)
	if cam.Zoom != 13 {
		t.Errorf("expected zoom 13, got %d", cam.Zoom)
	}
	if cam.Lat != 19.43 || cam.Lng != -99.13 {
		t.Errorf("expected centroid target, got (%f, %f)", cam.Lat, cam.Lng)
	}
}

func TestDrillTargetDegenerateCapsAtMaxZoom(t *testing.T) {
	cam := DrillTarget(19.43, -99.13, nil, 21)
	if cam.Zoom != MaxZoom {
		t.Errorf("expected cap at %d, got %d", MaxZoom, cam.Zoom)
	}
}

func TestDrillTargetAlwaysAdvancesZoom(t *testing.T) {
	boxes := []*models.Bounds{
		{MinLat: 19.30, MaxLat: 19.50, MinLng: -99.20, MaxLng: -99.00},
		{MinLat: 19.40, MaxLat: 19.41, MinLng: -99.14, MaxLng: -99.13},
		{MinLat: 14.0, MaxLat: 33.0, MinLng: -118.0, MaxLng: -86.0},
		nil,
	}
	for zoom := 0; zoom < MaxZoom; zoom++ {
		for _, b := range boxes {
			cam := DrillTarget(19.4, -99.1, b, zoom)
			if cam.Zoom <= zoom {
				t.Fatalf("bounds %+v at zoom %d: drill-down did not advance (got %d)", b, zoom, cam.Zoom)
			}
		}
	}
}

func TestDrillTargetNonFiniteBoundsFallsBack(t *testing.T) {
	b := &models.Bounds{MinLat: math.NaN(), MaxLat: 19.5, MinLng: -99.2, MaxLng: -99.0}

	cam := DrillTarget(19.4, -99.1, b, 8)
	if cam.Zoom != 11 {
		t.Errorf("expected degenerate branch (zoom 11), got %d", cam.Zoom)
	}
	if cam.Lat != 19.4 || cam.Lng != -99.1 {
		t.Errorf("expected centroid target, got (%f, %f)", cam.Lat, cam.Lng)
	}
}

func TestDrillTargetCentersOnMemberBox(t *testing.T) {
	b := &models.Bounds{MinLat: 19.30, MaxLat: 19.50, MinLng: -99.20, MaxLng: -99.00}

	// Centroid deliberately off-center: the camera should aim at the member
	// box, not the centroid, when the box is usable.
	cam := DrillTarget(19.31, -99.19, b, 5)
	if math.Abs(cam.Lat-19.40) > 1e-9 || math.Abs(cam.Lng-(-99.10)) > 1e-9 {
		t.Errorf("expected box center (19.40, -99.10), got (%f, %f)", cam.Lat, cam.Lng)
	}
}

func TestDrillTargetTinyBoxDoesNotOverZoom(t *testing.T) {
	// ~30 m box; expansion to the minimum span must keep the fit below max.
	b := &models.Bounds{MinLat: 19.4300, MaxLat: 19.4303, MinLng: -99.1302, MaxLng: -99.1300}

	cam := DrillTarget(19.43015, -99.1301, b, 10)
	if cam.Zoom > MaxZoom {
		t.Fatalf("zoom exceeds cap: %d", cam.Zoom)
	}
	if cam.Zoom <= 10 {
		t.Fatalf("drill-down did not advance: %d", cam.Zoom)
	}
}
