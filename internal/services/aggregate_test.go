package services

import (
	"testing"

	"propsearch-bknd/internal/models"
)

func fptr(v float64) *float64 { return &v }

func TestBuildBucketsGrouping(t *testing.T) {
	// Two tight groups far apart; precision 4 cells (~39 km) keep each
	// group in one cell.
	points := []models.PropertyPoint{
		{ID: "a", Latitude: 19.40, Longitude: -99.10, Price: fptr(100)},
		{ID: "b", Latitude: 19.41, Longitude: -99.11, Price: fptr(300)},
		{ID: "c", Latitude: 19.42, Longitude: -99.12, Price: fptr(200)},
		{ID: "d", Latitude: 25.67, Longitude: -100.31, Price: fptr(500)},
	}

	buckets := BuildBuckets(points, 4)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}

	// Sorted count-descending: the 3-member group first.
	big := buckets[0]
	if big.Count != 3 {
		t.Fatalf("expected count 3, got %d", big.Count)
	}
	wantLat := (19.40 + 19.41 + 19.42) / 3
	wantLng := (-99.10 - 99.11 - 99.12) / 3
	if !almostEqual(big.Lat, wantLat) || !almostEqual(big.Lng, wantLng) {
		t.Errorf("centroid mismatch: got (%f, %f), want (%f, %f)", big.Lat, big.Lng, wantLat, wantLng)
	}
	if big.Bounds == nil {
		t.Fatal("expected member bounds")
	}
	if big.Bounds.MinLat != 19.40 || big.Bounds.MaxLat != 19.42 ||
		big.Bounds.MinLng != -99.12 || big.Bounds.MaxLng != -99.10 {
		t.Errorf("member bounds mismatch: %+v", big.Bounds)
	}
	if *big.MinPrice != 100 || *big.MaxPrice != 300 || *big.AvgPrice != 200 {
		t.Errorf("price stats mismatch: min %v max %v avg %v", *big.MinPrice, *big.MaxPrice, *big.AvgPrice)
	}
}

func TestBuildBucketsZeroPriceIsAValue(t *testing.T) {
	points := []models.PropertyPoint{
		{ID: "a", Latitude: 19.40, Longitude: -99.10, Price: fptr(0)},
		{ID: "b", Latitude: 19.40, Longitude: -99.10, Price: fptr(100)},
		{ID: "c", Latitude: 19.40, Longitude: -99.10, Price: nil},
	}

	buckets := BuildBuckets(points, 4)
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	b := buckets[0]
	if b.Count != 3 {
		t.Errorf("nil-priced member must still count: got %d", b.Count)
	}
	if *b.MinPrice != 0 {
		t.Errorf("price 0 must not be filtered: min %v", *b.MinPrice)
	}
	if *b.AvgPrice != 50 {
		t.Errorf("avg over priced members only: got %v", *b.AvgPrice)
	}
}

func TestBuildBucketsEmptyInput(t *testing.T) {
	if got := BuildBuckets(nil, 4); len(got) != 0 {
		t.Fatalf("no members, no buckets: got %d", len(got))
	}
}

func TestBuildBucketsDeterministicOrder(t *testing.T) {
	points := []models.PropertyPoint{
		{ID: "a", Latitude: 19.40, Longitude: -99.10},
		{ID: "b", Latitude: 25.67, Longitude: -100.31},
		{ID: "c", Latitude: 20.67, Longitude: -103.35},
	}

	first := BuildBuckets(points, 4)
	for i := 0; i < 5; i++ {
		again := BuildBuckets(points, 4)
		if len(again) != len(first) {
			t.Fatal("bucket count changed between runs")
		}
		for j := range again {
			if again[j].ID != first[j].ID {
				t.Fatalf("bucket order changed between runs: %s vs %s", again[j].ID, first[j].ID)
			}
		}
	}
}

func TestSyntheticBucketsSumExact(t *testing.T) {
	vp := models.Viewport{North: 20.0, South: 19.0, East: -99.0, West: -100.0, Zoom: 6}
	region := models.Bounds{MinLat: 14, MaxLat: 33, MinLng: -118, MaxLng: -86}

	buckets := SyntheticBuckets(vp, region, 12345, 4, 3)
	sum := 0
	for _, b := range buckets {
		if b.Source != models.SourceSynthetic {
			t.Fatalf("expected synthetic tag, got %s", b.Source)
		}
		sum += b.Count
	}
	if sum != 12345 {
		t.Fatalf("grid sum %d != total 12345", sum)
	}
}

func TestSyntheticBucketsClippedToRegion(t *testing.T) {
	// Viewport hangs over the region edge; buckets stay inside it.
	vp := models.Viewport{North: 40.0, South: 30.0, East: -85.0, West: -90.0, Zoom: 5}
	region := models.Bounds{MinLat: 14, MaxLat: 33, MinLng: -118, MaxLng: -86}

	for _, b := range SyntheticBuckets(vp, region, 100, 2, 3) {
		if b.Lat > 33 || b.Lng > -86 {
			t.Fatalf("bucket outside region: (%f, %f)", b.Lat, b.Lng)
		}
	}
}

func TestSyntheticBucketsOutsideRegion(t *testing.T) {
	vp := models.Viewport{North: 60.0, South: 50.0, East: 10.0, West: 0.0, Zoom: 5}
	region := models.Bounds{MinLat: 14, MaxLat: 33, MinLng: -118, MaxLng: -86}

	if got := SyntheticBuckets(vp, region, 100, 2, 3); got != nil {
		t.Fatalf("expected nil outside the region, got %d buckets", len(got))
	}
}

func TestSyntheticBucketsZeroTotal(t *testing.T) {
	vp := models.Viewport{North: 20.0, South: 19.0, East: -99.0, West: -100.0, Zoom: 6}
	if got := SyntheticBuckets(vp, models.Bounds{}, 0, 4, 3); got != nil {
		t.Fatalf("expected nil for zero total, got %d buckets", len(got))
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
