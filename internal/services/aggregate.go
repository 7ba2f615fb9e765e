package services

import (
	"fmt"
	"sort"

	"propsearch-bknd/internal/geo"
	"propsearch-bknd/internal/models"
)

// The map payload comes from one of three aggregate sources, tried in
// order of fidelity: the precomputed geobucket table, a live group-by over
// raw points, and a synthetic grid when even the live path would be capped
// into meaninglessness. All three produce the same []GeoBucket shape, tagged
// with their source, so callers never branch on how buckets were built.

// BuildBuckets groups raw points into geohash cells at the given precision
// and computes each cell's aggregate. Buckets exist only where members do;
// a nil price is excluded from price stats but a zero price is a real value
// and counts. Output is sorted count-descending (id ascending on ties) so
// repeated identical requests render identically.
func BuildBuckets(points []models.PropertyPoint, precision int) []models.GeoBucket {
	type acc struct {
		count      int
		sumLat     float64
		sumLng     float64
		bounds     models.Bounds
		priced     int
		sumPrice   float64
		minPrice   float64
		maxPrice   float64
	}

	cells := make(map[string]*acc)
	for _, p := range points {
		key := geo.BucketKey(p.Latitude, p.Longitude, precision)
		a, ok := cells[key]
		if !ok {
			a = &acc{bounds: models.Bounds{
				MinLat: p.Latitude, MaxLat: p.Latitude,
				MinLng: p.Longitude, MaxLng: p.Longitude,
			}}
			cells[key] = a
		} else {
			a.bounds.Extend(p.Latitude, p.Longitude)
		}
		a.count++
		a.sumLat += p.Latitude
		a.sumLng += p.Longitude

		if p.Price != nil {
			if a.priced == 0 || *p.Price < a.minPrice {
				a.minPrice = *p.Price
			}
			if a.priced == 0 || *p.Price > a.maxPrice {
				a.maxPrice = *p.Price
			}
			a.sumPrice += *p.Price
			a.priced++
		}
	}

	buckets := make([]models.GeoBucket, 0, len(cells))
	for key, a := range cells {
		bounds := a.bounds
		b := models.GeoBucket{
			ID:        key,
			Precision: precision,
			Count:     a.count,
			Lat:       a.sumLat / float64(a.count),
			Lng:       a.sumLng / float64(a.count),
			Bounds:    &bounds,
			Source:    models.SourceLive,
		}
		if a.priced > 0 {
			minP, maxP, avgP := a.minPrice, a.maxPrice, a.sumPrice/float64(a.priced)
			b.MinPrice, b.MaxPrice, b.AvgPrice = &minP, &maxP, &avgP
		}
		buckets = append(buckets, b)
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].ID < buckets[j].ID
	})
	return buckets
}

// SyntheticBuckets spreads an approximate total over an N×N grid covering
// the viewport, clipped to the deployment region. These are presentation
// placeholders for low zoom when no real aggregate is affordable; the
// synthetic source tag tells clients not to treat them as authoritative
// geometry. The grid sum equals total exactly.
func SyntheticBuckets(vp models.Viewport, region models.Bounds, total, gridSize, precision int) []models.GeoBucket {
	if total <= 0 || gridSize <= 0 {
		return nil
	}

	north, south := vp.North, vp.South
	east, west := vp.East, vp.West
	if region.MaxLat > region.MinLat && region.MaxLng > region.MinLng {
		if north > region.MaxLat {
			north = region.MaxLat
		}
		if south < region.MinLat {
			south = region.MinLat
		}
		if east > region.MaxLng {
			east = region.MaxLng
		}
		if west < region.MinLng {
			west = region.MinLng
		}
	}
	if north <= south || east <= west {
		// Viewport entirely outside the region; nothing plausible to draw.
		return nil
	}

	cells := gridSize * gridSize
	counts := distribute(total, cells)
	latStep := (north - south) / float64(gridSize)
	lngStep := (east - west) / float64(gridSize)

	buckets := make([]models.GeoBucket, 0, cells)
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			count := counts[row*gridSize+col]
			if count == 0 {
				continue
			}
			cellSouth := south + float64(row)*latStep
			cellWest := west + float64(col)*lngStep
			buckets = append(buckets, models.GeoBucket{
				// Grid position makes the ID stable across identical
				// requests, so clients can diff markers on it.
				ID:        fmt.Sprintf("syn-%02d-%02d", row, col),
				Precision: precision,
				Count:     count,
				Lat:       cellSouth + latStep/2,
				Lng:       cellWest + lngStep/2,
				Bounds: &models.Bounds{
					MinLat: cellSouth, MaxLat: cellSouth + latStep,
					MinLng: cellWest, MaxLng: cellWest + lngStep,
				},
				Source: models.SourceSynthetic,
			})
		}
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].ID < buckets[j].ID
	})
	return buckets
}

// distribute splits total into n integer shares summing exactly to total.
func distribute(total, n int) []int {
	out := make([]int, n)
	base := total / n
	rem := total % n
	for i := range out {
		out[i] = base
		if i < rem {
			out[i]++
		}
	}
	return out
}
