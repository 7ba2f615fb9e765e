package database

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/uptrace/bun"

	"propsearch-bknd/internal/models"
	"propsearch-bknd/internal/pagination"
)

// ListingsStore runs the search core's read queries against Postgres.
// Every query goes through applyPredicate, so the map payload, the count and
// the list page are always drawn from the identical filtered set.
type ListingsStore struct {
	db *bun.DB
}

func NewListingsStore(db *bun.DB) *ListingsStore {
	return &ListingsStore{db: db}
}

// applyPredicate is the single definition of the filtered dataset: active
// rows inside the viewport, narrowed by the optional filter set. Nullable
// attributes (bedrooms, bathrooms, area) drop NULL rows when their range is
// filtered, which matches how the listing form treats unanswered fields.
func (s *ListingsStore) applyPredicate(q *bun.SelectQuery, vp models.Viewport, f *models.SearchFilters) *bun.SelectQuery {
	q = q.Where("prop.status = ?", models.StatusActive).
		Where("prop.latitude BETWEEN ? AND ?", vp.South, vp.North).
		Where("prop.longitude BETWEEN ? AND ?", vp.West, vp.East)

	if f == nil {
		return q
	}
	if len(f.ListingTypes) > 0 {
		q = q.Where("prop.listing_type IN (?)", bun.In(f.ListingTypes))
	}
	if len(f.PropertyTypes) > 0 {
		q = q.Where("prop.property_type IN (?)", bun.In(f.PropertyTypes))
	}
	if f.MinPrice != nil {
		q = q.Where("prop.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("prop.price <= ?", *f.MaxPrice)
	}
	if f.MinBedrooms != nil {
		q = q.Where("prop.bedrooms >= ?", *f.MinBedrooms)
	}
	if f.MaxBedrooms != nil {
		q = q.Where("prop.bedrooms <= ?", *f.MaxBedrooms)
	}
	if f.MinBathrooms != nil {
		q = q.Where("prop.bathrooms >= ?", *f.MinBathrooms)
	}
	if f.MaxBathrooms != nil {
		q = q.Where("prop.bathrooms <= ?", *f.MaxBathrooms)
	}
	if f.MinAreaM2 != nil {
		q = q.Where("prop.area_m2 >= ?", *f.MinAreaM2)
	}
	if f.MaxAreaM2 != nil {
		q = q.Where("prop.area_m2 <= ?", *f.MaxAreaM2)
	}
	return q
}

// PointsInBounds returns the slim map projection, capped at limit.
func (s *ListingsStore) PointsInBounds(ctx context.Context, vp models.Viewport, f *models.SearchFilters, limit int) ([]models.PropertyPoint, error) {
	var pts []models.PropertyPoint
	q := s.db.NewSelect().
		Model((*models.Property)(nil)).
		Column("id", "latitude", "longitude", "price")
	q = s.applyPredicate(q, vp, f).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if err := q.Scan(ctx, &pts); err != nil {
		return nil, err
	}
	return pts, nil
}

// CountInBounds is the authoritative total for the filtered set.
func (s *ListingsStore) CountInBounds(ctx context.Context, vp models.Viewport, f *models.SearchFilters) (int, error) {
	q := s.db.NewSelect().Model((*models.Property)(nil))
	return s.applyPredicate(q, vp, f).Count(ctx)
}

// PageInBounds is the legacy offset page, retained for existing integrations
// with shallow result sets.
func (s *ListingsStore) PageInBounds(ctx context.Context, vp models.Viewport, f *models.SearchFilters, page, limit int) ([]models.Property, error) {
	var rows []models.Property
	q := s.db.NewSelect().Model(&rows)
	q = s.applyPredicate(q, vp, f).
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit)
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

// KeysetInBounds pages by the (created_at, id) key. Rows come back in
// display order (created_at DESC, id DESC). The caller passes limit+1 to
// probe for more pages; for direction=next the probe row is the last
// element, for prev it is the first.
func (s *ListingsStore) KeysetInBounds(ctx context.Context, vp models.Viewport, f *models.SearchFilters, cur *pagination.Cursor, direction string, limit int) ([]models.Property, error) {
	var rows []models.Property
	q := s.db.NewSelect().Model(&rows)
	q = s.applyPredicate(q, vp, f)

	if cur != nil && direction == models.DirectionPrev {
		q = q.Where("(prop.created_at, prop.id) > (?, ?)", cur.CreatedAt, cur.ID).
			Order("created_at ASC").
			Order("id ASC").
			Limit(limit)
		if err := q.Scan(ctx); err != nil {
			return nil, err
		}
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
		return rows, nil
	}

	if cur != nil {
		q = q.Where("(prop.created_at, prop.id) < (?, ?)", cur.CreatedAt, cur.ID)
	}
	q = q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

// BucketsInBounds reads the precomputed aggregate. Rows are dimensioned by
// (listing_type, property_type); matching rows of one cell are merged into
// a single bucket using the stored coordinate sums, so centroids stay exact.
// ErrNoAggregate when the table has no coverage for the cell set.
func (s *ListingsStore) BucketsInBounds(ctx context.Context, vp models.Viewport, precision int, f *models.SearchFilters) ([]models.GeoBucket, error) {
	var rows []models.BucketRow
	q := s.db.NewSelect().Model(&rows).
		Where("pgb.precision = ?", precision).
		Where("pgb.max_lat >= ? AND pgb.min_lat <= ?", vp.South, vp.North).
		Where("pgb.max_lng >= ? AND pgb.min_lng <= ?", vp.West, vp.East)

	if f != nil && len(f.ListingTypes) > 0 {
		q = q.Where("pgb.listing_type IN (?)", bun.In(f.ListingTypes))
	}
	if f != nil && len(f.PropertyTypes) > 0 {
		q = q.Where("pgb.property_type IN (?)", bun.In(f.PropertyTypes))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, models.ErrNoAggregate
	}

	merged := make(map[string]*models.GeoBucket)
	sums := make(map[string][2]float64)
	for _, r := range rows {
		b, ok := merged[r.Geohash]
		if !ok {
			b = &models.GeoBucket{
				ID:        r.Geohash,
				Precision: r.Precision,
				Bounds: &models.Bounds{
					MinLat: r.MinLat, MaxLat: r.MaxLat,
					MinLng: r.MinLng, MaxLng: r.MaxLng,
				},
				Source: models.SourcePrecomputed,
			}
			merged[r.Geohash] = b
		} else {
			b.Bounds.Extend(r.MinLat, r.MinLng)
			b.Bounds.Extend(r.MaxLat, r.MaxLng)
		}
		b.Count += r.Count
		sum := sums[r.Geohash]
		sum[0] += r.SumLat
		sum[1] += r.SumLng
		sums[r.Geohash] = sum

		b.MinPrice = mergeMin(b.MinPrice, r.MinPrice)
		b.MaxPrice = mergeMax(b.MaxPrice, r.MaxPrice)
	}

	buckets := make([]models.GeoBucket, 0, len(merged))
	for key, b := range merged {
		if b.Count <= 0 {
			continue
		}
		sum := sums[key]
		b.Lat = sum[0] / float64(b.Count)
		b.Lng = sum[1] / float64(b.Count)
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].ID < buckets[j].ID
	})
	return buckets, nil
}

// GetProperty returns one active listing by id.
func (s *ListingsStore) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	prop := new(models.Property)
	err := s.db.NewSelect().Model(prop).
		Where("prop.id = ?", id).
		Where("prop.status = ?", models.StatusActive).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return prop, nil
}

func mergeMin(a, b *float64) *float64 {
	if b == nil {
		return a
	}
	if a == nil || *b < *a {
		v := *b
		return &v
	}
	return a
}

func mergeMax(a, b *float64) *float64 {
	if b == nil {
		return a
	}
	if a == nil || *b > *a {
		v := *b
		return &v
	}
	return a
}
