package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Listing lifecycle statuses. The search core only ever reads active rows;
// the rest of the lifecycle is owned by the listings admin upstream.
const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusExpired   = "expired"
)

const (
	ListingSale = "sale"
	ListingRent = "rent"
)

type Property struct {
	bun.BaseModel `bun:"table:app.properties,alias:prop"`

	ID           string     `bun:",pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Title        string     `json:"title"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	Price        float64    `json:"price"`
	Currency     string     `json:"currency"`
	ListingType  string     `json:"listing_type"`  // sale | rent
	PropertyType string     `json:"property_type"` // house | apartment | land | office | commercial
	Bedrooms     *int       `json:"bedrooms"`
	Bathrooms    *int       `json:"bathrooms"`
	AreaM2       *float64   `json:"area_m2"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

// PropertyPoint is the slim projection used for the map payload. The point
// query never needs full rows, only coordinates and a price for bucket stats.
type PropertyPoint struct {
	ID        string   `bun:"id" json:"id"`
	Latitude  float64  `bun:"latitude" json:"lat"`
	Longitude float64  `bun:"longitude" json:"lng"`
	Price     *float64 `bun:"price" json:"price"`
}

// BucketRow is one row of the precomputed geobucket aggregate. The table is
// refreshed by an external job; the core treats it as read-only. Rows are
// keyed per (geohash, listing_type, property_type) so dimension filters can
// be applied by selecting matching rows and merging.
type BucketRow struct {
	bun.BaseModel `bun:"table:app.property_geobuckets,alias:pgb"`

	Geohash      string    `bun:"geohash,pk" json:"geohash"`
	Precision    int       `bun:"precision,pk" json:"precision"`
	ListingType  string    `bun:"listing_type,pk" json:"listing_type"`
	PropertyType string    `bun:"property_type,pk" json:"property_type"`
	Count        int       `bun:"member_count" json:"count"`
	SumLat       float64   `bun:"sum_lat" json:"-"`
	SumLng       float64   `bun:"sum_lng" json:"-"`
	MinLat       float64   `bun:"min_lat" json:"min_lat"`
	MaxLat       float64   `bun:"max_lat" json:"max_lat"`
	MinLng       float64   `bun:"min_lng" json:"min_lng"`
	MaxLng       float64   `bun:"max_lng" json:"max_lng"`
	MinPrice     *float64  `bun:"min_price" json:"min_price"`
	MaxPrice     *float64  `bun:"max_price" json:"max_price"`
	RefreshedAt  time.Time `bun:"refreshed_at" json:"refreshed_at"`
}

// Bucket source tags, surfaced in the response meta so clients can tell a
// synthetic placeholder from a real aggregate.
const (
	SourcePrecomputed = "precomputed"
	SourceLive        = "live"
	SourceSynthetic   = "synthetic"
)

// GeoBucket is one map cluster: an aggregate over the properties sharing a
// geohash cell at the resolved precision.
type GeoBucket struct {
	ID        string   `json:"id"`
	Precision int      `json:"precision"`
	Count     int      `json:"count"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Bounds    *Bounds  `json:"bounds,omitempty"`
	MinPrice  *float64 `json:"min_price,omitempty"`
	MaxPrice  *float64 `json:"max_price,omitempty"`
	AvgPrice  *float64 `json:"avg_price,omitempty"`
	Source    string   `json:"source"`
}

// Bounds is a member bounding box: min/max over actual member coordinates,
// not the viewport. Drill-down depends on the distinction.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// Span returns the larger of the lat/lng extents in degrees.
func (b *Bounds) Span() float64 {
	latSpan := b.MaxLat - b.MinLat
	lngSpan := b.MaxLng - b.MinLng
	if latSpan > lngSpan {
		return latSpan
	}
	return lngSpan
}

// Extend grows the box to include the given coordinate.
func (b *Bounds) Extend(lat, lng float64) {
	if lat < b.MinLat {
		b.MinLat = lat
	}
	if lat > b.MaxLat {
		b.MaxLat = lat
	}
	if lng < b.MinLng {
		b.MinLng = lng
	}
	if lng > b.MaxLng {
		b.MaxLng = lng
	}
}
