package models

import (
	"fmt"
	"math"
)

// Search modes. Below the zoom threshold the map payload is buckets, at or
// above it the raw pins are cheap enough to send directly.
const (
	ModeClusters   = "clusters"
	ModeProperties = "properties"
)

const (
	MinZoomLevel = 0
	MaxZoomLevel = 22
)

// Absolute ceilings applied to numeric filters. Unclamped ranges are a
// resource-exhaustion vector (max_price=1e300 forces a full-table range
// scan), so every range is clamped before it reaches the store.
const (
	MaxFilterPrice    = 1e9
	MaxFilterRooms    = 20
	MaxFilterAreaM2   = 1e6
	MaxPageNumber     = 1000
	MaxPageLimit      = 100
	DefaultPageLimit  = 20
	PaginationKeyset  = "keyset"
	PaginationOffset  = "offset"
	DirectionNext     = "next"
	DirectionPrev     = "prev"
)

// Viewport is the visible map box plus zoom. Transient, one per request.
type Viewport struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
	Zoom  int     `json:"zoom"`
}

// SearchFilters is the optional predicate shared verbatim by the map and the
// list queries. Zero values mean "not set"; pointers distinguish an absent
// range bound from an explicit zero.
type SearchFilters struct {
	ListingTypes  []string `json:"listing_types,omitempty"`
	PropertyTypes []string `json:"property_types,omitempty"`
	MinPrice      *float64 `json:"min_price,omitempty"`
	MaxPrice      *float64 `json:"max_price,omitempty"`
	MinBedrooms   *int     `json:"min_bedrooms,omitempty"`
	MaxBedrooms   *int     `json:"max_bedrooms,omitempty"`
	MinBathrooms  *int     `json:"min_bathrooms,omitempty"`
	MaxBathrooms  *int     `json:"max_bathrooms,omitempty"`
	MinAreaM2     *float64 `json:"min_area_m2,omitempty"`
	MaxAreaM2     *float64 `json:"max_area_m2,omitempty"`
}

// PrecomputedCompatible reports whether the precomputed aggregate can serve
// this filter set. The aggregate is dimensioned by listing and property type
// only, so any numeric range forces the live path.
func (f *SearchFilters) PrecomputedCompatible() bool {
	if f == nil {
		return true
	}
	return f.MinPrice == nil && f.MaxPrice == nil &&
		f.MinBedrooms == nil && f.MaxBedrooms == nil &&
		f.MinBathrooms == nil && f.MaxBathrooms == nil &&
		f.MinAreaM2 == nil && f.MaxAreaM2 == nil
}

// SearchRequest is the validated input of one search call.
type SearchRequest struct {
	Viewport  Viewport
	Filters   SearchFilters
	Page      int
	Limit     int
	Cursor    string
	Direction string
	// UseOffset selects the legacy offset path. Set only when the caller
	// sent an explicit page parameter; keyset is the default.
	UseOffset bool
}

var validListingTypes = map[string]bool{ListingSale: true, ListingRent: true}

var validPropertyTypes = map[string]bool{
	"house": true, "apartment": true, "land": true, "office": true, "commercial": true,
}

// Validate checks bounds, zoom, filters and pagination, clamping numeric
// ranges to their ceilings. It fails fast on the first offending field and
// never partially applies a filter set.
func (r *SearchRequest) Validate() error {
	v := &r.Viewport
	for _, c := range []struct {
		name string
		val  float64
	}{
		{"north", v.North}, {"south", v.South}, {"east", v.East}, {"west", v.West},
	} {
		if math.IsNaN(c.val) || math.IsInf(c.val, 0) {
			return &ValidationError{Field: c.name, Message: "must be a finite number"}
		}
	}
	if v.North <= v.South {
		return &ValidationError{Field: "north", Message: "north must be greater than south"}
	}
	if v.East <= v.West {
		return &ValidationError{Field: "east", Message: "east must be greater than west"}
	}
	if math.Abs(v.North) > 90 || math.Abs(v.South) > 90 {
		return &ValidationError{Field: "south", Message: "latitude out of range [-90, 90]"}
	}
	if math.Abs(v.East) > 180 || math.Abs(v.West) > 180 {
		return &ValidationError{Field: "west", Message: "longitude out of range [-180, 180]"}
	}
	if v.Zoom < MinZoomLevel || v.Zoom > MaxZoomLevel {
		return &ValidationError{
			Field:   "zoom",
			Message: fmt.Sprintf("zoom must be an integer in [%d, %d]", MinZoomLevel, MaxZoomLevel),
		}
	}

	if err := r.Filters.validate(); err != nil {
		return err
	}

	if r.Direction != "" && r.Direction != DirectionNext && r.Direction != DirectionPrev {
		return &ValidationError{Field: "direction", Message: "direction must be 'next' or 'prev'"}
	}
	if r.Page < 0 {
		return &ValidationError{Field: "page", Message: "page must be positive"}
	}
	if r.Page == 0 {
		r.Page = 1
	}
	if r.Page > MaxPageNumber {
		r.Page = MaxPageNumber
	}
	if r.Limit < 0 {
		return &ValidationError{Field: "limit", Message: "limit must be positive"}
	}
	if r.Limit == 0 {
		r.Limit = DefaultPageLimit
	}
	if r.Limit > MaxPageLimit {
		r.Limit = MaxPageLimit
	}
	return nil
}

func (f *SearchFilters) validate() error {
	for _, lt := range f.ListingTypes {
		if !validListingTypes[lt] {
			return &ValidationError{Field: "listingType", Message: "unknown listing type: " + lt}
		}
	}
	for _, pt := range f.PropertyTypes {
		if !validPropertyTypes[pt] {
			return &ValidationError{Field: "propertyType", Message: "unknown property type: " + pt}
		}
	}

	clampFloat := func(field string, p *float64, ceiling float64) (*float64, error) {
		if p == nil {
			return nil, nil
		}
		if math.IsNaN(*p) || math.IsInf(*p, 0) {
			return nil, &ValidationError{Field: field, Message: "must be a finite number"}
		}
		if *p < 0 {
			return nil, &ValidationError{Field: field, Message: "must not be negative"}
		}
		if *p > ceiling {
			v := ceiling
			return &v, nil
		}
		return p, nil
	}
	clampInt := func(field string, p *int, ceiling int) (*int, error) {
		if p == nil {
			return nil, nil
		}
		if *p < 0 {
			return nil, &ValidationError{Field: field, Message: "must not be negative"}
		}
		if *p > ceiling {
			v := ceiling
			return &v, nil
		}
		return p, nil
	}

	var err error
	if f.MinPrice, err = clampFloat("minPrice", f.MinPrice, MaxFilterPrice); err != nil {
		return err
	}
	if f.MaxPrice, err = clampFloat("maxPrice", f.MaxPrice, MaxFilterPrice); err != nil {
		return err
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return &ValidationError{Field: "minPrice", Message: "minPrice must not exceed maxPrice"}
	}
	if f.MinBedrooms, err = clampInt("minBedrooms", f.MinBedrooms, MaxFilterRooms); err != nil {
		return err
	}
	if f.MaxBedrooms, err = clampInt("maxBedrooms", f.MaxBedrooms, MaxFilterRooms); err != nil {
		return err
	}
	if f.MinBathrooms, err = clampInt("minBathrooms", f.MinBathrooms, MaxFilterRooms); err != nil {
		return err
	}
	if f.MaxBathrooms, err = clampInt("maxBathrooms", f.MaxBathrooms, MaxFilterRooms); err != nil {
		return err
	}
	if f.MinAreaM2, err = clampFloat("minArea", f.MinAreaM2, MaxFilterAreaM2); err != nil {
		return err
	}
	if f.MaxAreaM2, err = clampFloat("maxArea", f.MaxAreaM2, MaxFilterAreaM2); err != nil {
		return err
	}
	return nil
}

// SearchMeta describes how the result was produced.
type SearchMeta struct {
	RequestID  string `json:"request_id"`
	DurationMS int64  `json:"duration_ms"`
	Precision  int    `json:"precision,omitempty"`
	Source     string `json:"source"`
	Cached     bool   `json:"cached,omitempty"`
}

// PageMeta carries either offset or keyset pagination state for the list view.
type PageMeta struct {
	Mode       string `json:"mode"` // keyset | offset
	Page       int    `json:"page,omitempty"`
	Limit      int    `json:"limit"`
	Pages      int    `json:"pages,omitempty"`
	NextCursor string `json:"next_cursor,omitempty"`
	PrevCursor string `json:"prev_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// SearchResult is the response envelope. The one invariant the subsystem
// exists to protect: Total is derived from the same filtered predicate as
// MapData and ListItems, and in cluster mode equals the sum of bucket counts.
type SearchResult struct {
	Mode       string          `json:"mode"`
	MapBuckets []GeoBucket     `json:"mapData,omitempty"`
	MapPoints  []PropertyPoint `json:"mapPoints,omitempty"`
	ListItems  []Property      `json:"listItems"`
	Total      int             `json:"total"`
	Pagination PageMeta        `json:"pagination"`
	Meta       SearchMeta      `json:"meta"`
}
