package models

import (
	"errors"
	"math"
	"testing"
)

func validRequest() *SearchRequest {
	return &SearchRequest{
		Viewport: Viewport{North: 19.6, South: 19.2, East: -98.9, West: -99.3, Zoom: 12},
	}
}

func TestValidateAcceptsPlainViewport(t *testing.T) {
	r := validRequest()
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Page != 1 {
		t.Fatalf("page default, got %d", r.Page)
	}
	if r.Limit != DefaultPageLimit {
		t.Fatalf("limit default, got %d", r.Limit)
	}
}

func TestValidateRejectsBadViewport(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(r *SearchRequest)
		field string
	}{
		{"nan north", func(r *SearchRequest) { r.Viewport.North = math.NaN() }, "north"},
		{"inf west", func(r *SearchRequest) { r.Viewport.West = math.Inf(-1) }, "west"},
		{"inverted lat", func(r *SearchRequest) { r.Viewport.North, r.Viewport.South = 19.2, 19.6 }, "north"},
		{"inverted lng", func(r *SearchRequest) { r.Viewport.East, r.Viewport.West = -99.3, -98.9 }, "east"},
		{"lat overflow", func(r *SearchRequest) { r.Viewport.North = 95 }, "south"},
		{"lng overflow", func(r *SearchRequest) { r.Viewport.West = -190 }, "west"},
		{"zoom negative", func(r *SearchRequest) { r.Viewport.Zoom = -1 }, "zoom"},
		{"zoom too deep", func(r *SearchRequest) { r.Viewport.Zoom = 23 }, "zoom"},
		{"bad direction", func(r *SearchRequest) { r.Direction = "sideways" }, "direction"},
		{"negative page", func(r *SearchRequest) { r.Page = -2; r.UseOffset = true }, "page"},
		{"negative limit", func(r *SearchRequest) { r.Limit = -5 }, "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mut(r)
			err := r.Validate()
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, vErr.Field)
			}
		})
	}
}

func TestValidateClampsAbsurdRanges(t *testing.T) {
	r := validRequest()
	price := 1e15
	rooms := 400
	area := 1e12
	r.Filters.MaxPrice = &price
	r.Filters.MaxBedrooms = &rooms
	r.Filters.MaxAreaM2 = &area
	r.Page = 9999
	r.Limit = 500

	if err := r.Validate(); err != nil {
		t.Fatalf("absurd but well-formed input must clamp, not fail: %v", err)
	}
	if *r.Filters.MaxPrice != MaxFilterPrice {
		t.Fatalf("max price not clamped: %g", *r.Filters.MaxPrice)
	}
	if *r.Filters.MaxBedrooms != MaxFilterRooms {
		t.Fatalf("bedrooms not clamped: %d", *r.Filters.MaxBedrooms)
	}
	if *r.Filters.MaxAreaM2 != MaxFilterAreaM2 {
		t.Fatalf("area not clamped: %g", *r.Filters.MaxAreaM2)
	}
	if r.Page != MaxPageNumber {
		t.Fatalf("page not clamped: %d", r.Page)
	}
	if r.Limit != MaxPageLimit {
		t.Fatalf("limit not clamped: %d", r.Limit)
	}
}

func TestValidateFilterErrors(t *testing.T) {
	neg := -1.0
	nan := math.NaN()
	lo, hi := 500000.0, 100000.0

	r := validRequest()
	r.Filters.MinPrice = &neg
	if err := r.Validate(); err == nil {
		t.Fatal("negative price must be rejected")
	}

	r = validRequest()
	r.Filters.MaxAreaM2 = &nan
	if err := r.Validate(); err == nil {
		t.Fatal("NaN area must be rejected")
	}

	r = validRequest()
	r.Filters.MinPrice, r.Filters.MaxPrice = &lo, &hi
	err := r.Validate()
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "minPrice" {
		t.Fatalf("expected minPrice range error, got %v", err)
	}

	r = validRequest()
	r.Filters.ListingTypes = []string{"sale", "barter"}
	if err := r.Validate(); err == nil {
		t.Fatal("unknown listing type must be rejected")
	}

	r = validRequest()
	r.Filters.PropertyTypes = []string{"castle"}
	if err := r.Validate(); err == nil {
		t.Fatal("unknown property type must be rejected")
	}
}

func TestPrecomputedCompatible(t *testing.T) {
	f := &SearchFilters{ListingTypes: []string{ListingSale}, PropertyTypes: []string{"house"}}
	if !f.PrecomputedCompatible() {
		t.Fatal("type-only filters fit the aggregate dimensions")
	}
	min := 100000.0
	f.MinPrice = &min
	if f.PrecomputedCompatible() {
		t.Fatal("a price range cannot be served from the aggregate")
	}
}
