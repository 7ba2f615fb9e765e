package cache

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"propsearch-bknd/internal/models"
)

// ErrMiss is returned when a key is absent or expired. Callers treat any
// other error the same way; the cache is an optimization, never a source of
// truth.
var ErrMiss = errors.New("cache miss")

// Cache fronts the aggregate query with bounded staleness. Entries must be
// TTL-bounded, never served indefinitely.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close()
}

// SearchKey builds the cache key for one aggregate fetch. The viewport is
// reduced to its center cell at precision 4 so nearby pans share entries;
// zoom and the full filter set are hashed in so no two distinct predicates
// ever collide onto one entry.
func SearchKey(viewportCell string, zoom int, f *models.SearchFilters) string {
	return fmt.Sprintf("search:v1:%s:%d:%x", viewportCell, zoom, filterHash(f))
}

func filterHash(f *models.SearchFilters) uint64 {
	h := fnv.New64a()
	if f == nil {
		return h.Sum64()
	}
	write := func(s string) { _, _ = h.Write([]byte(s)); _, _ = h.Write([]byte{0}) }
	for _, lt := range f.ListingTypes {
		write("lt:" + lt)
	}
	for _, pt := range f.PropertyTypes {
		write("pt:" + pt)
	}
	writeF := func(tag string, p *float64) {
		if p != nil {
			write(fmt.Sprintf("%s:%g", tag, *p))
		}
	}
	writeI := func(tag string, p *int) {
		if p != nil {
			write(fmt.Sprintf("%s:%d", tag, *p))
		}
	}
	writeF("minp", f.MinPrice)
	writeF("maxp", f.MaxPrice)
	writeI("minbd", f.MinBedrooms)
	writeI("maxbd", f.MaxBedrooms)
	writeI("minba", f.MinBathrooms)
	writeI("maxba", f.MaxBathrooms)
	writeF("mina", f.MinAreaM2)
	writeF("maxa", f.MaxAreaM2)
	return h.Sum64()
}
