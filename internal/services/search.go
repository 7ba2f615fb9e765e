package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"propsearch-bknd/internal/cache"
	"propsearch-bknd/internal/config"
	"propsearch-bknd/internal/geo"
	"propsearch-bknd/internal/metrics"
	"propsearch-bknd/internal/models"
	"propsearch-bknd/internal/pagination"
)

// ListingsStore is the seam with the external listings database. Injected
// so the search flow is testable without Postgres.
type ListingsStore interface {
	PointsInBounds(ctx context.Context, vp models.Viewport, f *models.SearchFilters, limit int) ([]models.PropertyPoint, error)
	CountInBounds(ctx context.Context, vp models.Viewport, f *models.SearchFilters) (int, error)
	PageInBounds(ctx context.Context, vp models.Viewport, f *models.SearchFilters, page, limit int) ([]models.Property, error)
	KeysetInBounds(ctx context.Context, vp models.Viewport, f *models.SearchFilters, cur *pagination.Cursor, direction string, limit int) ([]models.Property, error)
	BucketsInBounds(ctx context.Context, vp models.Viewport, precision int, f *models.SearchFilters) ([]models.GeoBucket, error)
	GetProperty(ctx context.Context, id string) (*models.Property, error)
}

type SearchService struct {
	store    ListingsStore
	cache    cache.Cache
	cfg      *config.Config
	logr     *zap.Logger
	resolver geo.Resolver
}

func NewSearchService(store ListingsStore, c cache.Cache, cfg *config.Config, logr *zap.Logger) *SearchService {
	return &SearchService{
		store:    store,
		cache:    c,
		cfg:      cfg,
		logr:     logr,
		resolver: geo.NewResolver(cfg.PropertiesZoomThreshold),
	}
}

type mapOut struct {
	buckets []models.GeoBucket
	points  []models.PropertyPoint
	source  string
	capped  bool
	cached  bool
	err     error
}

type listOut struct {
	total int
	rows  []models.Property
	page  models.PageMeta
	err   error
}

// Search runs the viewport search: map payload and list payload fetched
// concurrently against the identical predicate, joined, and reconciled so
// the response carries exactly one total. Either query failing fails the
// whole request; a half-populated result is never returned.
func (s *SearchService) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResult, error) {
	start := time.Now()
	zoom := req.Viewport.Zoom
	mode := s.resolver.Mode(zoom)
	precision := s.resolver.Precision(zoom)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	mapCh := make(chan mapOut, 1)
	listCh := make(chan listOut, 1)
	go func() { mapCh <- s.fetchMapPayload(ctx, req, mode, precision) }()
	go func() { listCh <- s.fetchListPayload(ctx, req) }()
	m, l := <-mapCh, <-listCh

	if m.err != nil {
		return nil, classifyUpstream("map query", m.err)
	}
	if l.err != nil {
		return nil, classifyUpstream("list query", l.err)
	}

	res := &models.SearchResult{
		Mode:       mode,
		Total:      l.total,
		ListItems:  l.rows,
		Pagination: l.page,
	}
	meta := models.SearchMeta{
		RequestID: uuid.NewString(),
		Source:    m.source,
		Cached:    m.cached,
	}

	if mode == models.ModeClusters {
		meta.Precision = precision
		buckets := m.buckets

		if m.source == models.SourceLive && m.capped && zoom <= s.cfg.SyntheticMaxZoom {
			// Too many rows for the capped point query to represent at this
			// zoom; a coarse grid over the true total reads better than
			// clusters built from a truncated sample.
			region := models.Bounds{
				MinLat: s.cfg.RegionSouth, MaxLat: s.cfg.RegionNorth,
				MinLng: s.cfg.RegionWest, MaxLng: s.cfg.RegionEast,
			}
			buckets = SyntheticBuckets(req.Viewport, region, l.total, s.cfg.SyntheticGridSize, precision)
			meta.Source = models.SourceSynthetic
		} else {
			var drifted bool
			buckets, drifted = ReconcileBuckets(buckets, l.total)
			if drifted {
				metrics.ConsistencyDrift.Inc()
				s.logr.Warn("bucket sum diverged from list count, corrected",
					zap.Int("total", l.total),
					zap.String("source", m.source),
					zap.Bool("capped", m.capped),
					zap.Int("zoom", zoom),
				)
			}
		}
		res.MapBuckets = buckets
	} else {
		res.MapPoints = m.points
	}

	meta.DurationMS = time.Since(start).Milliseconds()
	res.Meta = meta

	metrics.SearchesTotal.WithLabelValues(mode, meta.Source).Inc()
	metrics.SearchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	return res, nil
}

// cachedMap is the cache encoding of one aggregate fetch.
type cachedMap struct {
	Buckets []models.GeoBucket `json:"buckets"`
	Source  string             `json:"source"`
	Capped  bool               `json:"capped"`
}

func (s *SearchService) fetchMapPayload(ctx context.Context, req *models.SearchRequest, mode string, precision int) mapOut {
	vp, f := req.Viewport, &req.Filters

	if mode == models.ModeProperties {
		pts, err := s.store.PointsInBounds(ctx, vp, f, s.cfg.MaxMapPoints)
		return mapOut{points: pts, source: models.SourceLive, err: err}
	}

	key := cache.SearchKey(viewportCell(vp), vp.Zoom, f)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var c cachedMap
			if json.Unmarshal(raw, &c) == nil {
				metrics.CacheHits.WithLabelValues("aggregate").Inc()
				return mapOut{buckets: c.Buckets, source: c.Source, capped: c.Capped, cached: true}
			}
		} else {
			metrics.CacheMisses.WithLabelValues("aggregate").Inc()
		}
	}

	out := s.fetchBuckets(ctx, vp, precision, f)
	if out.err == nil && s.cache != nil {
		if raw, err := json.Marshal(cachedMap{Buckets: out.buckets, Source: out.source, Capped: out.capped}); err == nil {
			_ = s.cache.Set(ctx, key, raw, s.cfg.CacheTTL)
		}
	}
	return out
}

// fetchBuckets tries the aggregate sources in order of fidelity:
// precomputed when the filter set is dimension-aligned, then live group-by
// over the capped point query. The synthetic source is applied after the
// join, once the authoritative total is known.
func (s *SearchService) fetchBuckets(ctx context.Context, vp models.Viewport, precision int, f *models.SearchFilters) mapOut {
	if f.PrecomputedCompatible() {
		buckets, err := s.store.BucketsInBounds(ctx, vp, precision, f)
		if err == nil {
			return mapOut{buckets: buckets, source: models.SourcePrecomputed}
		}
		if !errors.Is(err, models.ErrNoAggregate) {
			return mapOut{err: err}
		}
	}

	pts, err := s.store.PointsInBounds(ctx, vp, f, s.cfg.MaxMapPoints)
	if err != nil {
		return mapOut{err: err}
	}
	return mapOut{
		buckets: BuildBuckets(pts, precision),
		source:  models.SourceLive,
		capped:  len(pts) >= s.cfg.MaxMapPoints,
	}
}

func (s *SearchService) fetchListPayload(ctx context.Context, req *models.SearchRequest) listOut {
	vp, f := req.Viewport, &req.Filters

	total, err := s.store.CountInBounds(ctx, vp, f)
	if err != nil {
		return listOut{err: err}
	}

	if req.UseOffset {
		rows, err := s.store.PageInBounds(ctx, vp, f, req.Page, req.Limit)
		if err != nil {
			return listOut{err: err}
		}
		return listOut{
			total: total,
			rows:  rows,
			page: models.PageMeta{
				Mode:    models.PaginationOffset,
				Page:    req.Page,
				Limit:   req.Limit,
				Pages:   (total + req.Limit - 1) / req.Limit,
				HasMore: req.Page*req.Limit < total,
			},
		}
	}

	var cur *pagination.Cursor
	if req.Cursor != "" {
		cur, err = pagination.Decode(req.Cursor)
		if err != nil {
			return listOut{err: &models.ValidationError{Field: "cursor", Message: err.Error()}}
		}
	}
	dir := req.Direction
	if dir == "" || cur == nil {
		// Walking backward needs an anchor row; without a cursor the only
		// sensible answer is the first page.
		dir = models.DirectionNext
	}

	rows, err := s.store.KeysetInBounds(ctx, vp, f, cur, dir, req.Limit+1)
	if err != nil {
		return listOut{err: err}
	}

	pm := models.PageMeta{Mode: models.PaginationKeyset, Limit: req.Limit}
	hasMore := len(rows) > req.Limit
	if dir == models.DirectionPrev {
		// The probe row sits in front of the page when walking backward.
		if hasMore {
			rows = rows[1:]
		}
		if len(rows) > 0 {
			if hasMore {
				pm.PrevCursor = rowCursor(rows[0])
			}
			// We arrived here from a later page, so next always exists.
			pm.NextCursor = rowCursor(rows[len(rows)-1])
		}
	} else {
		if hasMore {
			rows = rows[:req.Limit]
		}
		if len(rows) > 0 {
			if hasMore {
				pm.NextCursor = rowCursor(rows[len(rows)-1])
			}
			if cur != nil {
				pm.PrevCursor = rowCursor(rows[0])
			}
		}
	}
	pm.HasMore = hasMore

	return listOut{total: total, rows: rows, page: pm}
}

// GetProperty returns one active listing for the detail view.
func (s *SearchService) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	prop, err := s.store.GetProperty(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, classifyUpstream("property lookup", err)
	}
	return prop, nil
}

func rowCursor(p models.Property) string {
	return pagination.Encode(pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID})
}

// viewportCell keys the cache on the quantized viewport corners, so only
// requests covering the same cells at the same zoom share an entry. Keying
// on the center alone would let a larger viewport serve a smaller one's
// bucket geometry.
func viewportCell(vp models.Viewport) string {
	return geo.BucketKey(vp.North, vp.West, 4) + ":" + geo.BucketKey(vp.South, vp.East, 4)
}

func classifyUpstream(op string, err error) error {
	var vErr *models.ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &models.UpstreamTimeoutError{Op: op, Err: err}
	}
	return &models.UpstreamQueryError{Op: op, Err: err}
}
