package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"propsearch-bknd/internal/geo"
	"propsearch-bknd/internal/models"
	"propsearch-bknd/internal/services"
	"propsearch-bknd/internal/utils"
)

type SearchHandler struct {
	service *services.SearchService
	logr    *zap.Logger
}

func NewSearchHandler(svc *services.SearchService, logr *zap.Logger) *SearchHandler {
	return &SearchHandler{service: svc, logr: logr}
}

// GET /api/v1/properties/search
//
// Required: north, south, east, west, zoom. Everything else is optional;
// sending an explicit page selects the legacy offset path.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.Search(r.Context(), req)
	if err != nil {
		h.logr.Error("search failed", zap.Error(err), zap.Int("zoom", req.Viewport.Zoom))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/v1/properties/search/drilldown
//
// Pure camera math for a cluster click: lat, lng, zoom, plus the cluster's
// member box when one exists.
func (h *SearchHandler) Drilldown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := parseFloat(q.Get("lat"), "lat")
	if err != nil {
		writeError(w, err)
		return
	}
	lng, err := parseFloat(q.Get("lng"), "lng")
	if err != nil {
		writeError(w, err)
		return
	}
	zoom, err := parseInt(q.Get("zoom"), "zoom")
	if err != nil {
		writeError(w, err)
		return
	}
	if zoom < models.MinZoomLevel || zoom > models.MaxZoomLevel {
		writeError(w, &models.ValidationError{Field: "zoom", Message: "zoom out of range"})
		return
	}

	var bounds *models.Bounds
	if q.Get("minLat") != "" || q.Get("maxLat") != "" {
		b := models.Bounds{}
		for _, c := range []struct {
			key string
			dst *float64
		}{
			{"minLat", &b.MinLat}, {"maxLat", &b.MaxLat},
			{"minLng", &b.MinLng}, {"maxLng", &b.MaxLng},
		} {
			v, err := parseFloat(q.Get(c.key), c.key)
			if err != nil {
				writeError(w, err)
				return
			}
			*c.dst = v
		}
		bounds = &b
	}

	writeJSON(w, http.StatusOK, geo.DrillTarget(lat, lng, bounds, zoom))
}

// GET /api/v1/properties/{id}
func (h *SearchHandler) GetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	prop, err := h.service.GetProperty(r.Context(), id)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			h.logr.Error("property lookup failed", zap.Error(err), zap.String("id", id))
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}

func parseSearchRequest(r *http.Request) (*models.SearchRequest, error) {
	q := r.URL.Query()
	req := &models.SearchRequest{}

	for _, c := range []struct {
		key string
		dst *float64
	}{
		{"north", &req.Viewport.North}, {"south", &req.Viewport.South},
		{"east", &req.Viewport.East}, {"west", &req.Viewport.West},
	} {
		v, err := parseFloat(q.Get(c.key), c.key)
		if err != nil {
			return nil, err
		}
		*c.dst = v
	}
	zoom, err := parseInt(q.Get("zoom"), "zoom")
	if err != nil {
		return nil, err
	}
	req.Viewport.Zoom = zoom

	req.Filters.ListingTypes = utils.ParseQueryList(q, "listingType")
	req.Filters.PropertyTypes = utils.ParseQueryList(q, "propertyType")

	if req.Filters.MinPrice, err = parseOptFloat(q.Get("minPrice"), "minPrice"); err != nil {
		return nil, err
	}
	if req.Filters.MaxPrice, err = parseOptFloat(q.Get("maxPrice"), "maxPrice"); err != nil {
		return nil, err
	}
	if req.Filters.MinBedrooms, err = parseOptInt(q.Get("minBedrooms"), "minBedrooms"); err != nil {
		return nil, err
	}
	if req.Filters.MaxBedrooms, err = parseOptInt(q.Get("maxBedrooms"), "maxBedrooms"); err != nil {
		return nil, err
	}
	if req.Filters.MinBathrooms, err = parseOptInt(q.Get("minBathrooms"), "minBathrooms"); err != nil {
		return nil, err
	}
	if req.Filters.MaxBathrooms, err = parseOptInt(q.Get("maxBathrooms"), "maxBathrooms"); err != nil {
		return nil, err
	}
	if req.Filters.MinAreaM2, err = parseOptFloat(q.Get("minArea"), "minArea"); err != nil {
		return nil, err
	}
	if req.Filters.MaxAreaM2, err = parseOptFloat(q.Get("maxArea"), "maxArea"); err != nil {
		return nil, err
	}

	if pageStr := q.Get("page"); pageStr != "" {
		page, err := parseInt(pageStr, "page")
		if err != nil {
			return nil, err
		}
		req.Page = page
		req.UseOffset = true
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := parseInt(limitStr, "limit")
		if err != nil {
			return nil, err
		}
		req.Limit = limit
	}
	req.Cursor = q.Get("cursor")
	req.Direction = q.Get("direction")

	return req, nil
}

func parseFloat(s, field string) (float64, error) {
	if s == "" {
		return 0, &models.ValidationError{Field: field, Message: "required"}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &models.ValidationError{Field: field, Message: "must be a finite number"}
	}
	return v, nil
}

func parseInt(s, field string) (int, error) {
	if s == "" {
		return 0, &models.ValidationError{Field: field, Message: "required"}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &models.ValidationError{Field: field, Message: "must be an integer"}
	}
	return v, nil
}

func parseOptFloat(s, field string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseFloat(s, field)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseOptInt(s, field string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseInt(s, field)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// writeError maps the service error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var vErr *models.ValidationError
	var rlErr *models.RateLimitError
	var toErr *models.UpstreamTimeoutError

	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": vErr.Error(), "field": vErr.Field})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.As(err, &rlErr):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
	case errors.As(err, &toErr):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "search timed out, retry"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(data)
}
