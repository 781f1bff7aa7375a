package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/incc/backend/internal/costing"
	"github.com/wonny/incc/backend/internal/incc"
	"github.com/wonny/incc/backend/pkg/logger"
)

// SeriesStore is what the handlers need from the INCC store
type SeriesStore interface {
	Load(ctx context.Context) (incc.Series, error)
	Refresh(ctx context.Context) (incc.Series, error)
	IsStale(series incc.Series) bool
}

// PointResponse is one index point as served by the API
type PointResponse struct {
	Date      string          `json:"date"`
	Value     decimal.Decimal `json:"value"`
	Formatted string          `json:"formatted"`
}

func newPointResponse(p incc.IndexPoint) PointResponse {
	return PointResponse{
		Date:      p.Date.Format(dateLayout),
		Value:     p.Value,
		Formatted: costing.FormatIndex(p.Value),
	}
}

// SeriesResponse is the full series
type SeriesResponse struct {
	Points []PointResponse `json:"points"`
	Stale  bool            `json:"stale"`
	Latest *PointResponse  `json:"latest,omitempty"`
}

// INCCHandler serves the index series
// ⭐ SSOT: INCC API 핸들러는 이 구조체에서만
type INCCHandler struct {
	store  SeriesStore
	logger *logger.Logger
}

// NewINCCHandler creates a new INCC handler
func NewINCCHandler(store SeriesStore, log *logger.Logger) *INCCHandler {
	return &INCCHandler{
		store:  store,
		logger: log.Component("incc_handler"),
	}
}

// load returns the series or writes the error response
func (h *INCCHandler) load(w http.ResponseWriter, r *http.Request) (incc.Series, bool) {
	series, err := h.store.Load(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("INCC series unavailable")
		respondError(w, http.StatusServiceUnavailable, "INCC series unavailable")
		return incc.Series{}, false
	}
	return series, true
}

// GetSeries returns every point of the series
// GET /api/incc/series
func (h *INCCHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	series, ok := h.load(w, r)
	if !ok {
		return
	}

	resp := SeriesResponse{
		Points: make([]PointResponse, 0, series.Len()),
		Stale:  h.store.IsStale(series),
	}
	for _, p := range series.Points() {
		resp.Points = append(resp.Points, newPointResponse(p))
	}
	if latest, ok := series.Latest(); ok {
		lp := newPointResponse(latest)
		resp.Latest = &lp
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetLatest returns the most recent point
// GET /api/incc/latest
func (h *INCCHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	series, ok := h.load(w, r)
	if !ok {
		return
	}

	latest, ok := series.Latest()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "INCC series is empty")
		return
	}
	respondJSON(w, http.StatusOK, newPointResponse(latest))
}

// GetAt returns the latest point at or before ?date=YYYY-MM-DD, or the
// earliest point when the date precedes the series
// GET /api/incc/at
func (h *INCCHandler) GetAt(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' (expected YYYY-MM-DD)")
		return
	}

	series, ok := h.load(w, r)
	if !ok {
		return
	}

	point, ok := series.AtOrBefore(date)
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "INCC series is empty")
		return
	}
	respondJSON(w, http.StatusOK, newPointResponse(point))
}

// Refresh regenerates the series from the publisher
// POST /api/incc/refresh
func (h *INCCHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	series, err := h.store.Refresh(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("INCC refresh failed")

		var parseErr *incc.ParseError
		if errors.As(err, &parseErr) {
			respondError(w, http.StatusBadGateway, "Publisher page had no INCC values")
			return
		}
		respondError(w, http.StatusBadGateway, "Failed to refresh INCC series")
		return
	}

	latest, _ := series.Latest()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "refreshed",
		"points": series.Len(),
		"latest": newPointResponse(latest),
	})
}
