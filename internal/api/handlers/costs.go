package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/incc/backend/internal/costing"
	"github.com/wonny/incc/backend/internal/incc"
	"github.com/wonny/incc/backend/pkg/logger"
)

// AdjustRequest is one cost to adjust
type AdjustRequest struct {
	RawCost       string `json:"raw_cost"`
	ReferenceArea string `json:"reference_area"`
	BaseDate      string `json:"base_date"`      // optional, YYYY-MM-DD or DD/MM/YYYY
	SimulatedArea string `json:"simulated_area"` // optional, pt-BR number
}

// AdjustResponse carries the adjusted value and its display form
type AdjustResponse struct {
	Result          costing.AdjustedCost `json:"result"`
	Display         string               `json:"display"`
	SeriesAvailable bool                 `json:"series_available"`
}

// CostHandler adjusts single costs
type CostHandler struct {
	store    SeriesStore
	adjuster *costing.Adjuster
	logger   *logger.Logger
}

// NewCostHandler creates a new cost handler
func NewCostHandler(store SeriesStore, adjuster *costing.Adjuster, log *logger.Logger) *CostHandler {
	return &CostHandler{
		store:    store,
		adjuster: adjuster,
		logger:   log.Component("cost_handler"),
	}
}

// Adjust rescales one cost to the latest INCC
// POST /api/costs/adjust
func (h *CostHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var base *time.Time
	if strings.TrimSpace(req.BaseDate) != "" {
		t, err := costing.ParseBaseDate(req.BaseDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'base_date'")
			return
		}
		base = &t
	}

	simulated, err := parseSimulatedArea(req.SimulatedArea)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'simulated_area'")
		return
	}

	series, available := loadOrEmpty(r, h.store, h.logger)
	result := h.adjuster.Adjust(costing.CostRecord{
		RawCost:       req.RawCost,
		ReferenceArea: req.ReferenceArea,
		BaseDate:      base,
	}, series, simulated)

	respondJSON(w, http.StatusOK, AdjustResponse{
		Result:          result,
		Display:         result.Display(),
		SeriesAvailable: available,
	})
}

// parseSimulatedArea reads an optional simulated area
func parseSimulatedArea(s string) (*decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	area, err := costing.ParseArea(s)
	if err != nil {
		return nil, err
	}
	return &area, nil
}

// loadOrEmpty degrades an unavailable series to an empty one, so every
// cell adjusts to missing instead of failing the request
func loadOrEmpty(r *http.Request, store SeriesStore, log *logger.Logger) (incc.Series, bool) {
	series, err := store.Load(r.Context())
	if err != nil {
		log.WithError(err).Warn("INCC series unavailable, adjusting without index")
		return incc.Series{}, false
	}
	return series, true
}
