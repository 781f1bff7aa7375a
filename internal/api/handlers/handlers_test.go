package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/incc/backend/internal/costing"
	"github.com/wonny/incc/backend/internal/incc"
	"github.com/wonny/incc/backend/internal/matrix"
	"github.com/wonny/incc/backend/internal/registry"
	"github.com/wonny/incc/backend/pkg/logger"
)

type fakeStore struct {
	series     incc.Series
	loadErr    error
	refreshErr error
	stale      bool
	refreshes  int
}

func (s *fakeStore) Load(context.Context) (incc.Series, error) {
	return s.series, s.loadErr
}

func (s *fakeStore) Refresh(context.Context) (incc.Series, error) {
	s.refreshes++
	return s.series, s.refreshErr
}

func (s *fakeStore) IsStale(incc.Series) bool { return s.stale }

type fakeRegistry struct {
	snapshot registry.Snapshot
	err      error
}

func (r fakeRegistry) Load(context.Context) (registry.Snapshot, error) {
	return r.snapshot, r.err
}

func testSeries() incc.Series {
	return incc.NewSeries([]incc.IndexPoint{
		incc.NewIndexPoint(2024, time.January, decimal.NewFromInt(100)),
		incc.NewIndexPoint(2024, time.March, decimal.RequireFromString("1104.331")),
	})
}

func testAdjuster() *costing.Adjuster {
	return costing.NewAdjuster(costing.WithClock(func() time.Time {
		return time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)
	}))
}

func do(t *testing.T, h http.HandlerFunc, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestINCCHandler_GetSeries(t *testing.T) {
	h := NewINCCHandler(&fakeStore{series: testSeries(), stale: true}, logger.Nop())

	rec := do(t, h.GetSeries, http.MethodGet, "/api/incc/series", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SeriesResponse
	decode(t, rec, &resp)
	assert.Len(t, resp.Points, 2)
	assert.True(t, resp.Stale)
	require.NotNil(t, resp.Latest)
	assert.Equal(t, "2024-03-01", resp.Latest.Date)
	assert.Equal(t, "1.104,33", resp.Latest.Formatted)
}

func TestINCCHandler_Unavailable(t *testing.T) {
	h := NewINCCHandler(&fakeStore{loadErr: incc.ErrUnavailable}, logger.Nop())

	for _, fn := range []http.HandlerFunc{h.GetSeries, h.GetLatest} {
		rec := do(t, fn, http.MethodGet, "/", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	}
}

func TestINCCHandler_GetAt(t *testing.T) {
	h := NewINCCHandler(&fakeStore{series: testSeries()}, logger.Nop())

	tests := []struct {
		query    string
		wantCode int
		wantDate string
	}{
		{"?date=2024-02-15", http.StatusOK, "2024-01-01"},
		{"?date=2024-03-01", http.StatusOK, "2024-03-01"},
		{"?date=2019-01-01", http.StatusOK, "2024-01-01"},
		{"?date=15/02/2024", http.StatusBadRequest, ""},
		{"", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, h.GetAt, http.MethodGet, "/api/incc/at"+tt.query, nil)
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantDate != "" {
				var p PointResponse
				decode(t, rec, &p)
				assert.Equal(t, tt.wantDate, p.Date)
			}
		})
	}
}

func TestINCCHandler_Refresh(t *testing.T) {
	store := &fakeStore{series: testSeries()}
	h := NewINCCHandler(store, logger.Nop())

	rec := do(t, h.Refresh, http.MethodPost, "/api/incc/refresh", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.refreshes)

	store.refreshErr = &incc.ParseError{}
	rec = do(t, h.Refresh, http.MethodPost, "/api/incc/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCostHandler_Adjust(t *testing.T) {
	series := incc.NewSeries([]incc.IndexPoint{
		incc.NewIndexPoint(2024, time.January, decimal.NewFromInt(100)),
		incc.NewIndexPoint(2024, time.March, decimal.NewFromInt(110)),
	})
	h := NewCostHandler(&fakeStore{series: series}, testAdjuster(), logger.Nop())

	rec := do(t, h.Adjust, http.MethodPost, "/api/costs/adjust", AdjustRequest{
		RawCost:       "1.000,00",
		ReferenceArea: "10",
		BaseDate:      "2024-03-01",
		SimulatedArea: "50",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AdjustResponse
	decode(t, rec, &resp)
	assert.Equal(t, costing.StatusOK, resp.Result.Status)
	assert.Equal(t, "5500,00", resp.Display)
	assert.True(t, resp.SeriesAvailable)
}

func TestCostHandler_BadInput(t *testing.T) {
	h := NewCostHandler(&fakeStore{series: testSeries()}, testAdjuster(), logger.Nop())

	rec := do(t, h.Adjust, http.MethodPost, "/", AdjustRequest{RawCost: "1", ReferenceArea: "1", BaseDate: "someday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h.Adjust, http.MethodPost, "/", AdjustRequest{RawCost: "1", ReferenceArea: "1", SimulatedArea: "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	h.Adjust(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCostHandler_SeriesUnavailableDegrades(t *testing.T) {
	h := NewCostHandler(&fakeStore{loadErr: incc.ErrUnavailable}, testAdjuster(), logger.Nop())

	rec := do(t, h.Adjust, http.MethodPost, "/", AdjustRequest{RawCost: "1000", ReferenceArea: "10", BaseDate: "2023-01-01"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AdjustResponse
	decode(t, rec, &resp)
	assert.Equal(t, costing.StatusMissing, resp.Result.Status)
	assert.False(t, resp.SeriesAvailable)
}

func str(s string) *string { return &s }

func TestMatrixHandler_FromRegistry(t *testing.T) {
	reg := fakeRegistry{snapshot: registry.Snapshot{
		Projects: []registry.Project{{ID: "1", Sigla: "ALF"}, {ID: "2", Sigla: "BET"}},
		Budgets: []registry.Budget{
			{ProjectID: "1", BaseDate: "2024-03-01", Items: []registry.BudgetItem{{Level: 1, Code: "01", Description: "Item Fundação", Price: str("1000")}}},
			{ProjectID: "2", BaseDate: "2024-03-01", Items: []registry.BudgetItem{{Level: 1, Code: "01", Description: "Item Fundação", Price: str("2000")}}},
		},
		Areas: []registry.AreaEntry{{Name: "ALF - Alfa", Area: "10"}, {Name: "BET - Beta", Area: "10"}},
	}}
	series := incc.NewSeries([]incc.IndexPoint{
		incc.NewIndexPoint(2024, time.January, decimal.NewFromInt(100)),
		incc.NewIndexPoint(2024, time.March, decimal.NewFromInt(110)),
	})
	h := NewMatrixHandler(&fakeStore{series: series}, reg, matrix.NewBuilder(testAdjuster(), logger.Nop()), logger.Nop())

	rec := do(t, h.Build, http.MethodPost, "/api/matrix", MatrixRequest{Projects: []string{"BET", "ALF", "XYZ"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MatrixResponse
	decode(t, rec, &resp)
	assert.Equal(t, []string{"BET", "ALF"}, resp.Matrix.Columns)
	assert.Equal(t, []string{"XYZ"}, resp.UnknownProjects)
	require.Len(t, resp.Table, 4)
	assert.Equal(t, []string{"01", "Fundação", "220,00", "110,00", "165,00"}, resp.Table[3])
}

func TestMatrixHandler_InlineItems(t *testing.T) {
	h := NewMatrixHandler(&fakeStore{series: testSeries()}, nil, matrix.NewBuilder(testAdjuster(), logger.Nop()), logger.Nop())

	base := time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)
	rec := do(t, h.Build, http.MethodPost, "/api/matrix", MatrixRequest{
		Projects: []string{"A"},
		Items: []matrix.WorkItem{{Code: "01", Description: "x", Costs: map[string]costing.CostRecord{
			"A": {RawCost: "100", ReferenceArea: "4", BaseDate: &base},
		}}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MatrixResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Table, 4)
	assert.Equal(t, "25,00", resp.Table[3][2])
}

func TestMatrixHandler_Errors(t *testing.T) {
	builder := matrix.NewBuilder(testAdjuster(), logger.Nop())

	noRegistry := NewMatrixHandler(&fakeStore{}, nil, builder, logger.Nop())
	rec := do(t, noRegistry.Build, http.MethodPost, "/", MatrixRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	broken := NewMatrixHandler(&fakeStore{}, fakeRegistry{err: errors.New("db down")}, builder, logger.Nop())
	rec = do(t, broken.Build, http.MethodPost, "/", MatrixRequest{})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
