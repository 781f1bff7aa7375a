package incc

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// IndexPoint is one monthly INCC reading. Date is always the first day of
// the month at UTC midnight.
type IndexPoint struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// NewIndexPoint builds a point for (year, month).
func NewIndexPoint(year int, month time.Month, value decimal.Decimal) IndexPoint {
	return IndexPoint{
		Date:  time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
		Value: value,
	}
}

// Series is an immutable, date-ascending INCC time series with at most one
// point per month. The zero value is a valid empty series.
type Series struct {
	points []IndexPoint
}

// NewSeries normalizes points into a Series: dates are moved to the first of
// their month, points are sorted ascending and duplicate months collapse to
// the last one seen in the input.
func NewSeries(points []IndexPoint) Series {
	if len(points) == 0 {
		return Series{}
	}

	normalized := make([]IndexPoint, len(points))
	for i, p := range points {
		normalized[i] = IndexPoint{Date: MonthStart(p.Date), Value: p.Value}
	}

	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].Date.Before(normalized[j].Date)
	})

	out := normalized[:0]
	for _, p := range normalized {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}

	return Series{points: out}
}

// Len returns the number of points
func (s Series) Len() int {
	return len(s.points)
}

// IsEmpty reports whether the series has no data
func (s Series) IsEmpty() bool {
	return len(s.points) == 0
}

// Points returns a copy of the points
func (s Series) Points() []IndexPoint {
	out := make([]IndexPoint, len(s.points))
	copy(out, s.points)
	return out
}

// Earliest returns the chronologically first point
func (s Series) Earliest() (IndexPoint, bool) {
	if len(s.points) == 0 {
		return IndexPoint{}, false
	}
	return s.points[0], true
}

// Latest returns the most recent point
func (s Series) Latest() (IndexPoint, bool) {
	if len(s.points) == 0 {
		return IndexPoint{}, false
	}
	return s.points[len(s.points)-1], true
}

// AtOrBefore returns the latest point whose date is on or before date. When
// every point is later than date it falls back to the earliest point, so it
// only reports false for an empty series.
func (s Series) AtOrBefore(date time.Time) (IndexPoint, bool) {
	if len(s.points) == 0 {
		return IndexPoint{}, false
	}

	day := calendarDay(date)
	idx := sort.Search(len(s.points), func(i int) bool {
		return s.points[i].Date.After(day)
	})
	if idx == 0 {
		return s.points[0], true
	}
	return s.points[idx-1], true
}

// At returns the point for date's month, if present
func (s Series) At(date time.Time) (IndexPoint, bool) {
	month := MonthStart(date)
	idx := sort.Search(len(s.points), func(i int) bool {
		return !s.points[i].Date.Before(month)
	})
	if idx < len(s.points) && s.points[idx].Date.Equal(month) {
		return s.points[idx], true
	}
	return IndexPoint{}, false
}

// MarshalJSON encodes the series as its point list
func (s Series) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Points())
}

// UnmarshalJSON decodes a point list and normalizes it
func (s *Series) UnmarshalJSON(data []byte) error {
	var points []IndexPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return err
	}
	*s = NewSeries(points)
	return nil
}

// IsStale reports whether series needs regeneration as of asOf: it is empty
// or its newest point precedes the first day of asOf's month.
func IsStale(series Series, asOf time.Time) bool {
	latest, ok := series.Latest()
	if !ok {
		return true
	}
	return latest.Date.Before(MonthStart(asOf))
}

// MonthStart returns the first day of t's calendar month at UTC midnight
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// calendarDay drops the clock and zone from t, keeping its calendar date
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
