package costing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/incc/backend/internal/incc"
)

// retroactiveLag is how far before the base date the "before" index is read
const retroactiveLag = 2 // months

// CostRecord is one (project, work item) cost before adjustment, as supplied
// by the registries. RawCost and ReferenceArea are kept as text so that a
// figure that cannot be read is still shown instead of dropped.
type CostRecord struct {
	RawCost       string     `json:"raw_cost"`
	ReferenceArea string     `json:"reference_area"`
	BaseDate      *time.Time `json:"base_date,omitempty"`
}

// Status classifies an AdjustedCost
type Status string

const (
	StatusOK       Status = "ok"
	StatusMissing  Status = "missing"  // nothing to show
	StatusDegraded Status = "degraded" // raw figure passed through unadjusted
)

// Method tells how an OK value was produced
type Method string

const (
	MethodIndexed    Method = "indexed"    // rescaled by inccA / inccB
	MethodUnadjusted Method = "unadjusted" // base date is today
)

// AdjustedCost is the outcome of adjusting one CostRecord
type AdjustedCost struct {
	Status Status          `json:"status"`
	Value  decimal.Decimal `json:"value"`
	Raw    string          `json:"raw,omitempty"`
	Method Method          `json:"method,omitempty"`

	// Index points used, set for MethodIndexed
	Before *incc.IndexPoint `json:"incc_before,omitempty"`
	After  *incc.IndexPoint `json:"incc_after,omitempty"`
}

// Missing is the absent result
func Missing() AdjustedCost {
	return AdjustedCost{Status: StatusMissing}
}

// Present reports whether there is anything to display
func (a AdjustedCost) Present() bool {
	return a.Status != StatusMissing
}

// Numeric reports whether Value holds an adjusted figure
func (a AdjustedCost) Numeric() bool {
	return a.Status == StatusOK
}

// Display renders the cell text: "110,00", the raw figure, or ""
func (a AdjustedCost) Display() string {
	switch a.Status {
	case StatusOK:
		return FormatUnit(a.Value)
	case StatusDegraded:
		return a.Raw
	default:
		return ""
	}
}

// Adjuster rescales recorded costs to the current INCC level
type Adjuster struct {
	now func() time.Time
}

// Option configures an Adjuster
type Option func(*Adjuster)

// WithClock sets the clock that defines "today"
func WithClock(now func() time.Time) Option {
	return func(a *Adjuster) {
		a.now = now
	}
}

// NewAdjuster creates an adjuster using the wall clock by default
func NewAdjuster(opts ...Option) *Adjuster {
	a := &Adjuster{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Adjust computes the unit value of cost at the latest index level.
//
// The value is (cost × inccA) / (inccB × area), where inccA is the latest
// point and inccB the point at or before base date minus two months. A base
// date equal to today skips indexing. When simulatedArea is positive the unit
// value is multiplied by it. Adjust never fails: unusable input yields
// Missing, and a cost that cannot be read is passed through as Degraded.
func (a *Adjuster) Adjust(cost CostRecord, series incc.Series, simulatedArea *decimal.Decimal) AdjustedCost {
	raw := strings.TrimSpace(cost.RawCost)
	if raw == "" || strings.EqualFold(raw, "nan") || strings.EqualFold(raw, "none") {
		return Missing()
	}

	// 1. Reference area
	area, err := ParseArea(cost.ReferenceArea)
	if err != nil {
		return Missing()
	}

	// 2. Raw cost
	amount, err := ParseAmount(raw)
	if err != nil {
		return AdjustedCost{Status: StatusDegraded, Raw: cost.RawCost}
	}

	// 3. Base date
	if cost.BaseDate == nil || cost.BaseDate.IsZero() {
		return Missing()
	}
	if sameCalendarDay(*cost.BaseDate, a.now()) {
		return a.scaled(amount.Div(area), simulatedArea, MethodUnadjusted, nil, nil)
	}

	// 4. Index lookup
	after, ok := series.Latest()
	if !ok {
		return Missing()
	}
	retro := RetroactiveDate(*cost.BaseDate)
	before, _ := series.AtOrBefore(retro)
	if before.Value.IsZero() {
		return Missing()
	}

	unit := amount.Mul(after.Value).Div(before.Value.Mul(area))
	return a.scaled(unit, simulatedArea, MethodIndexed, &before, &after)
}

func (a *Adjuster) scaled(unit decimal.Decimal, simulatedArea *decimal.Decimal, method Method, before, after *incc.IndexPoint) AdjustedCost {
	if simulatedArea != nil && simulatedArea.IsPositive() {
		unit = unit.Mul(*simulatedArea)
	}
	return AdjustedCost{
		Status: StatusOK,
		Value:  unit,
		Method: method,
		Before: before,
		After:  after,
	}
}

// RetroactiveDate is base minus two calendar months, clamped to the end of
// the target month (31/05 -> 31/03, 30/04 -> 28/02 or 29/02).
func RetroactiveDate(base time.Time) time.Time {
	y, m, d := base.Date()
	first := time.Date(y, m-retroactiveLag, 1, 0, 0, 0, 0, base.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, base.Location())
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
