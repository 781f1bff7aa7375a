package matrix

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/incc/backend/internal/costing"
)

// Labels of the synthetic rows and columns
const (
	LabelCode        = "Código"
	LabelDescription = "Descrição"
	LabelArea        = "ÁREA M²"
	LabelBaseDate    = "DATA BASE"
	LabelAverage     = "Média"
)

// WorkItem is one budget line (EAP level 1) with its cost per project
type WorkItem struct {
	Code        string                        `json:"code"`
	Description string                        `json:"description"`
	Costs       map[string]costing.CostRecord `json:"costs"` // by project id
}

// ProjectMeta is the header information shown for a project column
type ProjectMeta struct {
	DeclaredArea string     `json:"declared_area"`
	BaseDate     *time.Time `json:"base_date,omitempty"`
}

// RowKind distinguishes the synthetic header rows from item rows
type RowKind string

const (
	RowArea     RowKind = "area"
	RowBaseDate RowKind = "base_date"
	RowItem     RowKind = "item"
)

// Cell is one project column of a row
type Cell struct {
	Project string                `json:"project"`
	Text    string                `json:"text"`
	Cost    *costing.AdjustedCost `json:"cost,omitempty"` // item rows only
}

// Row is one matrix line. Cells follow Matrix.Columns exactly.
type Row struct {
	Kind        RowKind          `json:"kind"`
	Code        string           `json:"code"`
	Description string           `json:"description"`
	Cells       []Cell           `json:"cells"`
	Average     *decimal.Decimal `json:"average,omitempty"`
}

// AverageText renders the average cell, blank when there is none
func (r Row) AverageText() string {
	if r.Average == nil {
		return ""
	}
	return costing.FormatUnit(*r.Average)
}

// Matrix compares adjusted unit costs across projects. Rows holds the two
// header rows followed by item rows ordered by code.
type Matrix struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Items returns the item rows only
func (m Matrix) Items() []Row {
	items := make([]Row, 0, len(m.Rows))
	for _, r := range m.Rows {
		if r.Kind == RowItem {
			items = append(items, r)
		}
	}
	return items
}

// Header returns the column titles used by Table
func (m Matrix) Header() []string {
	header := make([]string, 0, len(m.Columns)+3)
	header = append(header, LabelCode, LabelDescription)
	header = append(header, m.Columns...)
	return append(header, LabelAverage)
}

// Table renders the matrix as text rows, header first, for exporters
func (m Matrix) Table() [][]string {
	table := make([][]string, 0, len(m.Rows)+1)
	table = append(table, m.Header())
	for _, r := range m.Rows {
		line := make([]string, 0, len(r.Cells)+3)
		line = append(line, r.Code, r.Description)
		for _, c := range r.Cells {
			line = append(line, c.Text)
		}
		table = append(table, append(line, r.AverageText()))
	}
	return table
}

// AverageColumn returns the average cell of every item row, in row order
func (m Matrix) AverageColumn() []string {
	var column []string
	for _, r := range m.Items() {
		column = append(column, r.AverageText())
	}
	return column
}
