package matrix

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/incc/backend/internal/costing"
	"github.com/wonny/incc/backend/internal/incc"
	"github.com/wonny/incc/backend/pkg/logger"
)

var (
	itemPrefixRe = regexp.MustCompile(`(?i)^item\s*`)
	spacesRe     = regexp.MustCompile(`\s+`)
)

// NormalizeDescription strips a leading "Item" token and collapses spaces
func NormalizeDescription(desc string) string {
	desc = itemPrefixRe.ReplaceAllString(strings.TrimSpace(desc), "")
	return strings.TrimSpace(spacesRe.ReplaceAllString(desc, " "))
}

// Request is the input of one matrix build
type Request struct {
	Items         []WorkItem
	Projects      []string // column order
	Meta          map[string]ProjectMeta
	Series        incc.Series
	SimulatedArea *decimal.Decimal
}

// Builder assembles comparison matrices. It holds no state between builds.
type Builder struct {
	adjuster *costing.Adjuster
	logger   *logger.Logger
}

// NewBuilder creates a builder around adjuster
func NewBuilder(adjuster *costing.Adjuster, log *logger.Logger) *Builder {
	return &Builder{
		adjuster: adjuster,
		logger:   log.Component("matrix_builder"),
	}
}

// mergedItem is a work item after collapsing duplicate codes
type mergedItem struct {
	description string
	costs       map[string]costing.CostRecord
}

// Build adjusts every (item, project) cost and lays the results out as a
// matrix. Item rows without any present, non-zero cell are omitted.
func (b *Builder) Build(req Request) Matrix {
	columns := uniqueProjects(req.Projects)

	m := Matrix{Columns: columns}
	m.Rows = append(m.Rows, areaRow(columns, req.Meta), baseDateRow(columns, req.Meta))

	// 1. Collapse items by code; later entries override earlier ones
	merged := make(map[string]*mergedItem)
	for _, item := range req.Items {
		entry, ok := merged[item.Code]
		if !ok {
			entry = &mergedItem{costs: make(map[string]costing.CostRecord)}
			merged[item.Code] = entry
		}
		entry.description = item.Description
		for project, cost := range item.Costs {
			entry.costs[project] = cost
		}
	}

	codes := make([]string, 0, len(merged))
	for code := range merged {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	// 2. Adjust and filter
	omitted := 0
	for _, code := range codes {
		row, keep := b.itemRow(code, merged[code], columns, req)
		if !keep {
			omitted++
			continue
		}
		m.Rows = append(m.Rows, row)
	}

	b.logger.WithFields(map[string]interface{}{
		"projects": len(columns),
		"items":    len(codes),
		"omitted":  omitted,
	}).Debug("Comparison matrix built")

	return m
}

// uniqueProjects drops repeated project ids, keeping the first occurrence
func uniqueProjects(projects []string) []string {
	seen := make(map[string]bool, len(projects))
	out := make([]string, 0, len(projects))
	for _, p := range projects {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (b *Builder) itemRow(code string, item *mergedItem, columns []string, req Request) (Row, bool) {
	row := Row{
		Kind:        RowItem,
		Code:        code,
		Description: NormalizeDescription(item.description),
		Cells:       make([]Cell, 0, len(columns)),
	}

	keep := false
	sum := decimal.Zero
	numeric := 0

	for _, project := range columns {
		adjusted := costing.Missing()
		if cost, ok := item.costs[project]; ok {
			adjusted = b.adjuster.Adjust(cost, req.Series, req.SimulatedArea)
		}

		cellCost := adjusted
		row.Cells = append(row.Cells, Cell{
			Project: project,
			Text:    adjusted.Display(),
			Cost:    &cellCost,
		})

		if adjusted.Numeric() {
			sum = sum.Add(adjusted.Value)
			numeric++
			if !adjusted.Value.IsZero() {
				keep = true
			}
		} else if adjusted.Present() && adjusted.Display() != "" {
			keep = true
		}
	}

	if numeric > 0 {
		avg := sum.Div(decimal.NewFromInt(int64(numeric)))
		row.Average = &avg
	}
	return row, keep
}

func areaRow(columns []string, meta map[string]ProjectMeta) Row {
	row := Row{Kind: RowArea, Description: LabelArea, Cells: make([]Cell, 0, len(columns))}
	for _, project := range columns {
		text := ""
		if raw := strings.TrimSpace(meta[project].DeclaredArea); raw != "" {
			if area, err := costing.ParseArea(raw); err == nil {
				text = costing.FormatArea(area)
			} else {
				text = raw
			}
		}
		row.Cells = append(row.Cells, Cell{Project: project, Text: text})
	}
	return row
}

func baseDateRow(columns []string, meta map[string]ProjectMeta) Row {
	row := Row{Kind: RowBaseDate, Description: LabelBaseDate, Cells: make([]Cell, 0, len(columns))}
	for _, project := range columns {
		text := ""
		if base := meta[project].BaseDate; base != nil && !base.IsZero() {
			text = base.Format("02/01/2006")
		}
		row.Cells = append(row.Cells, Cell{Project: project, Text: text})
	}
	return row
}
