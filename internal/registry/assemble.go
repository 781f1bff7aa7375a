package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/incc/backend/internal/costing"
	"github.com/wonny/incc/backend/internal/matrix"
)

// UnknownProject keys budgets whose project is missing from the registry
const UnknownProject = "Obra não encontrada"

// topLevel is the EAP level compared across projects
const topLevel = 1

// Sigla extracts the project acronym from a board name:
// "ALF - Residencial Alfa" -> "ALF", "BET Comercial" -> "BET"
func Sigla(name string) string {
	s := strings.TrimSpace(name)
	for _, sep := range []string{"-", " "} {
		if before, _, found := strings.Cut(s, sep); found {
			return strings.TrimSpace(before)
		}
	}
	return s
}

// ResolveArea finds the declared area for a project key on the board: exact
// name first, then a board entry with the same sigla, then the first name
// containing the key (case-insensitive). Blank areas are ignored.
func ResolveArea(areas []AreaEntry, key string) string {
	if key == "" {
		return ""
	}
	for _, a := range areas {
		if a.Name == key && usable(a.Area) {
			return strings.TrimSpace(a.Area)
		}
	}
	for _, a := range areas {
		if strings.EqualFold(Sigla(a.Name), key) && usable(a.Area) {
			return strings.TrimSpace(a.Area)
		}
	}
	lower := strings.ToLower(key)
	for _, a := range areas {
		if strings.Contains(strings.ToLower(a.Name), lower) && usable(a.Area) {
			return strings.TrimSpace(a.Area)
		}
	}
	return ""
}

func usable(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "none":
		return false
	}
	return true
}

// Assembly is the matrix input derived from a registry snapshot
type Assembly struct {
	Projects []string                      `json:"projects"` // every project key with a budget, sorted
	Items    []matrix.WorkItem             `json:"items"`
	Meta     map[string]matrix.ProjectMeta `json:"meta"`
	Warnings []string                      `json:"warnings,omitempty"`
}

// Assemble joins projects, budgets and board areas into work items. Only
// top-level EAP items are kept. A budget whose base date cannot be read
// yields cost records without a base date.
func Assemble(s Snapshot) Assembly {
	byID := make(map[string]Project, len(s.Projects))
	for _, p := range s.Projects {
		byID[p.ID] = p
	}

	out := Assembly{Meta: make(map[string]matrix.ProjectMeta)}
	seen := make(map[string]bool)

	for _, budget := range s.Budgets {
		key := UnknownProject
		if p, ok := byID[budget.ProjectID]; ok && p.Key() != "" {
			key = p.Key()
		}

		var base *time.Time
		if usable(budget.BaseDate) {
			if t, err := costing.ParseBaseDate(budget.BaseDate); err == nil {
				base = &t
			} else {
				out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", key, err))
			}
		}

		area := ResolveArea(s.Areas, key)
		out.Meta[key] = matrix.ProjectMeta{DeclaredArea: area, BaseDate: base}
		if !seen[key] {
			seen[key] = true
			out.Projects = append(out.Projects, key)
		}

		for _, item := range budget.Items {
			if item.Level != topLevel {
				continue
			}
			out.Items = append(out.Items, matrix.WorkItem{
				Code:        item.Code,
				Description: item.Description,
				Costs: map[string]costing.CostRecord{
					key: {
						RawCost:       item.UnitPrice(),
						ReferenceArea: area,
						BaseDate:      base,
					},
				},
			})
		}
	}

	sort.Strings(out.Projects)
	return out
}

// Select keeps the requested project keys that exist, in the requested order.
// Repeated keys count once.
// An empty request selects every project.
func (a Assembly) Select(requested []string) ([]string, []string) {
	if len(requested) == 0 {
		return append([]string(nil), a.Projects...), nil
	}

	known := make(map[string]bool, len(a.Projects))
	for _, p := range a.Projects {
		known[p] = true
	}

	var selected, unknown []string
	seen := make(map[string]bool, len(requested))
	for _, p := range requested {
		p = strings.TrimSpace(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		if known[p] {
			selected = append(selected, p)
		} else if p != "" {
			unknown = append(unknown, p)
		}
	}
	return selected, unknown
}
