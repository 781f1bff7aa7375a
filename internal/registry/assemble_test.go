package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func sampleSnapshot() Snapshot {
	return Snapshot{
		Projects: []Project{
			{ID: "p1", Sigla: "ALF", Name: "Residencial Alfa"},
			{ID: "p2", Name: "Beta Offices"},
		},
		Budgets: []Budget{
			{ProjectID: "p1", BaseDate: "2023-08-01", Items: []BudgetItem{
				{Level: 1, Code: "01", Description: "Item Serviços preliminares", PriceM2: str("120,50"), Price: str("999")},
				{Level: 2, Code: "01.01", Description: "Tapumes", Price: str("10")},
				{Level: 1, Code: "02", Description: "Fundações", Price: str("R$ 350,00")},
			}},
			{ProjectID: "p2", BaseDate: "", Items: []BudgetItem{
				{Level: 1, Code: "01", Description: "Serviços preliminares", PriceM2: str("")},
			}},
			{ProjectID: "ghost", BaseDate: "ontem", Items: []BudgetItem{
				{Level: 1, Code: "09", Description: "Limpeza", Price: str("5")},
			}},
		},
		Areas: []AreaEntry{
			{Name: "ALF - Residencial Alfa", Area: "12.500"},
			{Name: "Beta Offices", Area: "8.000,5"},
		},
	}
}

func TestSigla(t *testing.T) {
	tests := []struct{ in, want string }{
		{"ALF - Residencial Alfa", "ALF"},
		{"BET Comercial", "BET"},
		{"GAM-01 Torre", "GAM"},
		{"DELTA", "DELTA"},
		{"  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sigla(tt.in), tt.in)
	}
}

func TestResolveArea(t *testing.T) {
	areas := []AreaEntry{
		{Name: "ALF - Residencial Alfa", Area: "12.500"},
		{Name: "Beta Offices", Area: " 8.000,5 "},
		{Name: "GAM", Area: "nan"},
		{Name: "Torre GAM Norte", Area: "3.000"},
	}

	tests := []struct{ key, want string }{
		{"Beta Offices", "8.000,5"},
		{"alf", "12.500"},
		{"offices", "8.000,5"},
		{"GAM", "3.000"},
		{"ZZZ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveArea(areas, tt.key), tt.key)
	}
}

func TestBudgetItem_UnitPrice(t *testing.T) {
	assert.Equal(t, "1", BudgetItem{PriceM2: str("1"), Price: str("2")}.UnitPrice())
	assert.Equal(t, "", BudgetItem{PriceM2: str(""), Price: str("2")}.UnitPrice())
	assert.Equal(t, "2", BudgetItem{Price: str("2")}.UnitPrice())
	assert.Equal(t, "", BudgetItem{}.UnitPrice())
}

func TestAssemble(t *testing.T) {
	a := Assemble(sampleSnapshot())

	assert.Equal(t, []string{"ALF", "Beta Offices", UnknownProject}, a.Projects)
	require.Len(t, a.Items, 4, "only level 1 items")

	first := a.Items[0]
	assert.Equal(t, "01", first.Code)
	rec := first.Costs["ALF"]
	assert.Equal(t, "120,50", rec.RawCost)
	assert.Equal(t, "12.500", rec.ReferenceArea)
	require.NotNil(t, rec.BaseDate)
	assert.Equal(t, time.Date(2023, time.August, 1, 0, 0, 0, 0, time.UTC), *rec.BaseDate)

	assert.Equal(t, "R$ 350,00", a.Items[1].Costs["ALF"].RawCost)

	beta := a.Items[2].Costs["Beta Offices"]
	assert.Equal(t, "", beta.RawCost)
	assert.Nil(t, beta.BaseDate)
	assert.Equal(t, "8.000,5", a.Meta["Beta Offices"].DeclaredArea)

	require.Len(t, a.Warnings, 1)
	assert.Contains(t, a.Warnings[0], UnknownProject)
}

func TestAssembly_Select(t *testing.T) {
	a := Assemble(sampleSnapshot())

	all, unknown := a.Select(nil)
	assert.Equal(t, a.Projects, all)
	assert.Empty(t, unknown)

	selected, unknown := a.Select([]string{"Beta Offices", "NOPE", "ALF"})
	assert.Equal(t, []string{"Beta Offices", "ALF"}, selected)
	assert.Equal(t, []string{"NOPE"}, unknown)

	selected, unknown = a.Select([]string{"ALF", "NOPE", " ALF", "NOPE"})
	assert.Equal(t, []string{"ALF"}, selected)
	assert.Equal(t, []string{"NOPE"}, unknown)
}
