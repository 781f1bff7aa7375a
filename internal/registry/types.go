package registry

// Project is an entry of the project registry
type Project struct {
	ID    string `json:"id" yaml:"id"`
	Sigla string `json:"sigla" yaml:"sigla"`
	Name  string `json:"name" yaml:"name"`
}

// Key is the column identifier of the project: its sigla, else its name
func (p Project) Key() string {
	if p.Sigla != "" {
		return p.Sigla
	}
	return p.Name
}

// Budget is the EAP of one project
type Budget struct {
	ProjectID string       `json:"project_id" yaml:"project_id"`
	BaseDate  string       `json:"base_date" yaml:"base_date"`
	Items     []BudgetItem `json:"items" yaml:"items"`
}

// BudgetItem is one EAP line. PriceM2 wins over Price when it is set, even
// when empty.
type BudgetItem struct {
	Level       int     `json:"level" yaml:"level"`
	Code        string  `json:"code" yaml:"code"`
	Description string  `json:"description" yaml:"description"`
	PriceM2     *string `json:"price_m2,omitempty" yaml:"price_m2,omitempty"`
	Price       *string `json:"price,omitempty" yaml:"price,omitempty"`
}

// UnitPrice returns the price used as raw cost
func (i BudgetItem) UnitPrice() string {
	if i.PriceM2 != nil {
		return *i.PriceM2
	}
	if i.Price != nil {
		return *i.Price
	}
	return ""
}

// AreaEntry is a row of the project board: a project name and its
// declared built area
type AreaEntry struct {
	Name string `json:"name" yaml:"name"`
	Area string `json:"area" yaml:"area"`
}

// Snapshot is everything read from the registries for one matrix build
type Snapshot struct {
	Projects []Project   `json:"projects" yaml:"projects"`
	Budgets  []Budget    `json:"budgets" yaml:"budgets"`
	Areas    []AreaEntry `json:"areas" yaml:"areas"`
}
