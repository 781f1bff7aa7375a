package registry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/incc/backend/pkg/database"
)

// Repository reads and writes the project registries in PostgreSQL
// ⭐ SSOT: registry.* 테이블은 이 저장소에서만 접근
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository 새 저장소 생성
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the registry tables if needed
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS registry;

		CREATE TABLE IF NOT EXISTS registry.projects (
			id    TEXT PRIMARY KEY,
			sigla TEXT NOT NULL DEFAULT '',
			name  TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS registry.budgets (
			project_id TEXT PRIMARY KEY,
			base_date  TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS registry.budget_items (
			project_id  TEXT NOT NULL REFERENCES registry.budgets(project_id) ON DELETE CASCADE,
			position    INT  NOT NULL,
			level       INT  NOT NULL,
			code        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price_m2    TEXT,
			price       TEXT,
			PRIMARY KEY (project_id, position)
		);

		CREATE TABLE IF NOT EXISTS registry.project_areas (
			name TEXT PRIMARY KEY,
			area TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return fmt.Errorf("create registry schema: %w", err)
	}
	return nil
}

// Load reads every registry into a Snapshot
func (r *Repository) Load(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	var err error

	if s.Projects, err = r.projects(ctx); err != nil {
		return Snapshot{}, err
	}
	if s.Budgets, err = r.budgets(ctx); err != nil {
		return Snapshot{}, err
	}
	if s.Areas, err = r.areas(ctx); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func (r *Repository) projects(ctx context.Context) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sigla, name FROM registry.projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Sigla, &p.Name); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *Repository) budgets(ctx context.Context) ([]Budget, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.project_id, b.base_date,
		       i.level, i.code, i.description, i.price_m2, i.price
		FROM registry.budgets b
		LEFT JOIN registry.budget_items i ON i.project_id = b.project_id
		ORDER BY b.project_id, i.position
	`)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var budgets []Budget
	index := make(map[string]int)
	for rows.Next() {
		var (
			projectID, baseDate string
			level               *int
			code, description   *string
			priceM2, price      *string
		)
		if err := rows.Scan(&projectID, &baseDate, &level, &code, &description, &priceM2, &price); err != nil {
			return nil, fmt.Errorf("scan budget item: %w", err)
		}

		i, ok := index[projectID]
		if !ok {
			i = len(budgets)
			index[projectID] = i
			budgets = append(budgets, Budget{ProjectID: projectID, BaseDate: baseDate})
		}
		if level == nil {
			continue
		}
		budgets[i].Items = append(budgets[i].Items, BudgetItem{
			Level:       *level,
			Code:        deref(code),
			Description: deref(description),
			PriceM2:     priceM2,
			Price:       price,
		})
	}
	return budgets, rows.Err()
}

func (r *Repository) areas(ctx context.Context) ([]AreaEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, area FROM registry.project_areas ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query project areas: %w", err)
	}
	defer rows.Close()

	var areas []AreaEntry
	for rows.Next() {
		var a AreaEntry
		if err := rows.Scan(&a.Name, &a.Area); err != nil {
			return nil, fmt.Errorf("scan project area: %w", err)
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

// Import upserts a snapshot. Budgets are replaced per project.
func (r *Repository) Import(ctx context.Context, s Snapshot) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}

		for _, p := range s.Projects {
			batch.Queue(`
				INSERT INTO registry.projects (id, sigla, name) VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE SET sigla = EXCLUDED.sigla, name = EXCLUDED.name
			`, p.ID, p.Sigla, p.Name)
		}
		for _, a := range s.Areas {
			batch.Queue(`
				INSERT INTO registry.project_areas (name, area) VALUES ($1, $2)
				ON CONFLICT (name) DO UPDATE SET area = EXCLUDED.area
			`, a.Name, a.Area)
		}
		for _, b := range s.Budgets {
			batch.Queue(`DELETE FROM registry.budgets WHERE project_id = $1`, b.ProjectID)
			batch.Queue(`INSERT INTO registry.budgets (project_id, base_date) VALUES ($1, $2)`, b.ProjectID, b.BaseDate)
			for pos, item := range b.Items {
				batch.Queue(`
					INSERT INTO registry.budget_items
						(project_id, position, level, code, description, price_m2, price)
					VALUES ($1, $2, $3, $4, $5, $6, $7)
				`, b.ProjectID, pos, item.Level, item.Code, item.Description, item.PriceM2, item.Price)
			}
		}

		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("import registry: %w", err)
			}
		}
		return results.Close()
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
