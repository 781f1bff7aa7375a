package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/incc/backend/internal/matrix"
	"github.com/wonny/incc/backend/internal/registry"
)

// matrixCmd builds the project comparison matrix
var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "프로젝트 비교표 생성",
	Long: `선택한 프로젝트들의 1단계 EAP 항목을 INCC로 보정해 비교표를 만듭니다.

레지스트리는 --file(JSON) 또는 DATABASE_URL에서 읽습니다.
--projects를 생략하면 예산이 있는 모든 프로젝트를 사용합니다.

Example:
  go run ./cmd/incc matrix --file registry.json
  go run ./cmd/incc matrix --projects ABC,XYZ --simulated-area 1200
  go run ./cmd/incc matrix --file registry.json --json`,
	RunE: runMatrix,
}

var (
	matrixProjects      []string
	matrixSimulatedArea string
	matrixFile          string
	matrixJSON          bool
)

func init() {
	rootCmd.AddCommand(matrixCmd)

	// Flags
	matrixCmd.Flags().StringSliceVar(&matrixProjects, "projects", nil, "프로젝트 키 (sigla 또는 이름), 쉼표 구분")
	matrixCmd.Flags().StringVar(&matrixSimulatedArea, "simulated-area", "", "시뮬레이션 면적 (m²)")
	matrixCmd.Flags().StringVar(&matrixFile, "file", "", "레지스트리 JSON 파일 (기본: 데이터베이스)")
	matrixCmd.Flags().BoolVar(&matrixJSON, "json", false, "JSON 출력")
}

func runMatrix(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	simulated, err := parseSimulatedAreaFlag(matrixSimulatedArea)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, matrixFile == "")
	if err != nil {
		return err
	}
	defer a.Close()

	snapshot, err := loadRegistry(ctx, a, matrixFile)
	if err != nil {
		return err
	}

	assembly := registry.Assemble(snapshot)
	for _, w := range assembly.Warnings {
		a.log.Warn(w)
	}
	selected, unknown := assembly.Select(matrixProjects)

	series, err := a.store.Load(ctx)
	if err != nil {
		a.log.WithError(err).Warn("INCC series unavailable, costs left unadjusted")
	}

	m := a.builder.Build(matrix.Request{
		Items:         assembly.Items,
		Projects:      selected,
		Meta:          assembly.Meta,
		Series:        series,
		SimulatedArea: simulated,
	})

	if matrixJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	PrintHeader("INCC Comparison Matrix")
	PrintKeyValue("Projects", fmt.Sprintf("%d", len(selected)), 8)
	PrintKeyValue("Items", fmt.Sprintf("%d", len(m.Items())), 8)
	if latest, ok := series.Latest(); ok {
		PrintKeyValue("INCC", latest.Date.Format("01/2006"), 8)
	}
	fmt.Println()

	if err := PrintTable(m.Table()); err != nil {
		return err
	}
	if len(unknown) > 0 {
		PrintWarning("Unknown projects:")
		PrintList(unknown)
	}
	return nil
}

// loadRegistry reads the snapshot from a JSON file, else from the database
func loadRegistry(ctx context.Context, a *app, file string) (registry.Snapshot, error) {
	if file != "" {
		return readRegistryFile(file)
	}
	if a.registry == nil {
		return registry.Snapshot{}, fmt.Errorf("no registry: pass --file or set DATABASE_URL")
	}
	snapshot, err := a.registry.Load(ctx)
	if err != nil {
		return registry.Snapshot{}, fmt.Errorf("load registry: %w", err)
	}
	return snapshot, nil
}

func readRegistryFile(path string) (registry.Snapshot, error) {
	snapshot, _, err := registry.LoadFile(path)
	return snapshot, err
}
