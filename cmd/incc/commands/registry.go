package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/incc/backend/internal/costing"
	"github.com/wonny/incc/backend/internal/registry"
)

// registryCmd manages the project registries
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "프로젝트 레지스트리 관리",
	Long: `프로젝트, 예산(EAP), 면적 레지스트리를 관리합니다.

Subcommands:
  import  - JSON/YAML 파일을 데이터베이스로 가져오기
  list    - 프로젝트 목록 (면적, 기준일)

Example:
  go run ./cmd/incc registry import registry.json
  go run ./cmd/incc registry list
  go run ./cmd/incc registry list --file registry.json`,
}

var (
	registryImportCmd = &cobra.Command{
		Use:   "import [file]",
		Short: "JSON/YAML 레지스트리 가져오기",
		Args:  cobra.ExactArgs(1),
		RunE:  runRegistryImport,
	}

	registryListCmd = &cobra.Command{
		Use:   "list",
		Short: "프로젝트 목록",
		RunE:  runRegistryList,
	}

	registryListFile string
)

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryImportCmd)
	registryCmd.AddCommand(registryListCmd)

	registryListCmd.Flags().StringVar(&registryListFile, "file", "", "레지스트리 JSON 파일 (기본: 데이터베이스)")
}

func runRegistryImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	snapshot, _, err := registry.LoadFile(args[0])
	if err != nil {
		return err
	}
	hash, err := registry.Hash(snapshot)
	if err != nil {
		return fmt.Errorf("hash registry: %w", err)
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.registry.Import(ctx, snapshot); err != nil {
		PrintError(fmt.Sprintf("Import failed: %v", err))
		return err
	}

	PrintSuccess(fmt.Sprintf("Imported %d projects, %d budgets, %d areas",
		len(snapshot.Projects), len(snapshot.Budgets), len(snapshot.Areas)))
	PrintKeyValue("SHA256", hash, 6)
	return nil
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, registryListFile == "")
	if err != nil {
		return err
	}
	defer a.Close()

	snapshot, err := loadRegistry(ctx, a, registryListFile)
	if err != nil {
		return err
	}

	assembly := registry.Assemble(snapshot)

	rows := [][]string{{"Projeto", "ÁREA M²", "DATA BASE"}}
	for _, key := range assembly.Projects {
		meta := assembly.Meta[key]
		area := meta.DeclaredArea
		if parsed, err := costing.ParseArea(area); err == nil {
			area = costing.FormatArea(parsed)
		}
		rows = append(rows, []string{key, area, costing.FormatDate(meta.BaseDate)})
	}

	PrintHeader("Project Registry")
	if err := PrintTable(rows); err != nil {
		return err
	}
	if len(assembly.Warnings) > 0 {
		PrintWarning("Registry warnings:")
		PrintList(assembly.Warnings)
	}
	return nil
}
