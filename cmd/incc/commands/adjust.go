package commands

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/wonny/incc/backend/internal/costing"
)

// adjustCmd adjusts a single recorded cost
var adjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "공사비 단가 INCC 보정",
	Long: `기준일의 공사비를 최신 INCC 지수로 보정한 m² 단가를 계산합니다.

보정식: (비용 × INCC최신) / (INCC기준월 × 면적) [× 시뮬레이션 면적]

Example:
  go run ./cmd/incc adjust --cost "1.000,00" --area 10 --base-date 2024-01-15
  go run ./cmd/incc adjust --cost "R$ 2.500.000,00" --area "1.250,00 m²" --base-date 15/06/2023 --simulated-area 800`,
	RunE: runAdjust,
}

var (
	adjustCost          string
	adjustArea          string
	adjustBaseDate      string
	adjustSimulatedArea string
)

func init() {
	rootCmd.AddCommand(adjustCmd)

	// Flags
	adjustCmd.Flags().StringVar(&adjustCost, "cost", "", "기준일 공사비 (pt-BR 형식)")
	adjustCmd.Flags().StringVar(&adjustArea, "area", "", "참조 면적 (m²)")
	adjustCmd.Flags().StringVar(&adjustBaseDate, "base-date", "", "기준일 (YYYY-MM-DD, DD/MM/YYYY, MM/YYYY)")
	adjustCmd.Flags().StringVar(&adjustSimulatedArea, "simulated-area", "", "시뮬레이션 면적 (m²), 지정 시 총액 계산")
	_ = adjustCmd.MarkFlagRequired("cost")
}

func runAdjust(cmd *cobra.Command, args []string) error {
	record := costing.CostRecord{RawCost: adjustCost, ReferenceArea: adjustArea}
	if strings.TrimSpace(adjustBaseDate) != "" {
		base, err := costing.ParseBaseDate(adjustBaseDate)
		if err != nil {
			return err
		}
		record.BaseDate = &base
	}

	simulated, err := parseSimulatedAreaFlag(adjustSimulatedArea)
	if err != nil {
		return err
	}

	series, a, err := loadSeries(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.adjuster.Adjust(record, series, simulated)

	PrintHeader("INCC Cost Adjustment")
	PrintKeyValue("Status", string(result.Status), 12)
	if result.Method != "" {
		PrintKeyValue("Method", string(result.Method), 12)
	}
	if result.Before != nil {
		PrintKeyValue("INCC base", fmt.Sprintf("%s (%s)", costing.FormatIndex(result.Before.Value), result.Before.Date.Format("01/2006")), 12)
	}
	if result.After != nil {
		PrintKeyValue("INCC latest", fmt.Sprintf("%s (%s)", costing.FormatIndex(result.After.Value), result.After.Date.Format("01/2006")), 12)
	}
	if record.BaseDate != nil {
		retro := costing.RetroactiveDate(*record.BaseDate)
		PrintKeyValue("Retroactive", costing.FormatDate(&retro), 12)
	}
	PrintSeparator()

	switch {
	case result.Numeric() && simulated != nil:
		PrintSuccess("Total: " + costing.FormatMoney(result.Value))
	case result.Numeric():
		PrintSuccess("R$/m²: " + result.Display())
	case result.Present():
		PrintWarning("Cost could not be read; showing it as recorded: " + result.Display())
	default:
		PrintWarning("No adjusted value (missing cost, area, base date or index)")
	}
	return nil
}

// parseSimulatedAreaFlag returns nil for an empty or non-positive area
func parseSimulatedAreaFlag(raw string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	area, err := costing.ParseArea(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid simulated area %q: %w", raw, err)
	}
	return &area, nil
}
