package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/incc/backend/internal/costing"
	"github.com/wonny/incc/backend/internal/incc"
)

// seriesCmd groups the INCC series commands
var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "INCC 지수 시계열 조회 및 갱신",
	Long: `INCC 월간 지수 시계열을 조회하거나 갱신합니다.

스냅샷이 없거나 이번 달 지수가 없으면 Secovi에서 다시 수집합니다.
수집이 실패하면 마지막 스냅샷을 사용합니다.

Subcommands:
  show     - 전체 시계열 표시
  latest   - 최신 지수
  at       - 특정 날짜의 지수 (해당 월 또는 이전 월)
  refresh  - 강제 재수집
  parse    - 저장된 HTML 파일 파싱 (네트워크 없음)

Example:
  go run ./cmd/incc series show
  go run ./cmd/incc series at 2024-03-15
  go run ./cmd/incc series parse ./secovi.html`,
}

var (
	seriesShowCmd = &cobra.Command{
		Use:   "show",
		Short: "전체 시계열 표시",
		RunE:  runSeriesShow,
	}

	seriesLatestCmd = &cobra.Command{
		Use:   "latest",
		Short: "최신 지수",
		RunE:  runSeriesLatest,
	}

	seriesAtCmd = &cobra.Command{
		Use:   "at [YYYY-MM-DD]",
		Short: "특정 날짜의 지수",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeriesAt,
	}

	seriesRefreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "강제 재수집",
		RunE:  runSeriesRefresh,
	}

	seriesParseCmd = &cobra.Command{
		Use:   "parse [file]",
		Short: "저장된 HTML 파일 파싱",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeriesParse,
	}
)

func init() {
	rootCmd.AddCommand(seriesCmd)
	seriesCmd.AddCommand(seriesShowCmd)
	seriesCmd.AddCommand(seriesLatestCmd)
	seriesCmd.AddCommand(seriesAtCmd)
	seriesCmd.AddCommand(seriesRefreshCmd)
	seriesCmd.AddCommand(seriesParseCmd)
}

func loadSeries(ctx context.Context) (incc.Series, *app, error) {
	a, err := newApp(ctx, false)
	if err != nil {
		return incc.Series{}, nil, err
	}
	series, err := a.store.Load(ctx)
	if err != nil {
		a.Close()
		return incc.Series{}, nil, fmt.Errorf("load incc series: %w", err)
	}
	return series, a, nil
}

func runSeriesShow(cmd *cobra.Command, args []string) error {
	series, a, err := loadSeries(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader("INCC Series")
	PrintKeyValue("Snapshot", a.store.Path(), 8)
	PrintKeyValue("Points", fmt.Sprintf("%d", series.Len()), 8)
	fmt.Println()
	return PrintTable(seriesTable(series))
}

func runSeriesLatest(cmd *cobra.Command, args []string) error {
	series, a, err := loadSeries(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	latest, ok := series.Latest()
	if !ok {
		return fmt.Errorf("incc series is empty")
	}
	printPoint("Latest", latest)
	if a.store.IsStale(series) {
		PrintWarning("Current month is not published yet; using the last snapshot")
	}
	return nil
}

func runSeriesAt(cmd *cobra.Command, args []string) error {
	date, err := time.Parse("2006-01-02", args[0])
	if err != nil {
		return fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", args[0], err)
	}

	series, a, err := loadSeries(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	point, ok := series.AtOrBefore(date)
	if !ok {
		earliest, found := series.Earliest()
		if !found {
			return fmt.Errorf("incc series is empty")
		}
		PrintInfo(fmt.Sprintf("%s is before the series start; using the earliest point", args[0]))
		point = earliest
	}
	printPoint(args[0], point)
	return nil
}

func runSeriesRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	series, err := a.store.Refresh(ctx)
	if err != nil {
		PrintError(fmt.Sprintf("Refresh failed: %v", err))
		return err
	}

	latest, _ := series.Latest()
	PrintSuccess(fmt.Sprintf("Fetched %d points in %.2fs (latest %s = %s)",
		series.Len(), time.Since(start).Seconds(),
		latest.Date.Format("01/2006"), costing.FormatIndex(latest.Value)))
	return nil
}

func runSeriesParse(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	ext, err := incc.Extract(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	series := ext.Series()

	PrintHeader("INCC Extraction")
	PrintKeyValue("Years", fmt.Sprintf("%d", ext.Years), 7)
	PrintKeyValue("Points", fmt.Sprintf("%d", series.Len()), 7)
	PrintKeyValue("Skipped", fmt.Sprintf("%d", len(ext.Skipped)), 7)
	fmt.Println()

	if err := PrintTable(seriesTable(series)); err != nil {
		return err
	}

	if len(ext.Skipped) > 0 {
		skipped := make([]string, 0, len(ext.Skipped))
		for _, s := range ext.Skipped {
			skipped = append(skipped, fmt.Sprintf("%d %q %q: %s", s.Year, s.Month, s.Value, s.Reason))
		}
		PrintWarning("Skipped rows:")
		PrintList(skipped)
	}
	return nil
}

// seriesTable lays a series out as header plus one row per month
func seriesTable(series incc.Series) [][]string {
	rows := [][]string{{"Mês", "INCC"}}
	for _, p := range series.Points() {
		rows = append(rows, []string{p.Date.Format("01/2006"), costing.FormatIndex(p.Value)})
	}
	return rows
}

func printPoint(label string, p incc.IndexPoint) {
	PrintKeyValue(label, fmt.Sprintf("%s → %s", p.Date.Format("01/2006"), costing.FormatIndex(p.Value)), len(label))
}
