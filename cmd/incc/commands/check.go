package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/incc/backend/internal/incc"
)

// checkCmd reports the state of the snapshot and the configured backends
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "스냅샷 및 연결 상태 점검",
	Long: `INCC 스냅샷과 설정된 백엔드 연결 상태를 점검합니다.

이 명령어는:
- 스냅샷 파일 읽기 및 최신 여부 확인
- 잠금 상태 확인
- DATABASE_URL 설정 시 Ping / Health Check / Pool 통계
- REDIS_ENABLED 설정 시 연결 확인

수집은 하지 않습니다.

Example:
  go run ./cmd/incc check
  go run ./cmd/incc check --env production`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== INCC Health Check ===")

	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return fmt.Errorf("❌ Failed to initialize: %w", err)
	}
	defer a.Close()
	fmt.Printf("✅ Config loaded (ENV: %s)\n\n", a.cfg.Env)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	// Snapshot
	fmt.Println("📄 Snapshot:")
	PrintKeyValue("Path", a.store.Path(), 10)
	series, err := a.store.Snapshot()
	switch {
	case errors.Is(err, incc.ErrNoSnapshot):
		PrintKeyValue("Status", "missing (next load fetches)", 10)
	case err != nil:
		PrintKeyValue("Status", "unreadable: "+err.Error(), 10)
	default:
		latest, _ := series.Latest()
		status := "fresh"
		if a.store.IsStale(series) {
			status = "stale (next load fetches)"
		}
		PrintKeyValue("Status", status, 10)
		PrintKeyValue("Points", fmt.Sprintf("%d", series.Len()), 10)
		PrintKeyValue("Latest", latest.Date.Format("01/2006"), 10)
	}

	locked, err := a.locker().Locked(ctx)
	if err != nil {
		PrintKeyValue("Lock", "error: "+err.Error(), 10)
	} else {
		PrintKeyValue("Lock", fmt.Sprintf("%s (held: %v)", a.cfg.INCC.LockBackend, locked), 10)
	}
	fmt.Println()

	// Database
	if a.db == nil {
		PrintInfo("DATABASE_URL not set; registry and mirror disabled")
	} else {
		fmt.Printf("🗄️  Database: %s\n", maskPassword(a.cfg.Database.URL))
		status, err := a.db.HealthCheck(ctx)
		if err != nil {
			return fmt.Errorf("❌ Health check failed: %w", err)
		}
		PrintKeyValue("Healthy", fmt.Sprintf("%v", status.Healthy), 14)
		PrintKeyValue("Response Time", status.ResponseTime.String(), 14)
		PrintKeyValue("Connections", fmt.Sprintf("%d/%d (idle %d)", status.Stats.TotalConns, status.Stats.MaxConns, status.Stats.IdleConns), 14)
		if mirrored, err := a.mirror.LoadSeries(ctx); err == nil {
			PrintKeyValue("Mirrored", fmt.Sprintf("%d points", mirrored.Len()), 14)
		}
	}
	fmt.Println()

	// Redis
	if a.redis.Enabled() {
		if err := a.redis.Redis().Ping(ctx).Err(); err != nil {
			return fmt.Errorf("❌ Redis ping failed: %w", err)
		}
		PrintSuccess("Redis reachable at " + a.cfg.Redis.Addr())
	} else {
		PrintInfo("Redis disabled")
	}

	fmt.Println("\n✅ All checks passed!")
	return nil
}
