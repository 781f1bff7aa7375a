package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/incc/backend/internal/api"
	"github.com/wonny/incc/backend/internal/api/handlers"
	"github.com/wonny/incc/backend/internal/scheduler"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- INCC 시계열 조회/갱신 엔드포인트 제공
- 공사비 보정 및 비교표 엔드포인트 제공
- 지수 갱신 시 WebSocket으로 알림

Endpoints:
  GET  /health             - Health check
  GET  /api/incc/series    - 전체 시계열
  GET  /api/incc/latest    - 최신 지수
  GET  /api/incc/at        - 특정 날짜 지수 (?date=YYYY-MM-DD)
  POST /api/incc/refresh   - 강제 재수집
  POST /api/costs/adjust   - 단가 보정
  POST /api/matrix         - 프로젝트 비교표
  GET  /ws/incc            - 지수 갱신 스트림

Example:
  go run ./cmd/incc api
  go run ./cmd/incc api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "INCC 갱신 스케줄러 함께 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== INCC API Server ===")

	// 1. Wire config, logger, store and database
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	a.log.WithFields(map[string]interface{}{
		"port":     a.cfg.Port,
		"env":      a.cfg.Env,
		"snapshot": a.store.Path(),
		"database": a.db != nil,
	}).Info("Initializing API server")

	// 2. Create handlers
	var reg handlers.RegistrySource
	if a.registry != nil {
		reg = a.registry
	}
	hub := handlers.NewStreamHub(a.store.Snapshot, a.log)
	defer hub.Close()
	a.store.Subscribe(hub.Publish)

	h := api.Handlers{
		INCC:   handlers.NewINCCHandler(a.store, a.log),
		Costs:  handlers.NewCostHandler(a.store, a.adjuster, a.log),
		Matrix: handlers.NewMatrixHandler(a.store, reg, a.builder, a.log),
		Stream: hub,
	}

	// 3. Create router and server
	router := api.NewRouter(h, a.log)
	server := api.New(a.cfg, a.log, router)

	// 4. Optional in-process scheduler
	var sched *scheduler.Scheduler
	if apiWithScheduler {
		sched, err = newScheduler(a)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	// 5. Start server with graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	a.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	PrintList([]string{
		"GET  /health",
		"GET  /api/incc/series",
		"GET  /api/incc/latest",
		"GET  /api/incc/at?date=YYYY-MM-DD",
		"POST /api/incc/refresh",
		"POST /api/costs/adjust",
		"POST /api/matrix",
		"GET  /ws/incc",
	})
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal or a listen failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	a.log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
