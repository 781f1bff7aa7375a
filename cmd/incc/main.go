package main

import (
	"os"

	"github.com/wonny/incc/backend/cmd/incc/commands"
)

// main is the entry point for the INCC CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/incc [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
