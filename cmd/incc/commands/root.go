package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "incc",
	Short: "INCC 지수 수집 및 공사비 보정 도구",
	Long: `INCC Unified CLI

Secovi에서 INCC 월간 지수를 수집하고,
과거 공사비를 현재 가치로 보정해 프로젝트 간 비교표를 만듭니다.

Usage:
  go run ./cmd/incc [command]

Examples:
  go run ./cmd/incc series show
  go run ./cmd/incc adjust --cost "1.000,00" --area 10 --base-date 2024-01-15
  go run ./cmd/incc matrix --file registry.json --projects ABC,XYZ
  go run ./cmd/incc api`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Flags override .env; config.Load stays the only reader.
		if cmd.Flags().Changed("env") {
			_ = os.Setenv("ENV", env)
		}
		if verbose {
			_ = os.Setenv("LOG_LEVEL", "debug")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production|test)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
