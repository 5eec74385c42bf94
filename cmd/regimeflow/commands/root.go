package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	paramsFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "regimeflow",
	Short: "RegimeFlow - 변동성 레짐 전략 시뮬레이션 엔진",
	Long: `RegimeFlow Unified CLI

Walk-forward 일일 파이프라인: 피처 계산 → 시그널 평가 → 포트폴리오 시뮬레이션.
모든 결정은 설명 가능한 형태로 저장됩니다.

Usage:
  go run ./cmd/regimeflow [command]

Examples:
  go run ./cmd/regimeflow pipeline run --symbol NVDA --date 2026-08-25
  go run ./cmd/regimeflow pipeline batch --from 2026-01-02 --to 2026-08-25
  go run ./cmd/regimeflow report --from 2026-01-02 --to 2026-08-25
  go run ./cmd/regimeflow api`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&paramsFile, "params", "", "strategy params YAML (default is built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
