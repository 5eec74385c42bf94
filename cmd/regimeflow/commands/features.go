package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/voltlab/regimeflow/internal/contracts"
	"github.com/voltlab/regimeflow/internal/features"
	"github.com/voltlab/regimeflow/internal/marketdata"
)

// featuresCmd computes a feature record without running the rest of the
// pipeline. Useful for inspecting indicator values.
var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "피처 레코드 단독 계산",
	Long: `시그널/시뮬레이션 없이 피처만 계산하고 출력합니다.

Example:
  go run ./cmd/regimeflow features --symbol NVDA --date 2026-08-25`,
	RunE: runFeatures,
}

var (
	featuresSymbol string
	featuresDate   string
)

func init() {
	rootCmd.AddCommand(featuresCmd)

	featuresCmd.Flags().StringVar(&featuresSymbol, "symbol", "", "종목 심볼 (필수)")
	featuresCmd.Flags().StringVar(&featuresDate, "date", "", "계산 날짜 (YYYY-MM-DD, 기본: 오늘)")
	featuresCmd.MarkFlagRequired("symbol")
}

func runFeatures(cmd *cobra.Command, args []string) error {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if featuresDate != "" {
		parsed, err := time.Parse("2006-01-02", featuresDate)
		if err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}
		date = parsed
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	pool := a.db.Pool
	engine := features.NewEngine(
		marketdata.NewPriceRepository(pool),
		marketdata.NewOptionsRepository(pool),
		features.NewRepository(pool),
		a.log,
	)

	rec, err := engine.Compute(context.Background(), featuresSymbol, date)
	if contracts.IsNotReady(err) {
		fmt.Printf("⏸  Not ready: %v\n", err)
		return nil
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
