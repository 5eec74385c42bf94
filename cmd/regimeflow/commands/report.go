package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "기간 성과 리포트",
	Long: `포트폴리오 체인에서 기간 성과를 집계합니다.

Example:
  go run ./cmd/regimeflow report --from 2026-01-02 --to 2026-08-25`,
	RunE: runReport,
}

var (
	reportFrom string
	reportTo   string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportFrom, "from", "", "시작 날짜 (YYYY-MM-DD, 필수)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "종료 날짜 (YYYY-MM-DD, 기본: 오늘)")
	reportCmd.MarkFlagRequired("from")
}

func runReport(cmd *cobra.Command, args []string) error {
	from, err := time.Parse("2006-01-02", reportFrom)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	to := time.Now().UTC().Truncate(24 * time.Hour)
	if reportTo != "" {
		to, err = time.Parse("2006-01-02", reportTo)
		if err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.orchestrator.Report(context.Background(), from, to)
	if err != nil {
		return err
	}

	fmt.Printf("=== RegimeFlow Report: %s ===\n\n", report.StrategyID)
	fmt.Printf("📅 Period:            %s ~ %s (%d trading days)\n",
		report.StartDate.Format("2006-01-02"), report.EndDate.Format("2006-01-02"), report.TradingDays)
	fmt.Printf("📈 Total Return:      %.2f%%\n", report.TotalReturn*100)
	fmt.Printf("📈 Annualized Return: %.2f%%\n", report.AnnualizedReturn*100)
	fmt.Printf("⚖️  Sharpe Ratio:      %.2f\n", report.SharpeRatio)
	fmt.Printf("📉 Max Drawdown:      %.2f%%\n", report.MaxDrawdown*100)
	fmt.Printf("🔄 Total Trades:      %d\n", report.TotalTrades)
	fmt.Println()
	for sigType, count := range report.SignalCounts {
		fmt.Printf("   %-6s %d\n", sigType, count)
	}
	return nil
}
