package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/voltlab/regimeflow/internal/pipeline"
)

// pipelineCmd represents the pipeline command
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "일일 파이프라인 실행",
	Long: `피처 계산 → 시그널 평가 → 포트폴리오 시뮬레이션을 순서대로 실행합니다.

Example:
  go run ./cmd/regimeflow pipeline run --symbol NVDA --date 2026-08-25
  go run ./cmd/regimeflow pipeline batch --from 2026-01-02 --to 2026-08-25`,
}

var (
	pipelineRunCmd = &cobra.Command{
		Use:   "run",
		Short: "단일 종목 실행",
		RunE:  runPipeline,
	}

	pipelineBatchCmd = &cobra.Command{
		Use:   "batch",
		Short: "유니버스 전체를 날짜 순서대로 실행",
		RunE:  runPipelineBatch,
	}

	// Flags
	pipelineSymbol     string
	pipelineDate       string
	pipelineFrom       string
	pipelineTo         string
	pipelineSymbols    []string
	pipelineSkipIngest bool
)

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.AddCommand(pipelineRunCmd)
	pipelineCmd.AddCommand(pipelineBatchCmd)

	pipelineRunCmd.Flags().StringVar(&pipelineSymbol, "symbol", "", "종목 심볼 (필수)")
	pipelineRunCmd.Flags().StringVar(&pipelineDate, "date", "", "평가 날짜 (YYYY-MM-DD, 기본: 오늘)")
	pipelineRunCmd.Flags().BoolVar(&pipelineSkipIngest, "skip-ingest", false, "수집 트리거 생략")
	pipelineRunCmd.MarkFlagRequired("symbol")

	pipelineBatchCmd.Flags().StringVar(&pipelineFrom, "from", "", "시작 날짜 (YYYY-MM-DD, 필수)")
	pipelineBatchCmd.Flags().StringVar(&pipelineTo, "to", "", "종료 날짜 (YYYY-MM-DD, 기본: from)")
	pipelineBatchCmd.Flags().StringSliceVar(&pipelineSymbols, "symbols", nil, "종목 목록 (기본: PIPELINE_SYMBOLS)")
	pipelineBatchCmd.Flags().BoolVar(&pipelineSkipIngest, "skip-ingest", false, "수집 트리거 생략")
	pipelineBatchCmd.MarkFlagRequired("from")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if pipelineDate != "" {
		parsed, err := time.Parse("2006-01-02", pipelineDate)
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

	fmt.Printf("=== RegimeFlow Pipeline ===\n\n")
	fmt.Printf("📊 Symbol: %s\n", pipelineSymbol)
	fmt.Printf("📅 Date:   %s\n\n", date.Format("2006-01-02"))

	result := a.orchestrator.RunDay(context.Background(), pipelineSymbol, date, pipeline.Options{SkipIngest: pipelineSkipIngest})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Success && !result.NotReady {
		return fmt.Errorf("pipeline run failed")
	}
	return nil
}

func runPipelineBatch(cmd *cobra.Command, args []string) error {
	from, err := time.Parse("2006-01-02", pipelineFrom)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	to := from
	if pipelineTo != "" {
		to, err = time.Parse("2006-01-02", pipelineTo)
		if err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	symbols := pipelineSymbols
	if len(symbols) == 0 {
		symbols = a.cfg.Pipeline.Symbols
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols: pass --symbols or set PIPELINE_SYMBOLS")
	}

	fmt.Printf("=== RegimeFlow Batch ===\n\n")
	fmt.Printf("📅 Period:  %s ~ %s\n", from.Format("2006-01-02"), to.Format("2006-01-02"))
	fmt.Printf("📊 Symbols: %d\n\n", len(symbols))

	batches, err := a.orchestrator.RunRange(context.Background(), symbols, from, to, pipeline.Options{SkipIngest: pipelineSkipIngest})
	if err != nil {
		return err
	}

	var succeeded, failed, notReady int
	for _, b := range batches {
		succeeded += b.Succeeded
		failed += b.Failed
		notReady += b.NotReady
	}
	fmt.Printf("✅ Succeeded: %d\n", succeeded)
	fmt.Printf("⏸  Not ready: %d\n", notReady)
	fmt.Printf("❌ Failed:    %d\n", failed)

	if failed > 0 {
		return fmt.Errorf("%d runs failed", failed)
	}
	return nil
}
