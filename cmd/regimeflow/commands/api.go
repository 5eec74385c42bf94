package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voltlab/regimeflow/internal/api"
	"github.com/voltlab/regimeflow/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 실행",
	Long: `파이프라인 실행과 설명 가능성 조회를 제공하는 HTTP API 서버.

Example:
  go run ./cmd/regimeflow api`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	cache := a.cache()
	pipelineHandler := handlers.NewPipelineHandler(a.orchestrator, a.cfg.Pipeline.Symbols, cache, a.log)
	explainHandler := handlers.NewExplainHandler(
		a.params.Meta.StrategyID,
		a.signals, a.regimes, a.portfolios,
		cache, a.log,
	)

	router := api.NewRouter(pipelineHandler, explainHandler, a.db, a.metrics, a.log)
	server := api.New(a.cfg, a.log, router)

	// Graceful shutdown on SIGINT/SIGTERM
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
