package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voltlab/regimeflow/internal/scheduler"
	"github.com/voltlab/regimeflow/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "장 마감 후 파이프라인 스케줄러 실행",
	Long: `설정된 cron 일정에 따라 일일 파이프라인을 자동 실행합니다.

Example:
  go run ./cmd/regimeflow scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	sched := scheduler.New(a.log)
	if err := sched.AddJob(jobs.NewDailyPipelineJob(a.orchestrator, a.cfg, a.log)); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	return nil
}
