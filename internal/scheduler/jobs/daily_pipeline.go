package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/voltlab/regimeflow/internal/pipeline"
	"github.com/voltlab/regimeflow/pkg/config"
	"github.com/voltlab/regimeflow/pkg/logger"
)

// DailyPipelineJob runs the end-of-day pipeline for the configured universe
// ⭐ SSOT: 일일 파이프라인 스케줄은 이 Job에서만
type DailyPipelineJob struct {
	orchestrator *pipeline.Orchestrator
	config       *config.Config
	logger       *logger.Logger
}

// NewDailyPipelineJob creates a new daily pipeline job
func NewDailyPipelineJob(orchestrator *pipeline.Orchestrator, cfg *config.Config, log *logger.Logger) *DailyPipelineJob {
	return &DailyPipelineJob{
		orchestrator: orchestrator,
		config:       cfg,
		logger:       log,
	}
}

// Name returns the job name
func (j *DailyPipelineJob) Name() string {
	return "daily_pipeline"
}

// Schedule returns the cron schedule (after market close)
func (j *DailyPipelineJob) Schedule() string {
	return j.config.Pipeline.Schedule
}

// Run executes the pipeline for today's date
func (j *DailyPipelineJob) Run(ctx context.Context) error {
	symbols := j.config.Pipeline.Symbols
	if len(symbols) == 0 {
		j.logger.Warn("No pipeline symbols configured, skipping daily run")
		return nil
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)
	j.logger.WithFields(map[string]interface{}{
		"date":    date.Format("2006-01-02"),
		"symbols": len(symbols),
	}).Info("Starting scheduled pipeline run")

	batch := j.orchestrator.RunBatch(ctx, symbols, date, pipeline.Options{})
	if batch.Failed > 0 {
		return fmt.Errorf("daily pipeline: %d of %d symbols failed", batch.Failed, len(symbols))
	}
	return nil
}
