package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voltlab/regimeflow/internal/contracts"
	"github.com/voltlab/regimeflow/internal/features"
	"github.com/voltlab/regimeflow/internal/marketdata"
	"github.com/voltlab/regimeflow/internal/portfolio"
	strategycfg "github.com/voltlab/regimeflow/internal/strategy"
	"github.com/voltlab/regimeflow/pkg/logger"
	"github.com/voltlab/regimeflow/pkg/metrics"
)

// momentumWindow is the direction lookback; the evaluator needs one extra
// close for the base of the 20-day return.
const momentumWindow = 20

// Options toggles optional orchestrator behavior per run.
type Options struct {
	// SkipIngest suppresses the external collector trigger (backfills over
	// already-complete history).
	SkipIngest bool
}

// Orchestrator runs the daily pipeline: features → signal → simulation.
// ⭐ SSOT: 일일 파이프라인 실행 순서는 여기서만 정의
// Stages run strictly in order per (symbol, date); a failed stage stops the
// run but keeps completed side effects (re-running is idempotent).
type Orchestrator struct {
	params     strategycfg.Params
	strategy   contracts.Strategy
	engine     *features.Engine
	simulator  *portfolio.Simulator
	prices     contracts.PriceRepository
	signals    contracts.SignalRepository
	regimes    contracts.RegimeRepository
	trades     contracts.TradeRepository
	portfolios contracts.PortfolioRepository
	strategies contracts.StrategyRepository
	ingest     *marketdata.IngestClient
	metrics    *metrics.Metrics
	logger     *logger.Logger

	workers int

	// simMu serializes the simulate+persist stage. The portfolio state is
	// keyed (strategy, date) and shared by every symbol, so concurrent
	// batch workers must not read-modify-write it in parallel.
	simMu sync.Mutex

	ensureOnce sync.Once
	ensureErr  error
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Params     strategycfg.Params
	Strategy   contracts.Strategy
	Engine     *features.Engine
	Simulator  *portfolio.Simulator
	Prices     contracts.PriceRepository
	Signals    contracts.SignalRepository
	Regimes    contracts.RegimeRepository
	Trades     contracts.TradeRepository
	Portfolios contracts.PortfolioRepository
	Strategies contracts.StrategyRepository
	Ingest     *marketdata.IngestClient
	Metrics    *metrics.Metrics
	Workers    int
}

// NewOrchestrator creates a pipeline orchestrator.
func NewOrchestrator(deps Deps, log *logger.Logger) *Orchestrator {
	workers := deps.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Orchestrator{
		params:     deps.Params,
		strategy:   deps.Strategy,
		engine:     deps.Engine,
		simulator:  deps.Simulator,
		prices:     deps.Prices,
		signals:    deps.Signals,
		regimes:    deps.Regimes,
		trades:     deps.Trades,
		portfolios: deps.Portfolios,
		strategies: deps.Strategies,
		ingest:     deps.Ingest,
		metrics:    deps.Metrics,
		workers:    workers,
		logger:     log,
	}
}

// RunDay executes the full pipeline for one (symbol, date). The result always
// comes back; failures are carried in its error list, not a returned error.
func (o *Orchestrator) RunDay(ctx context.Context, symbol string, date time.Time, opts Options) *contracts.RunResult {
	result := &contracts.RunResult{
		Symbol: symbol,
		Date:   date,
		Steps:  make(map[contracts.Step]contracts.StepResult),
	}

	if err := o.ensureStrategy(ctx); err != nil {
		result.Errors = append(result.Errors, err.Error())
		o.observeRun(result)
		return result
	}

	if o.ingest != nil && o.ingest.Enabled() && !opts.SkipIngest {
		if err := o.ingest.TriggerRefresh(ctx, symbol, date); err != nil {
			// Stale-but-present data still produces a valid point-in-time run.
			o.logger.WithError(err).WithField("symbol", symbol).Warn("Ingest trigger failed, continuing with stored data")
		}
	}

	rec, ok := o.runFeatures(ctx, symbol, date, result)
	if !ok {
		o.observeRun(result)
		return result
	}

	sig, ok := o.runSignal(ctx, symbol, date, rec, result)
	if !ok {
		o.observeRun(result)
		return result
	}
	result.Signal = sig

	state, ok := o.runSimulation(ctx, symbol, date, result)
	if !ok {
		o.observeRun(result)
		return result
	}
	result.Portfolio = state

	result.Success = true
	o.observeRun(result)

	o.logger.WithSymbolDate(symbol, date).WithFields(map[string]interface{}{
		"signal": sig.Type,
		"nav":    state.NAV,
	}).Info("Pipeline run completed")
	return result
}

// ensureStrategy registers the strategy metadata once per process.
func (o *Orchestrator) ensureStrategy(ctx context.Context) error {
	o.ensureOnce.Do(func() {
		meta, err := strategycfg.Metadata(&o.params)
		if err != nil {
			o.ensureErr = fmt.Errorf("build strategy metadata: %w", err)
			return
		}
		if _, err := o.strategies.Ensure(ctx, meta); err != nil {
			o.ensureErr = fmt.Errorf("ensure strategy metadata: %w", err)
		}
	})
	return o.ensureErr
}

func (o *Orchestrator) runFeatures(ctx context.Context, symbol string, date time.Time, result *contracts.RunResult) (*contracts.FeatureRecord, bool) {
	start := time.Now()
	rec, err := o.engine.Compute(ctx, symbol, date)
	o.observeStep(contracts.StepFeatures, start)

	if contracts.IsNotReady(err) {
		// Defined early-history state, not a failure.
		result.NotReady = true
		result.Steps[contracts.StepFeatures] = contracts.StepResult{Skipped: true, Reason: err.Error()}
		o.logger.WithField("symbol", symbol).Debug("Symbol not ready, skipping")
		return nil, false
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("features: %v", err))
		result.Steps[contracts.StepFeatures] = contracts.StepResult{Reason: err.Error()}
		return nil, false
	}
	result.Steps[contracts.StepFeatures] = contracts.StepResult{Completed: true}
	return rec, true
}

func (o *Orchestrator) runSignal(ctx context.Context, symbol string, date time.Time, rec *contracts.FeatureRecord, result *contracts.RunResult) (*contracts.Signal, bool) {
	start := time.Now()
	sig, err := o.generateSignal(ctx, symbol, date, rec)
	o.observeStep(contracts.StepSignal, start)

	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("signal: %v", err))
		result.Steps[contracts.StepSignal] = contracts.StepResult{Reason: err.Error()}
		return nil, false
	}
	result.Steps[contracts.StepSignal] = contracts.StepResult{Completed: true}
	if o.metrics != nil {
		o.metrics.SignalsGenerated.WithLabelValues(string(sig.Type)).Inc()
	}
	return sig, true
}

// generateSignal assembles the strategy input from persisted history only,
// invokes the evaluator, and persists the signal plus its regime state.
func (o *Orchestrator) generateSignal(ctx context.Context, symbol string, date time.Time, rec *contracts.FeatureRecord) (*contracts.Signal, error) {
	bars, err := o.prices.GetUpTo(ctx, symbol, date, momentumWindow+1)
	if err != nil {
		return nil, fmt.Errorf("load closes: %w", err)
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.EffectiveClose()
	}

	lookback := o.params.Risk.LookbackDays
	priorSignals, err := o.signals.GetPrior(ctx, o.strategy.ID(), symbol, date, lookback)
	if err != nil {
		return nil, fmt.Errorf("load prior signals: %w", err)
	}
	priorStates, err := o.portfolios.GetPrior(ctx, o.strategy.ID(), date, lookback)
	if err != nil {
		return nil, fmt.Errorf("load prior states: %w", err)
	}

	in := contracts.StrategyInput{
		Features:     rec,
		Closes:       closes,
		PriorSignals: priorSignals,
		PriorStates:  priorStates,
	}
	sig, err := o.strategy.GenerateSignal(ctx, symbol, date, in)
	if err != nil {
		return nil, err
	}

	if err := o.signals.Save(ctx, sig); err != nil {
		return nil, fmt.Errorf("save signal: %w", err)
	}
	regime := &contracts.RegimeState{
		StrategyID: sig.StrategyID,
		Symbol:     symbol,
		Date:       date,
		RegimeOn:   sig.Explanation.Regime.On,
		Rules:      sig.Explanation.Regime.Rules,
	}
	if err := o.regimes.Save(ctx, regime); err != nil {
		return nil, fmt.Errorf("save regime state: %w", err)
	}
	return sig, nil
}

func (o *Orchestrator) runSimulation(ctx context.Context, symbol string, date time.Time, result *contracts.RunResult) (*contracts.PortfolioState, bool) {
	start := time.Now()

	// Features and signals are per-symbol and fan out freely; the portfolio
	// is one row per (strategy, date), so only one symbol may simulate
	// against it at a time.
	o.simMu.Lock()
	state, trade, err := o.simulator.SimulateDay(ctx, o.strategy.ID(), symbol, date)
	if err == nil {
		err = o.persistSimulation(ctx, state, trade)
	}
	o.simMu.Unlock()

	o.observeStep(contracts.StepSimulation, start)

	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("simulation: %v", err))
		result.Steps[contracts.StepSimulation] = contracts.StepResult{Reason: err.Error()}
		return nil, false
	}
	result.Steps[contracts.StepSimulation] = contracts.StepResult{Completed: true}
	return state, true
}

func (o *Orchestrator) persistSimulation(ctx context.Context, state *contracts.PortfolioState, trade *contracts.Trade) error {
	if trade != nil {
		if err := o.trades.Save(ctx, trade); err != nil {
			return fmt.Errorf("save trade: %w", err)
		}
	}
	if err := o.portfolios.Save(ctx, state); err != nil {
		return fmt.Errorf("save portfolio state: %w", err)
	}
	return nil
}

// RunBatch runs every symbol for one date through a bounded worker pool.
// Feature and signal stages are per-symbol and run in parallel; the
// simulation stage is serialized because every symbol mutates the one shared
// portfolio state. Dates are not independent, so callers sequence dates.
func (o *Orchestrator) RunBatch(ctx context.Context, symbols []string, date time.Time, opts Options) *contracts.BatchResult {
	batch := &contracts.BatchResult{
		Date:    date,
		Results: make(map[string]*contracts.RunResult, len(symbols)),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.workers)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result := o.RunDay(ctx, symbol, date, opts)

			mu.Lock()
			defer mu.Unlock()
			batch.Results[symbol] = result
			switch {
			case result.Success:
				batch.Succeeded++
			case result.NotReady:
				batch.NotReady++
			default:
				batch.Failed++
			}
		}(symbol)
	}
	wg.Wait()

	o.logger.WithFields(map[string]interface{}{
		"date":      date.Format("2006-01-02"),
		"symbols":   len(symbols),
		"succeeded": batch.Succeeded,
		"failed":    batch.Failed,
		"not_ready": batch.NotReady,
	}).Info("Batch run completed")
	return batch
}

// RunRange walks [from, to] date by date, in order. The portfolio chain makes
// each date depend on its predecessor, so dates never run concurrently.
func (o *Orchestrator) RunRange(ctx context.Context, symbols []string, from, to time.Time, opts Options) ([]*contracts.BatchResult, error) {
	if to.Before(from) {
		return nil, &contracts.ConfigurationError{Field: "date_range", Message: "end date before start date"}
	}

	var batches []*contracts.BatchResult
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return batches, err
		}
		batches = append(batches, o.RunBatch(ctx, symbols, date, opts))
	}
	return batches, nil
}

func (o *Orchestrator) observeRun(result *contracts.RunResult) {
	if o.metrics == nil {
		return
	}
	status := "failed"
	switch {
	case result.Success:
		status = "success"
	case result.NotReady:
		status = "not_ready"
	}
	o.metrics.PipelineRuns.WithLabelValues(status).Inc()
}

func (o *Orchestrator) observeStep(step contracts.Step, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.PipelineDuration.WithLabelValues(string(step)).Observe(time.Since(start).Seconds())
}
