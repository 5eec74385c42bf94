package commands

import (
	"fmt"

	"github.com/voltlab/regimeflow/internal/features"
	"github.com/voltlab/regimeflow/internal/marketdata"
	"github.com/voltlab/regimeflow/internal/pipeline"
	"github.com/voltlab/regimeflow/internal/portfolio"
	strategycfg "github.com/voltlab/regimeflow/internal/strategy"
	"github.com/voltlab/regimeflow/internal/strategy/volregime"
	"github.com/voltlab/regimeflow/pkg/config"
	"github.com/voltlab/regimeflow/pkg/database"
	"github.com/voltlab/regimeflow/pkg/logger"
	"github.com/voltlab/regimeflow/pkg/metrics"
	"github.com/voltlab/regimeflow/pkg/redis"
)

// app bundles the wired service graph for CLI commands
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	db           *database.DB
	redis        *redis.Client
	params       strategycfg.Params
	orchestrator *pipeline.Orchestrator
	metrics      *metrics.Metrics

	signals    *strategycfg.SignalRepository
	regimes    *strategycfg.RegimeRepository
	portfolios *portfolio.StateRepository
}

// newApp loads config and wires every component the pipeline needs.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		redisClient = nil
	}

	params := strategycfg.DefaultParams()
	paramsPath := paramsFile
	if paramsPath == "" {
		paramsPath = cfg.Pipeline.ParamsPath
	}
	if paramsPath != "" {
		loaded, err := strategycfg.Load(paramsPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load strategy params: %w", err)
		}
		params = *loaded
	}

	strat, err := volregime.New(params, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build strategy: %w", err)
	}

	pool := db.Pool
	prices := marketdata.NewPriceRepository(pool)
	options := marketdata.NewOptionsRepository(pool)
	featureRepo := features.NewRepository(pool)
	signalRepo := strategycfg.NewSignalRepository(pool)
	regimeRepo := strategycfg.NewRegimeRepository(pool)
	metadataRepo := strategycfg.NewMetadataRepository(pool)
	stateRepo := portfolio.NewStateRepository(pool)
	tradeRepo := portfolio.NewTradeRepository(pool)

	engine := features.NewEngine(prices, options, featureRepo, log)
	simulator := portfolio.NewSimulator(prices, signalRepo, stateRepo, portfolio.Config{
		Timing:          params.Execution.Timing,
		StartingCapital: params.Execution.StartingCapital,
	}, log)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
		Params:     params,
		Strategy:   strat,
		Engine:     engine,
		Simulator:  simulator,
		Prices:     prices,
		Signals:    signalRepo,
		Regimes:    regimeRepo,
		Trades:     tradeRepo,
		Portfolios: stateRepo,
		Strategies: metadataRepo,
		Ingest:     marketdata.NewIngestClient(cfg.Pipeline.IngestURL, log),
		Metrics:    m,
		Workers:    cfg.Pipeline.Workers,
	}, log)

	return &app{
		cfg:          cfg,
		log:          log,
		db:           db,
		redis:        redisClient,
		params:       params,
		orchestrator: orchestrator,
		metrics:      m,
		signals:      signalRepo,
		regimes:      regimeRepo,
		portfolios:   stateRepo,
	}, nil
}

// cache returns a cache helper; disabled when redis is down.
func (a *app) cache() *redis.Cache {
	client := a.redis
	if client == nil {
		client = redis.NewDisabled()
	}
	return redis.NewCache(client, "regimeflow")
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.db.Close()
}
