package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/voltlab/regimeflow/internal/contracts"
	"github.com/voltlab/regimeflow/pkg/logger"
	"github.com/voltlab/regimeflow/pkg/redis"
)

// ExplainHandler serves persisted decisions back for explainability:
// signals with full explanations, regime states, portfolio snapshots.
type ExplainHandler struct {
	strategyID string
	signals    contracts.SignalRepository
	regimes    contracts.RegimeRepository
	portfolios contracts.PortfolioRepository
	cache      *redis.Cache
	logger     *logger.Logger
}

// NewExplainHandler creates a new explainability handler.
func NewExplainHandler(
	strategyID string,
	signals contracts.SignalRepository,
	regimes contracts.RegimeRepository,
	portfolios contracts.PortfolioRepository,
	cache *redis.Cache,
	log *logger.Logger,
) *ExplainHandler {
	return &ExplainHandler{
		strategyID: strategyID,
		signals:    signals,
		regimes:    regimes,
		portfolios: portfolios,
		cache:      cache,
		logger:     log,
	}
}

// GetSignal returns the persisted signal with its explanation
// GET /api/v1/signals/{symbol}/{date}
func (h *ExplainHandler) GetSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	symbol := vars["symbol"]
	date, err := time.Parse(dateLayout, vars["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	// Signals are immutable once their date is closed; cache aggressively.
	cacheKey := redis.SignalKey(h.strategyID, symbol, vars["date"])
	var cached contracts.Signal
	if found, _ := h.cache.Get(ctx, cacheKey, &cached); found {
		respondJSON(w, http.StatusOK, &cached)
		return
	}

	sig, err := h.signals.GetByKey(ctx, h.strategyID, symbol, date)
	if err != nil {
		if contracts.IsMissingData(err) {
			respondError(w, http.StatusNotFound, "No signal for that symbol and date")
			return
		}
		h.logger.WithError(err).Error("Signal lookup failed")
		respondError(w, http.StatusInternalServerError, "Signal lookup failed")
		return
	}

	if err := h.cache.Set(ctx, cacheKey, sig, redis.TTLDaily); err != nil {
		h.logger.WithError(err).Warn("Signal cache write failed")
	}
	respondJSON(w, http.StatusOK, sig)
}

// GetRegime returns the persisted regime state
// GET /api/v1/regimes/{symbol}/{date}
func (h *ExplainHandler) GetRegime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	symbol := vars["symbol"]
	date, err := time.Parse(dateLayout, vars["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	cacheKey := redis.RegimeKey(h.strategyID, symbol, vars["date"])
	var cached contracts.RegimeState
	if found, _ := h.cache.Get(ctx, cacheKey, &cached); found {
		respondJSON(w, http.StatusOK, &cached)
		return
	}

	state, err := h.regimes.GetByKey(ctx, h.strategyID, symbol, date)
	if err != nil {
		if contracts.IsMissingData(err) {
			respondError(w, http.StatusNotFound, "No regime state for that symbol and date")
			return
		}
		h.logger.WithError(err).Error("Regime lookup failed")
		respondError(w, http.StatusInternalServerError, "Regime lookup failed")
		return
	}

	if err := h.cache.Set(ctx, cacheKey, state, redis.TTLDaily); err != nil {
		h.logger.WithError(err).Warn("Regime cache write failed")
	}
	respondJSON(w, http.StatusOK, state)
}

// GetPortfolio returns the portfolio state for a date
// GET /api/v1/portfolio/{date}
func (h *ExplainHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date, err := time.Parse(dateLayout, mux.Vars(r)["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	state, err := h.portfolios.GetByDate(ctx, h.strategyID, date)
	if err != nil {
		h.logger.WithError(err).Error("Portfolio lookup failed")
		respondError(w, http.StatusInternalServerError, "Portfolio lookup failed")
		return
	}
	if state == nil {
		respondError(w, http.StatusNotFound, "No portfolio state for that date")
		return
	}
	respondJSON(w, http.StatusOK, state)
}
