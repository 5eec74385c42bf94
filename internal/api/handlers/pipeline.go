package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/voltlab/regimeflow/internal/contracts"
	"github.com/voltlab/regimeflow/internal/pipeline"
	"github.com/voltlab/regimeflow/pkg/logger"
	"github.com/voltlab/regimeflow/pkg/redis"
)

const dateLayout = "2006-01-02"

// PipelineHandler handles pipeline execution and reporting endpoints
// ⭐ SSOT: 파이프라인 API 핸들러는 이 구조체에서만
type PipelineHandler struct {
	orchestrator *pipeline.Orchestrator
	symbols      []string
	cache        *redis.Cache
	logger       *logger.Logger
}

// NewPipelineHandler creates a new pipeline handler. symbols is the default
// batch universe when a request names none.
func NewPipelineHandler(orchestrator *pipeline.Orchestrator, symbols []string, cache *redis.Cache, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		orchestrator: orchestrator,
		symbols:      symbols,
		cache:        cache,
		logger:       log,
	}
}

// RunRequest represents a single-symbol pipeline run request
type RunRequest struct {
	Symbol     string `json:"symbol"`
	Date       string `json:"date"` // YYYY-MM-DD
	SkipIngest bool   `json:"skip_ingest,omitempty"`
}

// Run executes the pipeline for one (symbol, date)
// POST /api/v1/pipeline/run
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	result := h.orchestrator.RunDay(r.Context(), req.Symbol, date, pipeline.Options{SkipIngest: req.SkipIngest})
	respondJSON(w, http.StatusOK, result)
}

// BatchRequest represents a multi-symbol pipeline run request
type BatchRequest struct {
	Symbols    []string `json:"symbols,omitempty"`
	From       string   `json:"from"`         // YYYY-MM-DD
	To         string   `json:"to,omitempty"` // defaults to From
	SkipIngest bool     `json:"skip_ingest,omitempty"`
}

// Batch executes the pipeline for a symbol universe over a date range
// POST /api/v1/pipeline/batch
func (h *PipelineHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = h.symbols
	}
	if len(symbols) == 0 {
		respondError(w, http.StatusBadRequest, "no symbols requested and no default universe configured")
		return
	}

	from, err := time.Parse(dateLayout, req.From)
	if err != nil {
		respondError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to := from
	if req.To != "" {
		to, err = time.Parse(dateLayout, req.To)
		if err != nil {
			respondError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
	}

	batches, err := h.orchestrator.RunRange(r.Context(), symbols, from, to, pipeline.Options{SkipIngest: req.SkipIngest})
	if err != nil {
		var cfgErr *contracts.ConfigurationError
		if errors.As(err, &cfgErr) {
			respondError(w, http.StatusBadRequest, cfgErr.Error())
			return
		}
		h.logger.WithError(err).Error("Batch run failed")
		respondError(w, http.StatusInternalServerError, "Batch run failed")
		return
	}
	respondJSON(w, http.StatusOK, batches)
}

// Report returns the performance summary over a date range
// GET /api/v1/report?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *PipelineHandler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, err := time.Parse(dateLayout, r.URL.Query().Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse(dateLayout, r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}

	// Reports over closed ranges are stable; cache them briefly.
	cacheKey := redis.ReportKey("default", from.Format(dateLayout), to.Format(dateLayout))
	var cached contracts.Report
	if found, _ := h.cache.Get(ctx, cacheKey, &cached); found {
		respondJSON(w, http.StatusOK, &cached)
		return
	}

	report, err := h.orchestrator.Report(ctx, from, to)
	if err != nil {
		if contracts.IsMissingData(err) {
			respondError(w, http.StatusNotFound, "No portfolio history in range")
			return
		}
		var cfgErr *contracts.ConfigurationError
		if errors.As(err, &cfgErr) {
			respondError(w, http.StatusBadRequest, cfgErr.Error())
			return
		}
		h.logger.WithError(err).Error("Report generation failed")
		respondError(w, http.StatusInternalServerError, "Report generation failed")
		return
	}

	if err := h.cache.Set(ctx, cacheKey, report, redis.TTLMedium); err != nil {
		h.logger.WithError(err).Warn("Report cache write failed")
	}
	respondJSON(w, http.StatusOK, report)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
