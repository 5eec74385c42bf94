package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/voltlab/regimeflow/internal/api/handlers"
	"github.com/voltlab/regimeflow/pkg/database"
	"github.com/voltlab/regimeflow/pkg/logger"
	"github.com/voltlab/regimeflow/pkg/metrics"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(pipelineHandler *handlers.PipelineHandler, explainHandler *handlers.ExplainHandler, db *database.DB, m *metrics.Metrics, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(db)).Methods("GET")
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods("GET")
	}

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	// Pipeline endpoints
	api.HandleFunc("/pipeline/run", pipelineHandler.Run).Methods("POST")
	api.HandleFunc("/pipeline/batch", pipelineHandler.Batch).Methods("POST")
	api.HandleFunc("/report", pipelineHandler.Report).Methods("GET")

	// Explainability endpoints
	api.HandleFunc("/signals/{symbol}/{date}", explainHandler.GetSignal).Methods("GET")
	api.HandleFunc("/regimes/{symbol}/{date}", explainHandler.GetRegime).Methods("GET")
	api.HandleFunc("/portfolio/{date}", explainHandler.GetPortfolio).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status, including the database
// pool when one is wired.
func healthCheckHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "regimeflow-api",
		}
		code := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			health, err := db.HealthCheck(ctx)
			body["database"] = health
			if err != nil {
				body["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
