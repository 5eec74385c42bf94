package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/voltlab/regimeflow/pkg/httputil"
	"github.com/voltlab/regimeflow/pkg/logger"
)

// IngestClient triggers the external data collector to refresh a symbol's
// price and options history before a pipeline run. Ingestion itself lives in
// a separate service; this is a fire-and-confirm call.
type IngestClient struct {
	baseURL string
	http    *httputil.Client
	logger  *logger.Logger
}

// NewIngestClient creates an ingest trigger client. An empty baseURL disables
// triggering (Enabled returns false).
func NewIngestClient(baseURL string, log *logger.Logger) *IngestClient {
	return &IngestClient{
		baseURL: baseURL,
		http:    httputil.NewWithTimeout(log, 60*time.Second).WithRateLimit(2, 1),
		logger:  log,
	}
}

// Enabled reports whether an ingest endpoint is configured.
func (c *IngestClient) Enabled() bool {
	return c.baseURL != ""
}

// TriggerRefresh asks the collector to bring a symbol's data up to date.
func (c *IngestClient) TriggerRefresh(ctx context.Context, symbol string, date time.Time) error {
	if !c.Enabled() {
		return nil
	}

	payload := map[string]string{
		"symbol": symbol,
		"date":   date.Format("2006-01-02"),
	}
	resp, err := c.http.PostJSON(ctx, c.baseURL+"/api/v1/ingest/refresh", payload)
	if err != nil {
		return fmt.Errorf("trigger ingest for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("trigger ingest for %s: status %d", symbol, resp.StatusCode)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"date":   date.Format("2006-01-02"),
	}).Debug("Ingest refresh triggered")
	return nil
}
