package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()

	// Recording after double-init must not panic.
	ObserveDomainProcessed("discover", "success")
	ObserveRetry()
	ObserveDrift()
	PipelineStarted()
	PipelineFinished()
	ObserveFetchDuration("headless", 1200*time.Millisecond)
	ObservePatternPersisted("query_param")
}

func TestHandlerServesMetrics(t *testing.T) {
	ObserveDomainProcessed("discover", "inconclusive")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "searchscout_domains_processed_total")
}
