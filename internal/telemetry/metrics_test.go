package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderCall(t *testing.T) {
	before := testutil.ToFloat64(ProviderCalls.WithLabelValues("ads", "ok"))
	ProviderCall("ads", "ok")
	ProviderCall("ads", "ok")
	assert.Equal(t, before+2, testutil.ToFloat64(ProviderCalls.WithLabelValues("ads", "ok")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RunsTotal.WithLabelValues("completed").Inc()
	ObserveStage("search", time.Now().Add(-time.Second))

	srv := httptest.NewServer(Handler())
	defer srv.Close()
	// A second call must not panic on duplicate registration.
	_ = Handler()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `prospect_pipeline_runs_total{status="completed"}`)
	assert.Contains(t, string(body), `prospect_stage_duration_seconds_bucket{stage="search"`)
}
