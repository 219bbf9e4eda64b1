package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveTargetDuration("passion", 20*time.Minute)
	pr.IncTargetOutcome("succeeded")
	pr.IncTargetOutcome("failed")
	pr.IncTargetOutcome("failed")
	pr.ObserveTransferDuration("remote", 3*time.Second)
	pr.IncTransferResult("remote", TransferSuccess)
	pr.IncTransferResult("local", TransferFailed)
	pr.SetQueueDepth("remote", 4)
	pr.ObserveRunDuration("nightly", time.Hour)
	pr.IncRunOutcome("nightly", RunCompleted)

	assert.InDelta(t, 2, testutil.ToFloat64(pr.targetOutcomes.WithLabelValues("failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.transferResults.WithLabelValues("local", "failed")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(pr.queueDepth.WithLabelValues("remote")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.runOutcomes.WithLabelValues("nightly", "completed")), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, mfs, 7)
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncRunOutcome("release", RunAborted)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `nightlybuilder_run_outcomes_total{outcome="aborted",workflow="release"} 1`))
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncTargetOutcome("failed")
		pr.SetQueueDepth("local", 1)
	})
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncTransferResult("remote", TransferSuccess)
	r.SetQueueDepth("remote", 0)
}
