package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/stylus/internal/errcat"
)

func TestResult(t *testing.T) {
	assert.Equal(t, ResultOK, Result(nil))
	assert.Equal(t, ResultInterrupted, Result(errcat.New(errcat.DownloadInterrupted)))
	assert.Equal(t, ResultNotLoaded, Result(fmt.Errorf("forward: %w", errcat.New(errcat.ModuleNotLoaded))))
	assert.Equal(t, ResultError, Result(errcat.New(errcat.DownloadFailed)))
	assert.Equal(t, ResultError, Result(errors.New("boom")))
}

func TestMetrics_Observe(t *testing.T) {
	m := New()

	m.ObserveLoad("candy", nil)
	m.ObserveLoad("candy", errcat.New(errcat.DownloadInterrupted))
	m.ObserveForward("candy", nil, 20*time.Millisecond)
	m.ObserveForward("candy", errcat.New(errcat.ModuleNotLoaded), time.Millisecond)
	m.SetLoaded(1)

	assert.InDelta(t, 1, testutil.ToFloat64(m.loads.WithLabelValues("candy", ResultOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.loads.WithLabelValues("candy", ResultInterrupted)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.forwards.WithLabelValues("candy", ResultNotLoaded)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.loaded), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.forwardDuration))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveLoad("candy", nil)
		m.ObserveForward("candy", nil, time.Second)
		m.SetLoaded(3)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveLoad("candy", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `stylus_model_loads_total{model_id="candy",result="ok"} 1`)
}
