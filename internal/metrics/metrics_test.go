package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	causalimpact "github.com/gabriellapppaixao/causal-impact-mvp"
	"github.com/gabriellapppaixao/causal-impact-mvp/period"
	"github.com/gabriellapppaixao/causal-impact-mvp/statespace"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	testData := map[string]struct {
		err      error
		expected string
	}{
		"success":     {expected: OutcomeSuccess},
		"input error": {err: fmt.Errorf("bad, %w", period.ErrOutOfRange), expected: OutcomeInputError},
		"fit error":   {err: fmt.Errorf("bad, %w", statespace.ErrFitConvergence), expected: OutcomeFitError},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, Outcome(td.err))
		})
	}
}

func TestObserveRun(t *testing.T) {
	m := New()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &causalimpact.Report{
		Periods: period.PrePost{
			Pre:  period.New(start, start.AddDate(0, 0, 29)),
			Post: period.New(start.AddDate(0, 0, 30), start.AddDate(0, 0, 39)),
		},
	}
	m.ObserveRun(r, nil, 20*time.Millisecond)
	m.ObserveRun(nil, period.ErrEmptyPeriod, time.Millisecond)
	m.ObserveRun(nil, statespace.ErrFitConvergence, time.Second)
	m.ObserveRun(nil, statespace.ErrFitConvergence, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(OutcomeInputError)))

	count, err := m.Count(OutcomeFitError)
	require.NoError(t, err)
	assert.Equal(t, 2.0, count)

	var nilMetrics *Metrics
	nilMetrics.ObserveRun(nil, nil, 0)
	_, err = nilMetrics.Count(OutcomeSuccess)
	assert.ErrorIs(t, err, ErrNoMetrics)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRun(nil, statespace.ErrFitConvergence, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `causalimpact_runs_total{outcome="fit_error"} 1`)
	assert.Contains(t, body, "causalimpact_run_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}
