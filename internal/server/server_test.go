package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	causalimpact "github.com/gabriellapppaixao/causal-impact-mvp"
	"github.com/gabriellapppaixao/causal-impact-mvp/ingest"
	"github.com/gabriellapppaixao/causal-impact-mvp/internal/config"
	"github.com/gabriellapppaixao/causal-impact-mvp/internal/metrics"
	"github.com/gabriellapppaixao/causal-impact-mvp/period"
	"github.com/gabriellapppaixao/causal-impact-mvp/statespace"
	"github.com/gabriellapppaixao/causal-impact-mvp/timedataset"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func campaignCSV() string {
	n := 60
	t := timedataset.GenerateDays(n, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	y := timedataset.GenerateConstY(n, 100).
		Add(timedataset.GenerateNoise(n, 1.0, 11)).
		Add(timedataset.GenerateStep(t, t[40], 50))

	var b strings.Builder
	b.WriteString("date,visits,orders\n")
	for i := range t {
		fmt.Fprintf(&b, "%s,%.4f,%d\n", t[i].Format(time.DateOnly), y[i], 10+i%3)
	}
	return b.String()
}

func newTestServer(t *testing.T, opt *causalimpact.Options) (*Server, *metrics.Metrics) {
	if opt == nil {
		opt = causalimpact.NewDefaultOptions()
	}
	opt.Logger = discard
	a, err := causalimpact.New(opt)
	require.NoError(t, err)

	m := metrics.New()
	return New(config.Default().Server, a, m, discard), m
}

func uploadRequest(t *testing.T, path, filename, content string, fields map[string]string) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalyze(t *testing.T) {
	s, m := newTestServer(t, nil)

	req := uploadRequest(t, "/api/analyze", "campaign.csv", campaignCSV(), map[string]string{
		"metric":       "visits",
		"intervention": "2024-04-10",
	})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report struct {
		RunID   string `json:"run_id"`
		Metric  string `json:"metric"`
		Summary struct {
			EffectTotal float64 `json:"effect_total"`
		} `json:"summary"`
		Periods period.PrePost `json:"periods"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "visits", report.Metric)
	assert.Greater(t, report.Summary.EffectTotal, 0.0)
	assert.Equal(t, "2024-04-10", report.Periods.Post.Start.Format(time.DateOnly))

	successes, err := m.Count(metrics.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, 1.0, successes)
}

func TestAnalyzeDefaultMetric(t *testing.T) {
	s, _ := newTestServer(t, nil)

	req := uploadRequest(t, "/api/analyze", "campaign.csv", campaignCSV(), map[string]string{
		"pre_start":  "2024-03-01",
		"pre_end":    "2024-04-09",
		"post_start": "2024-04-10",
		"post_end":   "2024-04-29",
	})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report struct {
		Metric string `json:"metric"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "visits", report.Metric)
}

func TestAnalyzeErrors(t *testing.T) {
	testData := map[string]struct {
		filename   string
		content    string
		fields     map[string]string
		wantStatus int
		wantErr    string
	}{
		"missing file": {
			wantStatus: http.StatusBadRequest,
			wantErr:    ErrMissingFile.Error(),
		},
		"malformed date": {
			filename:   "campaign.csv",
			content:    campaignCSV(),
			fields:     map[string]string{"intervention": "2024-13-40"},
			wantStatus: http.StatusBadRequest,
			wantErr:    "intervention",
		},
		"unknown metric": {
			filename:   "campaign.csv",
			content:    campaignCSV(),
			fields:     map[string]string{"metric": "revenue"},
			wantStatus: http.StatusBadRequest,
			wantErr:    "revenue",
		},
		"unsupported format": {
			filename:   "campaign.parquet",
			content:    campaignCSV(),
			wantStatus: http.StatusBadRequest,
			wantErr:    "unsupported file format",
		},
		"intervention out of range": {
			filename:   "campaign.csv",
			content:    campaignCSV(),
			fields:     map[string]string{"intervention": "2025-01-01"},
			wantStatus: http.StatusBadRequest,
		},
		"ambiguous window": {
			filename: "campaign.csv",
			content:  campaignCSV(),
			fields: map[string]string{
				"intervention": "2024-04-10",
				"pre_start":    "2024-03-01",
			},
			wantStatus: http.StatusBadRequest,
		},
		"infinite value": {
			filename:   "campaign.csv",
			content:    "date,visits\n2024-03-01,1\n2024-03-02,+Inf\n",
			wantStatus: http.StatusBadRequest,
			wantErr:    "+Inf",
		},
		"header only": {
			filename:   "campaign.csv",
			content:    "date,visits\n",
			wantStatus: http.StatusBadRequest,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			s, m := newTestServer(t, nil)

			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, uploadRequest(t, "/api/analyze", td.filename, td.content, td.fields))
			assert.Equal(t, td.wantStatus, rec.Code, rec.Body.String())

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.RequestID)
			if td.wantErr != "" {
				assert.Contains(t, resp.Error, td.wantErr)
			}

			successes, err := m.Count(metrics.OutcomeSuccess)
			require.NoError(t, err)
			assert.Equal(t, 0.0, successes)
		})
	}
}

type failingFitter struct{}

func (failingFitter) Fit(ctx context.Context, y []float64) (statespace.Params, error) {
	return statespace.Params{}, statespace.ErrFitConvergence
}

func TestAnalyzeFitFailure(t *testing.T) {
	opt := causalimpact.NewDefaultOptions()
	opt.ForecastOptions.Fitter = failingFitter{}
	s, m := newTestServer(t, opt)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, uploadRequest(t, "/api/analyze", "campaign.csv", campaignCSV(), nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	failures, err := m.Count(metrics.OutcomeFitError)
	require.NoError(t, err)
	assert.Equal(t, 1.0, failures)
}

func TestAnalyzeUploadLimit(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.cfg.MaxUploadBytes = 128

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, uploadRequest(t, "/api/analyze", "campaign.csv", campaignCSV(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChart(t *testing.T) {
	s, _ := newTestServer(t, nil)

	req := uploadRequest(t, "/api/analyze/chart", "campaign.csv", campaignCSV(), map[string]string{
		"intervention": "2024-04-10",
	})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "Counterfactual")
	assert.Contains(t, rec.Body.String(), "Cumulative Effect")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, uploadRequest(t, "/api/analyze", "campaign.csv", campaignCSV(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `causalimpact_runs_total{outcome="success"} 1`)
}

func TestStatusFor(t *testing.T) {
	testData := map[string]struct {
		err  error
		want int
	}{
		"bad request":    {fmt.Errorf("x, %w", ErrBadRequest), http.StatusBadRequest},
		"input error":    {fmt.Errorf("x, %w", period.ErrOutOfRange), http.StatusBadRequest},
		"infinite value": {fmt.Errorf("x, %w", timedataset.ErrNonFinite), http.StatusBadRequest},
		"non finite fit": {fmt.Errorf("x, %w", statespace.ErrNonFiniteInput), http.StatusBadRequest},
		"convergence":    {fmt.Errorf("x, %w", statespace.ErrFitConvergence), http.StatusUnprocessableEntity},
		"deadline":       {context.DeadlineExceeded, http.StatusUnprocessableEntity},
		"unknown error":  {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.want, statusFor(td.err))
		})
	}
}

func TestRequestWindow(t *testing.T) {
	w, err := AnalyzeRequest{Intervention: "2024-04-10"}.Window()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), w.Intervention)
	assert.True(t, w.PreStart.IsZero())

	_, err = AnalyzeRequest{PostEnd: "soon"}.Window()
	assert.ErrorIs(t, err, ingest.ErrParseDate)
}

func TestListenAndServeShutdown(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.cfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
