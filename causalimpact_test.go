package causalimpact

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gabriellapppaixao/causal-impact-mvp/effect"
	"github.com/gabriellapppaixao/causal-impact-mvp/forecast"
	"github.com/gabriellapppaixao/causal-impact-mvp/ingest"
	"github.com/gabriellapppaixao/causal-impact-mvp/period"
	"github.com/gabriellapppaixao/causal-impact-mvp/statespace"
	"github.com/gabriellapppaixao/causal-impact-mvp/timedataset"
	"github.com/goccy/go-json"
	"github.com/rickar/cal/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seriesStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// generateCampaignSeries returns 60 noisy days around 100 with a lift of 50 from day 40
func generateCampaignSeries() ([]time.Time, []float64) {
	n := 60
	t := timedataset.GenerateDays(n, seriesStart)
	y := timedataset.GenerateConstY(n, 100).
		Add(timedataset.GenerateNoise(n, 1.0, 11)).
		Add(timedataset.GenerateStep(t, t[40], 50))
	return t, y
}

func TestRunCampaign(t *testing.T) {
	ts, y := generateCampaignSeries()

	a, err := New(nil)
	require.NoError(t, err)

	r, err := a.Run(context.Background(), ts, y, Window{Intervention: ts[40]})
	require.NoError(t, err)

	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, period.New(ts[0], ts[39]), r.Periods.Pre)
	assert.Equal(t, period.New(ts[40], ts[59]), r.Periods.Post)
	assert.Equal(t, ts[40], r.Intervention)
	assert.Equal(t, 60, r.Series.Len())
	assert.Equal(t, 20, r.Counterfactual.Len())
	assert.Equal(t, ts[40:], r.Counterfactual.T)

	s := r.Summary
	assert.InDelta(t, 1000.0, s.EffectTotal, 100.0)
	assert.InDelta(t, 2000.0, s.ExpectedTotal, 100.0)
	assert.True(t, s.RelEffectDefined)
	assert.InDelta(t, 0.5, s.RelEffect, 0.1)
	assert.Greater(t, s.Lower, 0.0)
	assert.InDelta(t, s.ObservedTotal-s.ExpectedTotal, s.EffectTotal, 1e-9)

	assert.Equal(t, DefaultPreviewRows, r.Preview.Head.Len())
	assert.Equal(t, 60, r.Preview.Description.Count)
	assert.Equal(t, []time.Time{ts[0], ts[39]}, []time.Time{r.Model.TrainStartTime, r.Model.TrainEndTime})
	assert.Empty(t, r.Holidays)
}

func TestRunNoEffect(t *testing.T) {
	n := 40
	ts := timedataset.GenerateDays(n, seriesStart)
	y := timedataset.GenerateConstY(n, 100)

	a, err := New(nil)
	require.NoError(t, err)
	r, err := a.Run(context.Background(), ts, y, Window{Intervention: ts[30]})
	require.NoError(t, err)

	assert.InDelta(t, 0.0, r.Summary.EffectTotal, 1e-6)
	assert.InDelta(t, 0.0, r.Summary.RelEffect, 1e-6)
	assert.LessOrEqual(t, r.Summary.Lower, 0.0)
	assert.GreaterOrEqual(t, r.Summary.Upper, 0.0)
	assert.True(t, r.Model.Params.Degenerate)
}

func TestRunGapsAndDefaultWindow(t *testing.T) {
	ts, y := generateCampaignSeries()

	// drop three days entirely and mark one as missing
	ts = append(ts[:5:5], ts[8:]...)
	y = append(y[:5:5], y[8:]...)
	y[10] = math.NaN()

	a, err := New(nil)
	require.NoError(t, err)
	r, err := a.Run(context.Background(), ts, y, Window{})
	require.NoError(t, err)

	require.NoError(t, r.Series.ValidateDaily())
	assert.Equal(t, 60, r.Series.Len())
	assert.Equal(t, r.Series.Y[4], r.Series.Y[5])
	assert.Equal(t, r.Series.Y[4], r.Series.Y[7])

	assert.Equal(t, 56, r.Preview.Description.Count)
	assert.Equal(t, 1, r.Preview.Description.Missing)

	// 2024-03-01 to 2024-04-29 splits at the 30th day
	assert.Equal(t, timedataset.AddDays(seriesStart, 29), r.Intervention)
}

func TestRunExplicitBoundaries(t *testing.T) {
	ts, y := generateCampaignSeries()

	a, err := New(nil)
	require.NoError(t, err)
	r, err := a.Run(context.Background(), ts, y, Window{
		PreStart:  ts[0],
		PreEnd:    ts[29],
		PostStart: ts[45],
		PostEnd:   ts[54],
	})
	require.NoError(t, err)

	assert.Equal(t, 10, r.Counterfactual.Len())
	assert.Equal(t, ts[45], r.Intervention)
	assert.InDelta(t, 500.0, r.Summary.EffectTotal, 60.0)

	// interval widens with the horizon from the end of training
	for i := 1; i < r.Counterfactual.Len(); i++ {
		prev := r.Counterfactual.Upper[i-1] - r.Counterfactual.Lower[i-1]
		curr := r.Counterfactual.Upper[i] - r.Counterfactual.Lower[i]
		assert.GreaterOrEqual(t, curr, prev)
	}
}

func TestRunZeroBaseline(t *testing.T) {
	n := 30
	ts := timedataset.GenerateDays(n, seriesStart)
	y := timedataset.GenerateConstY(n, 0).Add(timedataset.GenerateStep(ts, ts[25], 3))

	a, err := New(nil)
	require.NoError(t, err)
	r, err := a.Run(context.Background(), ts, y, Window{Intervention: ts[25]})
	require.NoError(t, err)

	assert.False(t, r.Summary.RelEffectDefined)
	assert.True(t, math.IsNaN(r.Summary.RelEffect))
	assert.ErrorIs(t, r.Summary.Undefined(), effect.ErrUndefinedRatio)
	assert.InDelta(t, 15.0, r.Summary.EffectTotal, 1e-9)

	var b bytes.Buffer
	require.NoError(t, r.WriteJSON(&b))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b.Bytes(), &decoded))
	summary, ok := decoded["summary"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, summary["rel_effect"])
}

func TestRunErrors(t *testing.T) {
	ts, y := generateCampaignSeries()

	testData := map[string]struct {
		t          []time.Time
		y          []float64
		window     Window
		err        error
		inputError bool
	}{
		"empty input": {
			err:        timedataset.ErrEmptyInput,
			inputError: true,
		},
		"duplicate date": {
			t:          []time.Time{ts[0], ts[0].Add(time.Hour)},
			y:          []float64{1, 2},
			err:        timedataset.ErrDuplicateDate,
			inputError: true,
		},
		"infinite observation": {
			t:          ts[:3],
			y:          []float64{1, math.Inf(1), 3},
			err:        timedataset.ErrNonFinite,
			inputError: true,
		},
		"intervention before series": {
			t:          ts,
			y:          y,
			window:     Window{Intervention: timedataset.AddDays(ts[0], -1)},
			err:        period.ErrOutOfRange,
			inputError: true,
		},
		"intervention on first day": {
			t:          ts,
			y:          y,
			window:     Window{Intervention: ts[0]},
			err:        period.ErrEmptyPeriod,
			inputError: true,
		},
		"pre end equals post start": {
			t:          ts,
			y:          y,
			window:     Window{PreStart: ts[0], PreEnd: ts[30], PostStart: ts[30], PostEnd: ts[40]},
			err:        period.ErrInvalidOrdering,
			inputError: true,
		},
		"intervention and boundaries": {
			t:          ts,
			y:          y,
			window:     Window{Intervention: ts[30], PreStart: ts[0], PreEnd: ts[29], PostStart: ts[30], PostEnd: ts[40]},
			err:        ErrAmbiguousWindow,
			inputError: true,
		},
		"partial boundaries": {
			t:          ts,
			y:          y,
			window:     Window{PreStart: ts[0], PreEnd: ts[29]},
			err:        ErrIncompleteBoundary,
			inputError: true,
		},
		"19 pre points": {
			t:          ts,
			y:          y,
			window:     Window{Intervention: ts[19]},
			err:        forecast.ErrInsufficientData,
			inputError: true,
		},
	}

	a, err := New(nil)
	require.NoError(t, err)
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			_, err := a.Run(context.Background(), td.t, td.y, td.window)
			require.ErrorIs(t, err, td.err)
			assert.Equal(t, td.inputError, IsInputError(err))
		})
	}
}

func TestRunMinimumPrePoints(t *testing.T) {
	ts, y := generateCampaignSeries()
	a, err := New(nil)
	require.NoError(t, err)
	_, err = a.Run(context.Background(), ts, y, Window{Intervention: ts[20]})
	assert.NoError(t, err)
}

type failingFitter struct{}

func (failingFitter) Fit(ctx context.Context, y []float64) (statespace.Params, error) {
	return statespace.Params{}, fmt.Errorf("optimizer gave up, %w", statespace.ErrFitConvergence)
}

func TestRunFitFailure(t *testing.T) {
	ts, y := generateCampaignSeries()

	opt := NewDefaultOptions()
	opt.ForecastOptions.Fitter = failingFitter{}
	a, err := New(opt)
	require.NoError(t, err)

	_, err = a.Run(context.Background(), ts, y, Window{Intervention: ts[40]})
	require.ErrorIs(t, err, statespace.ErrFitConvergence)
	assert.False(t, IsInputError(err))
}

func TestRunTable(t *testing.T) {
	var b strings.Builder
	b.WriteString("dia,visits,orders\n")
	ts, y := generateCampaignSeries()
	// rows out of order with one empty cell
	for i := len(ts) - 1; i >= 0; i-- {
		visits := fmt.Sprintf("%.4f", y[i])
		if i == 12 {
			visits = ""
		}
		fmt.Fprintf(&b, "%s,%s,%d\n", ts[i].Format(time.DateOnly), visits, i)
	}
	tbl, err := ingest.ReadCSV(strings.NewReader(b.String()), nil)
	require.NoError(t, err)

	a, err := New(nil)
	require.NoError(t, err)
	r, err := a.RunTable(context.Background(), tbl, "visits", Window{Intervention: ts[40]})
	require.NoError(t, err)
	assert.Equal(t, "visits", r.Metric)
	assert.Equal(t, 60, r.Series.Len())
	assert.Equal(t, 1, r.Preview.Description.Missing)
	assert.InDelta(t, 1000.0, r.Summary.EffectTotal, 100.0)

	_, err = a.RunTable(context.Background(), tbl, "revenue", Window{})
	assert.ErrorIs(t, err, ingest.ErrUnknownMetric)
	assert.True(t, IsInputError(err))

	_, err = a.RunTable(context.Background(), nil, "visits", Window{})
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestRunHolidays(t *testing.T) {
	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	n := 70
	ts := timedataset.GenerateDays(n, start)
	y := timedataset.GenerateConstY(n, 10).Add(timedataset.GenerateNoise(n, 1, 5))

	a, err := New(nil)
	require.NoError(t, err)
	r, err := a.Run(context.Background(), ts, y, Window{Intervention: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	dates := make([]time.Time, 0, len(r.Holidays))
	for _, h := range r.Holidays {
		dates = append(dates, h.Date)
	}
	assert.Equal(t, []time.Time{
		time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}, dates)

	opt := NewDefaultOptions()
	opt.Holidays = []*cal.Holiday{}
	a, err = New(opt)
	require.NoError(t, err)
	r, err = a.Run(context.Background(), ts, y, Window{Intervention: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Empty(t, r.Holidays)
}

func TestRunConcurrent(t *testing.T) {
	ts, y := generateCampaignSeries()
	a, err := New(nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	reports := make([]*Report, 4)
	errs := make([]error, len(reports))
	for i := range reports {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i], errs[i] = a.Run(context.Background(), ts, y, Window{Intervention: ts[40]})
		}()
	}
	wg.Wait()

	for i := range reports {
		require.NoError(t, errs[i])
		assert.InDelta(t, reports[0].Summary.EffectTotal, reports[i].Summary.EffectTotal, 1e-9)
	}
	assert.NotEqual(t, reports[0].RunID, reports[1].RunID)
}

func TestNewInvalidOptions(t *testing.T) {
	testData := map[string]struct {
		opt *Options
		err error
	}{
		"negative preview rows": {
			opt: &Options{PreviewRows: -1},
			err: ErrNegativePreviewRows,
		},
		"unknown fill policy": {
			opt: &Options{FillPolicy: "linear"},
			err: timedataset.ErrUnknownFillPolicy,
		},
		"unknown fitter": {
			opt: &Options{ForecastOptions: &forecast.Options{FitterType: "bayes"}},
			err: forecast.ErrUnknownFitter,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			_, err := New(td.opt)
			assert.ErrorIs(t, err, td.err)
		})
	}
}

func TestOptionsValidateDefaults(t *testing.T) {
	opt, err := (&Options{}).Validate()
	require.NoError(t, err)
	assert.Equal(t, timedataset.FillForwardBackward, opt.FillPolicy)
	assert.Equal(t, DefaultPreviewRows, opt.PreviewRows)
	assert.Len(t, opt.Holidays, 6)
	assert.NotNil(t, opt.Resolver)
	assert.NotNil(t, opt.Logger)
	assert.Equal(t, forecast.DefaultMinTrainingPoints, opt.ForecastOptions.MinTrainingPoints)

	var b bytes.Buffer
	require.NoError(t, opt.TablePrint(&b, "", "  ", 0))
	assert.True(t, strings.HasPrefix(b.String(), "Analysis Options:\n  Fill Policy: ffill_bfill    Holidays: 6\n"))
}
