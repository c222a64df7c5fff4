// Package causalimpact estimates the effect of an intervention on a daily series. The pre
// intervention window trains a local level model whose forecast over the post window is the
// counterfactual, and the gap between observed and counterfactual is the effect.
package causalimpact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabriellapppaixao/causal-impact-mvp/effect"
	"github.com/gabriellapppaixao/causal-impact-mvp/event"
	"github.com/gabriellapppaixao/causal-impact-mvp/forecast"
	"github.com/gabriellapppaixao/causal-impact-mvp/ingest"
	"github.com/gabriellapppaixao/causal-impact-mvp/period"
	"github.com/gabriellapppaixao/causal-impact-mvp/statespace"
	"github.com/gabriellapppaixao/causal-impact-mvp/stats"
	"github.com/gabriellapppaixao/causal-impact-mvp/timedataset"
	"github.com/google/uuid"
)

var ErrNoTable = errors.New("no input table")

// Analyzer runs the normalize, partition, estimate and aggregate pipeline. It holds only
// options so a single Analyzer can serve concurrent runs.
type Analyzer struct {
	opt *Options
}

// New creates an Analyzer with the provided options. If no options are provided a default
// is used.
func New(opt *Options) (*Analyzer, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize analyzer, %w", err)
	}
	return &Analyzer{opt: opt}, nil
}

// Options returns the validated options of the analyzer
func (a *Analyzer) Options() *Options {
	return a.opt
}

// RunTable analyzes the named metric column of a table
func (a *Analyzer) RunTable(ctx context.Context, tbl *ingest.Table, metric string, w Window) (*Report, error) {
	if tbl == nil {
		return nil, ErrNoTable
	}
	t, y, err := tbl.Metric(metric)
	if err != nil {
		return nil, err
	}
	r, err := a.Run(ctx, t, y, w)
	if err != nil {
		return nil, err
	}
	r.Metric = metric
	return r, nil
}

// Run analyzes raw dated observations. Dates may be unordered and gapped; NaN values are
// treated as missing days.
func (a *Analyzer) Run(ctx context.Context, t []time.Time, y []float64, w Window) (*Report, error) {
	runID := uuid.NewString()
	logger := a.opt.Logger.With("run_id", runID)
	start := time.Now()

	td, err := timedataset.NormalizeWithPolicy(t, y, a.opt.FillPolicy)
	if err != nil {
		return nil, fmt.Errorf("unable to normalize series, %w", err)
	}
	bounds, err := period.Bounds(td)
	if err != nil {
		return nil, err
	}
	pp, err := w.Resolve(bounds)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve periods, %w", err)
	}
	logger.Debug("resolved periods", "bounds", bounds.String(), "periods", pp.String())

	pre := td.Slice(pp.Pre.Start, pp.Pre.End)
	post := td.Slice(pp.Post.Start, pp.Post.End)

	f, err := forecast.New(a.opt.ForecastOptions)
	if err != nil {
		return nil, err
	}
	if err := f.Fit(ctx, pre); err != nil {
		return nil, fmt.Errorf("unable to fit counterfactual, %w", err)
	}
	res, err := f.Predict(post.T)
	if err != nil {
		return nil, fmt.Errorf("unable to forecast counterfactual, %w", err)
	}
	summary, err := effect.SummarizeWithZscore(post.Y, res, a.opt.ForecastOptions.Zscore)
	if err != nil {
		return nil, fmt.Errorf("unable to summarize effect, %w", err)
	}
	if err := summary.Undefined(); err != nil {
		logger.Warn("relative effect not reported", "error", err)
	}

	model, err := f.Model()
	if err != nil {
		return nil, err
	}

	preview, err := newPreview(td, y, a.opt.PreviewRows)
	if err != nil {
		return nil, err
	}
	holidays, err := event.InRange(a.opt.Holidays, pp.Post.Start, pp.Post.End)
	if err != nil {
		return nil, fmt.Errorf("unable to compute holidays, %w", err)
	}
	if len(holidays) > 0 {
		logger.Info("holidays fall within the post period", "count", len(holidays))
	}

	logger.Info("analysis complete",
		"pre_days", pp.Pre.Days(),
		"post_days", pp.Post.Days(),
		"effect_total", summary.EffectTotal,
		"fit_status", model.Params.Status,
		"duration", time.Since(start),
	)

	return &Report{
		RunID:          runID,
		Preview:        preview,
		Periods:        pp,
		Intervention:   pp.Intervention(),
		Summary:        summary,
		Series:         td,
		Counterfactual: res,
		Holidays:       holidays,
		Model:          model,
	}, nil
}

func newPreview(td *timedataset.TimeDataset, raw []float64, rows int) (Preview, error) {
	desc, err := stats.Describe(raw)
	if err != nil {
		return Preview{}, fmt.Errorf("unable to describe series, %w", err)
	}
	n := min(rows, td.Len())
	return Preview{
		Head:        td.Slice(td.T[0], td.T[n-1]),
		Description: desc,
	}, nil
}

var inputErrors = []error{
	ErrNoTable,
	ErrAmbiguousWindow,
	ErrIncompleteBoundary,
	timedataset.ErrEmptyInput,
	timedataset.ErrDatasetLenMismatch,
	timedataset.ErrDuplicateDate,
	timedataset.ErrNonFinite,
	statespace.ErrNonFiniteInput,
	timedataset.ErrUnknownFillPolicy,
	period.ErrOutOfRange,
	period.ErrEmptyPeriod,
	period.ErrInvalidOrdering,
	period.ErrUnsetTime,
	forecast.ErrInsufficientData,
	forecast.ErrEmptyPost,
	effect.ErrEmptyPost,
	effect.ErrLenMismatch,
	ingest.ErrNoColumns,
	ingest.ErrNoRows,
	ingest.ErrNoMetricColumns,
	ingest.ErrUnknownMetric,
	ingest.ErrParseDate,
	ingest.ErrParseValue,
	ingest.ErrUnsupportedFormat,
	ingest.ErrDuplicateColumn,
}

// IsInputError returns true when err was caused by the input series, periods or file rather
// than by the model fit
func IsInputError(err error) bool {
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
