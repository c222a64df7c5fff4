// Package forecast estimates the counterfactual of a daily series. A local level model is
// fit on the pre period and projected forward over the post period with a gaussian
// interval that widens with the horizon.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gabriellapppaixao/causal-impact-mvp/statespace"
	"github.com/gabriellapppaixao/causal-impact-mvp/timedataset"
	"gonum.org/v1/gonum/floats"
)

var (
	ErrUninitializedForecast = errors.New("uninitialized forecast")
	ErrInsufficientData      = errors.New("insufficient pre period data after removing NaNs")
	ErrEmptyPost             = errors.New("no post period points to forecast")
	ErrUntrainedForecast     = errors.New("forecast has not been trained yet")
	ErrPredictInTraining     = errors.New("prediction time is not after the end of training")
	ErrNoModelState          = errors.New("no model state to restore from")
)

// Results is the forecast for each requested time along with its interval
type Results struct {
	T        []time.Time `json:"time"`
	Forecast []float64   `json:"forecast"`
	Upper    []float64   `json:"upper"`
	Lower    []float64   `json:"lower"`
	StdDev   []float64   `json:"std_dev"`
}

// Len returns the number of forecast points
func (r *Results) Len() int {
	if r == nil {
		return 0
	}
	return len(r.T)
}

// Forecast is a local level model of the pre period of a daily series
type Forecast struct {
	opt    *Options
	scores *Scores

	model *statespace.LocalLevel

	trainStartTime time.Time
	trainEndTime   time.Time
	fitted         []float64
	residual       []float64
	trained        bool
}

// New creates a new forecast instance with the given options. If none are provided, a
// default is used.
func New(opt *Options) (*Forecast, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid forecast options, %w", err)
	}
	return &Forecast{opt: opt}, nil
}

// NewFromModel creates a new forecast instance from a previously fit Model. It can predict
// immediately but has no in-sample fit or residuals.
func NewFromModel(model Model) (*Forecast, error) {
	if model.State == nil {
		return nil, ErrNoModelState
	}
	opt, err := model.Options.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid forecast options, %w", err)
	}
	ll, err := statespace.NewLocalLevelFromState(*model.State, model.Params)
	if err != nil {
		return nil, fmt.Errorf("unable to restore local level model, %w", err)
	}
	return &Forecast{
		opt:            opt,
		scores:         model.Scores,
		model:          ll,
		trainStartTime: model.TrainStartTime,
		trainEndTime:   model.TrainEndTime,
		trained:        true,
	}, nil
}

// Fit estimates the level and observation variances on the pre period series. NaNs are
// dropped and at least MinTrainingPoints values must remain.
func (f *Forecast) Fit(ctx context.Context, pre *timedataset.TimeDataset) error {
	if f == nil {
		return ErrUninitializedForecast
	}

	training := pre.DropNan()
	if training.Len() < f.opt.MinTrainingPoints {
		return fmt.Errorf("got %d points, need at least %d, %w",
			training.Len(), f.opt.MinTrainingPoints, ErrInsufficientData)
	}

	fitter, err := f.opt.NewFitter()
	if err != nil {
		return err
	}
	model, err := statespace.FitLocalLevel(ctx, training.Y, fitter)
	if err != nil {
		return fmt.Errorf("unable to fit local level model, %w", err)
	}

	filtered := model.Filtered()
	fitted := make([]float64, len(filtered.Predicted))
	copy(fitted, filtered.Predicted)

	residual := make([]float64, len(training.Y))
	copy(residual, training.Y)
	floats.Sub(residual, fitted)

	// the first point initializes the level so it carries no prediction
	fitted[0] = math.NaN()
	residual[0] = math.NaN()

	scores, err := NewScores(fitted, training.Y)
	if err != nil {
		return err
	}

	f.model = model
	f.fitted = fitted
	f.residual = residual
	f.scores = scores
	f.trainStartTime = training.T[0]
	f.trainEndTime = training.T[len(training.T)-1]
	f.trained = true
	return nil
}

// Predict forecasts each time in t, which must fall after the end of training. The horizon
// of a point is the number of days since the last training day so that a gap between the
// pre and post periods still widens the interval.
func (f *Forecast) Predict(t []time.Time) (*Results, error) {
	if f == nil {
		return nil, ErrUninitializedForecast
	}
	if !f.trained {
		return nil, ErrUntrainedForecast
	}
	if len(t) == 0 {
		return nil, ErrEmptyPost
	}

	res := &Results{
		T:        make([]time.Time, len(t)),
		Forecast: make([]float64, len(t)),
		Upper:    make([]float64, len(t)),
		Lower:    make([]float64, len(t)),
		StdDev:   make([]float64, len(t)),
	}
	for i, ti := range t {
		h := timedataset.DaysBetween(f.trainEndTime, ti)
		if h < 1 {
			return nil, fmt.Errorf("%s is not after training end %s, %w",
				ti.Format(time.DateOnly), f.trainEndTime.Format(time.DateOnly), ErrPredictInTraining)
		}
		mean, variance := f.model.ForecastAt(h)
		sd := math.Sqrt(variance)

		res.T[i] = ti
		res.Forecast[i] = mean
		res.StdDev[i] = sd
		res.Upper[i] = mean + f.opt.Zscore*sd
		res.Lower[i] = mean - f.opt.Zscore*sd
	}
	return res, nil
}

// Params returns the fitted model variances
func (f *Forecast) Params() statespace.Params {
	if f == nil {
		return statespace.Params{}
	}
	return f.model.Params()
}

// Level returns the last filtered level of the training series
func (f *Forecast) Level() float64 {
	if f == nil {
		return math.NaN()
	}
	return f.model.Level()
}

// Fitted returns the one step ahead predictions over the training series. The first value
// is NaN since it initializes the level.
func (f *Forecast) Fitted() []float64 {
	if f == nil {
		return nil
	}
	res := make([]float64, len(f.fitted))
	copy(res, f.fitted)
	return res
}

// Scores returns the fit scores for evaluating how well the one step ahead predictions
// track the training data
func (f *Forecast) Scores() Scores {
	if f == nil {
		return Scores{}
	}
	if f.scores == nil {
		return Scores{}
	}
	return *f.scores
}

// Residuals returns the one step ahead prediction errors over the training data
func (f *Forecast) Residuals() []float64 {
	if f == nil {
		return nil
	}
	res := make([]float64, len(f.residual))
	copy(res, f.residual)
	return res
}

// Model returns the serializeable format of the forecast model composing of the
// options, fitted variances, final state and fit scores
func (f *Forecast) Model() (Model, error) {
	if f == nil {
		return Model{}, ErrUninitializedForecast
	}
	if !f.trained {
		return Model{}, ErrUntrainedForecast
	}

	state := f.model.State()
	return Model{
		TrainStartTime: f.trainStartTime,
		TrainEndTime:   f.trainEndTime,
		Options:        f.opt,
		Params:         f.model.Params(),
		State:          &state,
		Scores:         f.scores,
	}, nil
}
