package statespace

import (
	"context"
	"fmt"
	"math"
)

// State is the filtered level and its variance after the last training observation
type State struct {
	Level    float64 `json:"level"`
	Variance float64 `json:"variance"`
}

// LocalLevel is a local level model conditioned on a training series
type LocalLevel struct {
	params Params
	state  State
	filter *FilterResult
}

// NewLocalLevel filters y with the given params so the model can forecast past the end of y
func NewLocalLevel(y []float64, params Params) (*LocalLevel, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	res, err := Filter(y, params.LevelVariance, params.ObsVariance)
	if err != nil {
		return nil, err
	}
	if !params.Degenerate {
		params.LogLikelihood = res.LogLikelihood
	}
	return &LocalLevel{
		params: params,
		state:  State{Level: res.FinalLevel(), Variance: res.LevelVariance},
		filter: res,
	}, nil
}

// NewLocalLevelFromState restores a model from a previously filtered state. The model can
// forecast but has no filter output.
func NewLocalLevelFromState(state State, params Params) (*LocalLevel, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(state.Level) || math.IsInf(state.Level, 0) {
		return nil, fmt.Errorf("level %v, %w", state.Level, ErrNonFiniteInput)
	}
	if state.Variance < 0 {
		return nil, fmt.Errorf("state variance %.6g, %w", state.Variance, ErrNegativeVariance)
	}
	return &LocalLevel{params: params, state: state}, nil
}

// FitLocalLevel estimates the variances of y with fitter and returns the conditioned model
func FitLocalLevel(ctx context.Context, y []float64, fitter Fitter) (*LocalLevel, error) {
	if fitter == nil {
		fitter = NewMLEFitter(nil)
	}
	params, err := fitter.Fit(ctx, y)
	if err != nil {
		return nil, err
	}
	return NewLocalLevel(y, params)
}

// Params returns the fitted variances
func (m *LocalLevel) Params() Params {
	if m == nil {
		return Params{}
	}
	return m.params
}

// State returns the filtered level after the last training observation
func (m *LocalLevel) State() State {
	if m == nil {
		return State{}
	}
	return m.state
}

// Filtered returns the Kalman filter output over the training series
func (m *LocalLevel) Filtered() *FilterResult {
	if m == nil {
		return nil
	}
	return m.filter
}

// Level returns the last filtered level which is the forecast mean at every horizon
func (m *LocalLevel) Level() float64 {
	if m == nil {
		return 0
	}
	return m.state.Level
}

// Forecast returns the mean and variance for each of the next steps points
func (m *LocalLevel) Forecast(steps int) ([]float64, []float64, error) {
	if m == nil {
		return nil, nil, ErrTooFewObservations
	}
	if steps < 0 {
		return nil, nil, fmt.Errorf("%d steps, %w", steps, ErrNegativeSteps)
	}

	mean := make([]float64, steps)
	variance := make([]float64, steps)
	for h := 1; h <= steps; h++ {
		mean[h-1], variance[h-1] = m.ForecastAt(h)
	}
	return mean, variance, nil
}

// ForecastAt returns the mean and variance h steps past the end of training. The mean is
// flat at the last filtered level. The variance is P_n|n + h*LevelVariance + ObsVariance
// so it never decreases with h.
func (m *LocalLevel) ForecastAt(h int) (float64, float64) {
	if m == nil {
		return math.NaN(), math.NaN()
	}
	return m.state.Level, m.state.Variance + float64(h)*m.params.LevelVariance + m.params.ObsVariance
}
