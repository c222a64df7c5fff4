package statespace

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultGridMinLog10 = -4.0
	DefaultGridMaxLog10 = 4.0
	DefaultGridPoints   = 161
)

// GridOptions configures the grid search over the signal to noise ratio q = LevelVariance/ObsVariance
type GridOptions struct {
	MinLog10 float64 `json:"min_log10"`
	MaxLog10 float64 `json:"max_log10"`
	Points   int     `json:"points"`
}

// NewDefaultGridOptions searches q from 1e-4 to 1e4 in steps of 0.05 decades
func NewDefaultGridOptions() *GridOptions {
	return &GridOptions{
		MinLog10: DefaultGridMinLog10,
		MaxLog10: DefaultGridMaxLog10,
		Points:   DefaultGridPoints,
	}
}

func (o *GridOptions) Validate() (*GridOptions, error) {
	if o == nil {
		return NewDefaultGridOptions(), nil
	}
	if o.Points < 2 {
		return nil, fmt.Errorf("need at least 2 grid points, got %d, %w", o.Points, ErrInvalidGrid)
	}
	if o.MinLog10 >= o.MaxLog10 {
		return nil, fmt.Errorf("min %.2f must be below max %.2f, %w", o.MinLog10, o.MaxLog10, ErrInvalidGrid)
	}
	return o, nil
}

// GridFitter maximizes the likelihood concentrated over the observation variance. For a
// fixed q the observation variance has a closed form so only q is searched, over a log
// spaced grid plus q = 0.
type GridFitter struct {
	opt *GridOptions
}

// NewGridFitter returns a grid search fitter. A nil opt uses the defaults.
func NewGridFitter(opt *GridOptions) *GridFitter {
	if opt == nil {
		opt = NewDefaultGridOptions()
	}
	return &GridFitter{opt: opt}
}

func (g *GridFitter) Fit(ctx context.Context, y []float64) (Params, error) {
	if g == nil {
		g = NewGridFitter(nil)
	}
	opt, err := g.opt.Validate()
	if err != nil {
		return Params{}, err
	}

	z, scale, err := standardize(y)
	if err != nil {
		return Params{}, err
	}
	if scale == 0 {
		return constantParams(), nil
	}

	qs := make([]float64, opt.Points+1)
	floats.LogSpan(qs[1:], math.Pow(10, opt.MinLog10), math.Pow(10, opt.MaxLog10))

	bestQ, bestObs := math.NaN(), math.NaN()
	bestLogLik := math.Inf(-1)
	for _, q := range qs {
		if err := ctx.Err(); err != nil {
			return Params{}, fmt.Errorf("%w, %w", ErrFitConvergence, err)
		}
		ll, obs, err := concentratedLogLik(z, q)
		if err != nil {
			return Params{}, err
		}
		if ll > bestLogLik {
			bestQ, bestObs, bestLogLik = q, obs, ll
		}
	}
	if math.IsNaN(bestQ) || math.IsInf(bestLogLik, 0) {
		return Params{}, fmt.Errorf("no finite likelihood on the grid, %w", ErrFitConvergence)
	}

	scale2 := scale * scale
	params := Params{
		LevelVariance: bestQ * bestObs * scale2,
		ObsVariance:   bestObs * scale2,
		Iterations:    len(qs),
		Status:        "GridSearch",
	}
	res, err := Filter(y, params.LevelVariance, params.ObsVariance)
	if err != nil {
		return Params{}, err
	}
	params.LogLikelihood = res.LogLikelihood
	return params, nil
}

// concentratedLogLik runs the filter with unit observation variance and level variance q
// and returns the log likelihood at the closed form observation variance estimate.
func concentratedLogLik(z []float64, q float64) (float64, float64, error) {
	res, err := Filter(z, q, 1)
	if err != nil {
		return 0, 0, err
	}
	n := len(z) - 1
	var sumSq, sumLogF float64
	for t := 1; t < len(z); t++ {
		f := res.PredVariance[t]
		v := res.Innovations[t]
		sumSq += v * v / f
		sumLogF += math.Log(f)
	}
	obs := sumSq / float64(n)
	if obs <= 0 {
		return math.Inf(-1), 0, nil
	}
	ll := -0.5*float64(n)*(log2Pi+1+math.Log(obs)) - 0.5*sumLogF
	return ll, obs, nil
}
