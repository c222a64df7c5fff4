package statespace

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

const (
	MethodLBFGS      = "lbfgs"
	MethodBFGS       = "bfgs"
	MethodNelderMead = "neldermead"

	DefaultMethod            = MethodLBFGS
	DefaultMaxIterations     = 500
	DefaultGradientThreshold = 1e-6
	DefaultFunctionTolerance = 1e-10

	// log variances of the standardized series are kept within these bounds to avoid
	// overflow while the optimizer explores
	minLogVariance = -30.0
	maxLogVariance = 10.0
)

// Fitter estimates the level and observation variances of a local level model
type Fitter interface {
	Fit(ctx context.Context, y []float64) (Params, error)
}

// MLEOptions configures the maximum likelihood fitter
type MLEOptions struct {
	// Method is one of lbfgs, bfgs or neldermead
	Method string `json:"method"`

	// MaxIterations caps the number of major optimizer iterations. Reaching the cap is
	// reported as a convergence failure.
	MaxIterations int `json:"max_iterations"`

	// GradientThreshold stops the optimizer once the gradient norm falls below it
	GradientThreshold float64 `json:"gradient_threshold"`

	// FunctionTolerance stops the optimizer once the mean negative log likelihood
	// improves by less than this amount over consecutive iterations
	FunctionTolerance float64 `json:"function_tolerance"`
}

// NewDefaultMLEOptions returns LBFGS capped at 500 iterations
func NewDefaultMLEOptions() *MLEOptions {
	return &MLEOptions{
		Method:            DefaultMethod,
		MaxIterations:     DefaultMaxIterations,
		GradientThreshold: DefaultGradientThreshold,
		FunctionTolerance: DefaultFunctionTolerance,
	}
}

// Validate fills defaults for unset fields and checks the rest
func (o *MLEOptions) Validate() (*MLEOptions, error) {
	if o == nil {
		return NewDefaultMLEOptions(), nil
	}
	res := *o
	if res.Method == "" {
		res.Method = DefaultMethod
	}
	res.Method = strings.ToLower(res.Method)
	if _, err := newMethod(res.Method); err != nil {
		return nil, err
	}
	if res.MaxIterations < 0 {
		return nil, fmt.Errorf("%d, %w", res.MaxIterations, ErrNegativeIterations)
	}
	if res.MaxIterations == 0 {
		res.MaxIterations = DefaultMaxIterations
	}
	if res.GradientThreshold <= 0 {
		res.GradientThreshold = DefaultGradientThreshold
	}
	if res.FunctionTolerance <= 0 {
		res.FunctionTolerance = DefaultFunctionTolerance
	}
	return &res, nil
}

func newMethod(name string) (optimize.Method, error) {
	switch name {
	case MethodLBFGS:
		return &optimize.LBFGS{}, nil
	case MethodBFGS:
		return &optimize.BFGS{}, nil
	case MethodNelderMead:
		return &optimize.NelderMead{}, nil
	default:
		return nil, fmt.Errorf("%q, %w", name, ErrUnknownMethod)
	}
}

// MLEFitter maximizes the gaussian log likelihood of the local level model with numerical
// optimization over the log variances, which keeps both variances non-negative.
type MLEFitter struct {
	opt *MLEOptions
}

// NewMLEFitter returns a maximum likelihood fitter. A nil opt uses the defaults.
func NewMLEFitter(opt *MLEOptions) *MLEFitter {
	if opt == nil {
		opt = NewDefaultMLEOptions()
	}
	return &MLEFitter{opt: opt}
}

// Fit estimates the variances of y. The series is scaled to unit standard deviation so
// that the optimizer works on comparable magnitudes regardless of the metric's units.
func (m *MLEFitter) Fit(ctx context.Context, y []float64) (Params, error) {
	if m == nil {
		m = NewMLEFitter(nil)
	}
	opt, err := m.opt.Validate()
	if err != nil {
		return Params{}, err
	}
	method, err := newMethod(opt.Method)
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
	if err := ctx.Err(); err != nil {
		return Params{}, fmt.Errorf("%w, %w", ErrFitConvergence, err)
	}

	nTerms := float64(len(z) - 1)
	negLogLik := func(x []float64) float64 {
		res, err := Filter(z, math.Exp(clampLogVariance(x[0])), math.Exp(clampLogVariance(x[1])))
		if err != nil {
			return math.Inf(1)
		}
		return -res.LogLikelihood / nTerms
	}
	problem := optimize.Problem{
		Func: negLogLik,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, negLogLik, x, &fd.Settings{Formula: fd.Central})
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   opt.MaxIterations,
		GradientThreshold: opt.GradientThreshold,
		Converger: &optimize.FunctionConverge{
			Absolute:   opt.FunctionTolerance,
			Iterations: 20,
		},
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Params{}, fmt.Errorf("%w, %w", ErrFitConvergence, context.DeadlineExceeded)
		}
		settings.Runtime = remaining
	}

	start := time.Now()
	result, err := optimize.Minimize(problem, initialLogVariances(z), settings, method)
	if err != nil {
		return Params{}, fmt.Errorf("%w, %w", ErrFitConvergence, err)
	}
	if result.Status.Early() {
		return Params{}, fmt.Errorf("optimizer stopped with status %s after %d iterations, %w",
			result.Status, result.Stats.MajorIterations, ErrFitConvergence)
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return Params{}, fmt.Errorf("non-finite likelihood at optimum, %w", ErrFitConvergence)
	}
	if err := ctx.Err(); err != nil {
		return Params{}, fmt.Errorf("%w, %w", ErrFitConvergence, err)
	}

	scale2 := scale * scale
	params := Params{
		LevelVariance: math.Exp(clampLogVariance(result.X[0])) * scale2,
		ObsVariance:   math.Exp(clampLogVariance(result.X[1])) * scale2,
		Iterations:    result.Stats.MajorIterations,
		Status:        result.Status.String(),
	}
	res, err := Filter(y, params.LevelVariance, params.ObsVariance)
	if err != nil {
		return Params{}, err
	}
	params.LogLikelihood = res.LogLikelihood

	slog.Debug("fit local level model",
		"method", opt.Method,
		"iterations", params.Iterations,
		"status", params.Status,
		"level_variance", params.LevelVariance,
		"obs_variance", params.ObsVariance,
		"duration", time.Since(start),
	)
	return params, nil
}

// standardize returns y shifted by its first value and divided by its standard deviation.
// A scale of 0 means y is constant.
func standardize(y []float64) ([]float64, float64, error) {
	if len(y) < 2 {
		return nil, 0, fmt.Errorf("need at least 2 observations, got %d, %w", len(y), ErrTooFewObservations)
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, fmt.Errorf("index %d, %w", i, ErrNonFiniteInput)
		}
	}
	scale := stat.StdDev(y, nil)
	if scale == 0 || math.IsNaN(scale) {
		return nil, 0, nil
	}
	z := make([]float64, len(y))
	for i, v := range y {
		z[i] = (v - y[0]) / scale
	}
	return z, scale, nil
}

// initialLogVariances splits the variance of the first differences evenly between the
// level and the observation noise
func initialLogVariances(z []float64) []float64 {
	diffs := make([]float64, len(z)-1)
	for i := 1; i < len(z); i++ {
		diffs[i-1] = z[i] - z[i-1]
	}
	v := stat.Variance(diffs, nil)
	if len(diffs) < 2 || v <= 0 || math.IsNaN(v) {
		v = 1
	}
	lv := clampLogVariance(math.Log(v / 2))
	return []float64{lv, lv}
}

func clampLogVariance(x float64) float64 {
	return math.Max(minLogVariance, math.Min(maxLogVariance, x))
}

// constantParams is returned for a constant series where the likelihood grows without
// bound as both variances shrink to zero
func constantParams() Params {
	return Params{
		Status:     "ConstantSeries",
		Degenerate: true,
	}
}
