package statespace

import (
	"fmt"
	"math"
)

var log2Pi = math.Log(2 * math.Pi)

// FilterResult holds the output of running the Kalman filter over a series. All slices have
// the same length as the input series. Index 0 initializes the level so its prediction is
// the observation itself with an undefined prediction variance of NaN.
type FilterResult struct {
	// Level is the filtered level a_t|t after observing y_t
	Level []float64

	// Predicted is the one step ahead prediction a_t|t-1
	Predicted []float64

	// PredVariance is the variance F_t of the one step ahead prediction error
	PredVariance []float64

	// Innovations are the one step ahead prediction errors y_t - a_t|t-1
	Innovations []float64

	// LevelVariance is the variance P_n|n of the final filtered level
	LevelVariance float64

	LogLikelihood float64
}

// FinalLevel returns the filtered level after the last observation
func (f *FilterResult) FinalLevel() float64 {
	if f == nil || len(f.Level) == 0 {
		return math.NaN()
	}
	return f.Level[len(f.Level)-1]
}

// Filter runs the Kalman filter of the local level model over y using exact diffuse
// initialization. The first observation sets the level with variance obsVar and does not
// contribute to the log likelihood.
func Filter(y []float64, levelVar, obsVar float64) (*FilterResult, error) {
	if len(y) == 0 {
		return nil, ErrTooFewObservations
	}
	if levelVar < 0 || obsVar < 0 {
		return nil, fmt.Errorf("level %.6g, observation %.6g, %w", levelVar, obsVar, ErrNegativeVariance)
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("index %d, %w", i, ErrNonFiniteInput)
		}
	}

	n := len(y)
	res := &FilterResult{
		Level:        make([]float64, n),
		Predicted:    make([]float64, n),
		PredVariance: make([]float64, n),
		Innovations:  make([]float64, n),
	}

	a := y[0]
	p := obsVar
	res.Level[0] = a
	res.Predicted[0] = a
	res.PredVariance[0] = math.NaN()

	var loglik float64
	for t := 1; t < n; t++ {
		aPred := a
		pPred := p + levelVar
		f := pPred + obsVar
		v := y[t] - aPred

		res.Predicted[t] = aPred
		res.PredVariance[t] = f
		res.Innovations[t] = v

		if f <= 0 {
			// level is known exactly so any deviation is impossible under the model
			if v != 0 {
				loglik = math.Inf(-1)
			}
			a = aPred
			p = 0
			res.Level[t] = a
			continue
		}

		k := pPred / f
		a = aPred + k*v
		p = pPred * (1 - k)
		res.Level[t] = a

		loglik -= 0.5 * (log2Pi + math.Log(f) + v*v/f)
	}
	res.LevelVariance = p
	res.LogLikelihood = loglik
	return res, nil
}
