// Package statespace implements the local-level state-space model: an unobserved level
// that follows a random walk and is observed with independent gaussian noise.
//
//	y_t    = mu_t + eps_t,   eps_t ~ N(0, ObsVariance)
//	mu_t+1 = mu_t + eta_t,   eta_t ~ N(0, LevelVariance)
//
// The two variances are estimated by a pluggable Fitter and the fitted model forecasts
// a flat mean with a variance that grows linearly with the horizon.
package statespace

import (
	"errors"
	"fmt"
)

var (
	ErrFitConvergence       = errors.New("model fit did not converge")
	ErrTooFewObservations   = errors.New("too few observations to fit a local level model")
	ErrNonFiniteInput       = errors.New("non-finite value in observations")
	ErrNegativeVariance     = errors.New("negative variance")
	ErrNegativeSteps        = errors.New("negative number of forecast steps")
	ErrUnknownMethod        = errors.New("unknown optimization method")
	ErrNegativeIterations   = errors.New("negative iterations")
	ErrInvalidGrid          = errors.New("invalid signal to noise grid")
	ErrUnsupportedComponent = errors.New("unsupported model component")
)

// Component names a state component of the structural model
type Component string

// ComponentLevel is the random walk level, the only component currently supported. A
// slope component would add a second state and a TrendFitter.
const ComponentLevel Component = "level"

func (c Component) Validate() error {
	switch c {
	case ComponentLevel:
		return nil
	default:
		return fmt.Errorf("%q, %w", c, ErrUnsupportedComponent)
	}
}

// Params are the fitted variances of a local level model along with details of the fit
type Params struct {
	LevelVariance float64 `json:"level_variance"`
	ObsVariance   float64 `json:"observation_variance"`

	// LogLikelihood is the gaussian log likelihood of the training series excluding the
	// first observation which initializes the level. It is left at 0 for a constant series
	// where the likelihood is unbounded.
	LogLikelihood float64 `json:"log_likelihood"`
	Iterations    int     `json:"iterations"`
	Status        string  `json:"status"`
	Degenerate    bool    `json:"degenerate"`
}

// Validate checks that both variances are non-negative
func (p Params) Validate() error {
	if p.LevelVariance < 0 {
		return fmt.Errorf("level variance %.6g, %w", p.LevelVariance, ErrNegativeVariance)
	}
	if p.ObsVariance < 0 {
		return fmt.Errorf("observation variance %.6g, %w", p.ObsVariance, ErrNegativeVariance)
	}
	return nil
}

// SignalToNoise returns the ratio of level variance to observation variance
func (p Params) SignalToNoise() float64 {
	if p.ObsVariance == 0 {
		return 0
	}
	return p.LevelVariance / p.ObsVariance
}
