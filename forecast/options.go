package forecast

import (
	"errors"
	"fmt"
	"io"

	"github.com/gabriellapppaixao/causal-impact-mvp/forecast/util"
	"github.com/gabriellapppaixao/causal-impact-mvp/statespace"
)

const (
	DefaultMinTrainingPoints = 20
	DefaultZscore            = 1.96

	FitterMLE  = "mle"
	FitterGrid = "grid"
)

var (
	ErrMinTrainingPoints = errors.New("minimum training points must be at least 2")
	ErrNonPositiveZscore = errors.New("zscore must be positive")
	ErrUnknownFitter     = errors.New("unknown fitter")
	ErrNoComponents      = errors.New("no model components")
)

// Options configures how the counterfactual model is fit and how wide its interval is
type Options struct {
	// MinTrainingPoints is the fewest non-NaN pre period points a fit accepts. Below 20 the
	// level and observation variances are not reliably identifiable.
	MinTrainingPoints int `json:"min_training_points"`

	// Zscore scales the forecast standard deviation into the interval half width. 1.96
	// gives an approximate 95% interval.
	Zscore float64 `json:"zscore"`

	// FitterType selects the built in variance estimator, mle or grid
	FitterType  string                  `json:"fitter"`
	MLEOptions  *statespace.MLEOptions  `json:"mle_options,omitempty"`
	GridOptions *statespace.GridOptions `json:"grid_options,omitempty"`

	// Fitter overrides FitterType with a custom variance estimator
	Fitter statespace.Fitter `json:"-"`

	Components []statespace.Component `json:"components"`
}

// NewDefaultOptions returns the maximum likelihood level-only model with a 95% interval
func NewDefaultOptions() *Options {
	return &Options{
		MinTrainingPoints: DefaultMinTrainingPoints,
		Zscore:            DefaultZscore,
		FitterType:        FitterMLE,
		MLEOptions:        statespace.NewDefaultMLEOptions(),
		Components:        []statespace.Component{statespace.ComponentLevel},
	}
}

// Validate fills defaults for unset fields and checks the rest
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return NewDefaultOptions(), nil
	}
	res := *o
	if res.MinTrainingPoints == 0 {
		res.MinTrainingPoints = DefaultMinTrainingPoints
	}
	if res.MinTrainingPoints < 2 {
		return nil, fmt.Errorf("got %d, %w", res.MinTrainingPoints, ErrMinTrainingPoints)
	}
	if res.Zscore == 0 {
		res.Zscore = DefaultZscore
	}
	if res.Zscore < 0 {
		return nil, fmt.Errorf("got %.3f, %w", res.Zscore, ErrNonPositiveZscore)
	}
	if res.FitterType == "" {
		res.FitterType = FitterMLE
	}
	if len(res.Components) == 0 {
		res.Components = []statespace.Component{statespace.ComponentLevel}
	}
	for _, c := range res.Components {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	if _, err := res.NewFitter(); err != nil {
		return nil, err
	}
	return &res, nil
}

// NewFitter returns the configured variance estimator
func (o *Options) NewFitter() (statespace.Fitter, error) {
	if o == nil {
		return statespace.NewMLEFitter(nil), nil
	}
	if o.Fitter != nil {
		return o.Fitter, nil
	}
	switch o.FitterType {
	case FitterMLE, "":
		mleOpt, err := o.MLEOptions.Validate()
		if err != nil {
			return nil, err
		}
		return statespace.NewMLEFitter(mleOpt), nil
	case FitterGrid:
		gridOpt, err := o.GridOptions.Validate()
		if err != nil {
			return nil, err
		}
		return statespace.NewGridFitter(gridOpt), nil
	default:
		return nil, fmt.Errorf("%q, %w", o.FitterType, ErrUnknownFitter)
	}
}

func (o *Options) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	if o == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%s%sOptions:\n", prefix, util.IndentExpand(indent, indentGrowth)); err != nil {
		return err
	}
	fitter := o.FitterType
	if o.Fitter != nil {
		fitter = fmt.Sprintf("%T", o.Fitter)
	} else if fitter == FitterMLE && o.MLEOptions != nil {
		fitter = fmt.Sprintf("%s (%s, max %d iterations)", fitter, o.MLEOptions.Method, o.MLEOptions.MaxIterations)
	}
	if _, err := fmt.Fprintf(w, "%s%sFitter: %s\n", prefix, util.IndentExpand(indent, indentGrowth+1), fitter); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sMin Training Points: %d    Zscore: %.2f\n",
		prefix, util.IndentExpand(indent, indentGrowth+1),
		o.MinTrainingPoints, o.Zscore); err != nil {
		return err
	}
	return nil
}
