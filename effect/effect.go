// Package effect combines the observed post period with its counterfactual forecast into
// point-wise effects and a total effect summary.
package effect

import (
	"errors"
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"github.com/gabriellapppaixao/causal-impact-mvp/forecast"
	"github.com/gabriellapppaixao/causal-impact-mvp/forecast/util"
	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/floats"
)

// DefaultZscore recovers the per step standard deviation from a 95% interval
const DefaultZscore = 1.96

var (
	ErrEmptyPost      = errors.New("no post period points to summarize")
	ErrLenMismatch    = errors.New("observed and forecast have different lengths")
	ErrUndefinedRatio = errors.New("relative effect is undefined when the expected total is zero")
	ErrNoForecast     = errors.New("no forecast results")
)

// Summary aggregates the effect of the intervention over the post period
type Summary struct {
	EffectTotal   float64 `json:"effect_total"`
	ExpectedTotal float64 `json:"expected_total"`
	ObservedTotal float64 `json:"observed_total"`

	// RelEffect is EffectTotal / ExpectedTotal. It is NaN when RelEffectDefined is false.
	RelEffect        float64 `json:"-"`
	RelEffectDefined bool    `json:"rel_effect_defined"`

	// Lower and Upper bound EffectTotal assuming the per step forecast errors are
	// independent, so their variances add.
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	StdDev float64 `json:"std_dev"`

	T                []time.Time `json:"time"`
	PointEffects     []float64   `json:"point_effects"`
	CumulativeEffect []float64   `json:"cumulative_effect"`
}

// Undefined returns ErrUndefinedRatio when the relative effect could not be computed
func (s Summary) Undefined() error {
	if s.RelEffectDefined {
		return nil
	}
	return ErrUndefinedRatio
}

// Summarize computes the effect of observed against the forecast. observed must line up
// with the forecast times.
func Summarize(observed []float64, res *forecast.Results) (Summary, error) {
	return SummarizeWithZscore(observed, res, DefaultZscore)
}

// SummarizeWithZscore is Summarize for a forecast whose interval was built with zscore
func SummarizeWithZscore(observed []float64, res *forecast.Results, zscore float64) (Summary, error) {
	if res == nil {
		return Summary{}, ErrNoForecast
	}
	n := res.Len()
	if n == 0 || len(observed) == 0 {
		return Summary{}, ErrEmptyPost
	}
	if len(observed) != n || len(res.Forecast) != n || len(res.Upper) != n || len(res.Lower) != n {
		return Summary{}, fmt.Errorf("observed %d, forecast %d, %w", len(observed), n, ErrLenMismatch)
	}

	point := make([]float64, n)
	copy(point, observed)
	floats.Sub(point, res.Forecast)

	cumulative := make([]float64, n)
	floats.CumSum(cumulative, point)

	var totalVar float64
	for i := 0; i < n; i++ {
		sigma := (res.Upper[i] - res.Lower[i]) / (2 * zscore)
		totalVar += sigma * sigma
	}
	sd := math.Sqrt(totalVar)

	s := Summary{
		EffectTotal:      floats.Sum(point),
		ExpectedTotal:    floats.Sum(res.Forecast),
		ObservedTotal:    floats.Sum(observed),
		StdDev:           sd,
		T:                append([]time.Time(nil), res.T...),
		PointEffects:     point,
		CumulativeEffect: cumulative,
	}
	s.Lower = s.EffectTotal - zscore*sd
	s.Upper = s.EffectTotal + zscore*sd

	if s.ExpectedTotal == 0 {
		s.RelEffect = math.NaN()
	} else {
		s.RelEffect = s.EffectTotal / s.ExpectedTotal
		s.RelEffectDefined = true
	}
	return s, nil
}

// MarshalJSON writes rel_effect as null when it is undefined
func (s Summary) MarshalJSON() ([]byte, error) {
	type summary Summary
	out := struct {
		summary
		RelEffect *float64 `json:"rel_effect"`
	}{summary: summary(s)}
	if s.RelEffectDefined {
		rel := s.RelEffect
		out.RelEffect = &rel
	}
	return json.Marshal(out)
}

func (s Summary) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	if _, err := fmt.Fprintf(w, "%s%sEffect Summary:\n", prefix, util.IndentExpand(indent, indentGrowth)); err != nil {
		return err
	}

	rel := "undefined (expected total is zero)"
	if s.RelEffectDefined {
		rel = fmt.Sprintf("%.2f%%", 100*s.RelEffect)
	}

	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	rows := []struct {
		name  string
		value string
	}{
		{"Observed Total", fmt.Sprintf("%.3f", s.ObservedTotal)},
		{"Expected Total", fmt.Sprintf("%.3f", s.ExpectedTotal)},
		{"Effect Total", fmt.Sprintf("%.3f", s.EffectTotal)},
		{"95% Interval", fmt.Sprintf("[%.3f, %.3f]", s.Lower, s.Upper)},
		{"Relative Effect", rel},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tbl, "%s%s%s\t%s\t\n",
			prefix, util.IndentExpand(indent, indentGrowth+1), r.name, r.value); err != nil {
			return err
		}
	}
	return tbl.Flush()
}
