package causalimpact

import (
	"errors"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var ErrNothingToPlot = errors.New("report has no series to plot")

// missing is the echarts placeholder for a point without a value
const missing = "-"

func lineData(y []float64) []opts.LineData {
	data := make([]opts.LineData, 0, len(y))
	for _, v := range y {
		if math.IsNaN(v) {
			data = append(data, opts.LineData{Value: missing})
			continue
		}
		data = append(data, opts.LineData{Value: v})
	}
	return data
}

func dateAxis(t []time.Time) []string {
	axis := make([]string, 0, len(t))
	for _, tPnt := range t {
		axis = append(axis, tPnt.Format(time.DateOnly))
	}
	return axis
}

// LineTSeries generates an echart multi-line chart over daily dates. Every slice of y must
// have the same length as t and NaN values are left as gaps.
func LineTSeries(title string, seriesName []string, t []time.Time, y [][]float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
		charts.WithTooltipOpts(
			opts.Tooltip{
				Trigger: "axis",
			},
		),
	)

	line = line.SetXAxis(dateAxis(t))
	for i, series := range seriesName {
		line = line.AddSeries(series, lineData(y[i]))
	}
	return line
}

// LineCounterfactual generates an echart line chart of the observed series against the
// counterfactual forecast and its interval, with the intervention date marked
func (r *Report) LineCounterfactual() *charts.Line {
	n := r.Series.Len()
	forecast := make([]float64, n)
	upper := make([]float64, n)
	lower := make([]float64, n)
	for i := range forecast {
		forecast[i] = math.NaN()
		upper[i] = math.NaN()
		lower[i] = math.NaN()
	}

	// the counterfactual covers the post period which is a contiguous run of days
	var offset int
	if r.Counterfactual.Len() > 0 {
		for offset < n && r.Series.T[offset].Before(r.Counterfactual.T[0]) {
			offset++
		}
	}
	for i := 0; i < r.Counterfactual.Len() && offset+i < n; i++ {
		forecast[offset+i] = r.Counterfactual.Forecast[i]
		upper[offset+i] = r.Counterfactual.Upper[i]
		lower[offset+i] = r.Counterfactual.Lower[i]
	}

	line := LineTSeries(
		"Observed vs Counterfactual",
		nil,
		r.Series.T,
		nil,
	)
	line.AddSeries("Observed", lineData(r.Series.Y),
		charts.WithMarkLineNameXAxisItemOpts(
			opts.MarkLineNameXAxisItem{
				Name:  "Intervention",
				XAxis: r.Intervention.Format(time.DateOnly),
			},
		),
	).
		AddSeries("Counterfactual", lineData(forecast)).
		AddSeries("Upper", lineData(upper), charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"})).
		AddSeries("Lower", lineData(lower), charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	return line
}

// PlotFit uses the Apache Echarts library to render an html page with the observed series
// against its counterfactual followed by the point-wise and cumulative effects
func (r *Report) PlotFit(w io.Writer) error {
	if r == nil || r.Series.Len() == 0 {
		return ErrNothingToPlot
	}

	page := components.NewPage()
	page.AddCharts(
		r.LineCounterfactual(),
		LineTSeries(
			"Effect",
			[]string{"Point Effect", "Cumulative Effect"},
			r.Summary.T,
			[][]float64{
				r.Summary.PointEffects,
				r.Summary.CumulativeEffect,
			},
		),
	)
	return page.Render(w)
}
