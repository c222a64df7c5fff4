// Package stats summarizes a series for the preview handed to the presentation layer.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	mstats "github.com/montanaflynn/stats"
)

const (
	DefaultLowerPercentile = 0.25
	DefaultUpperPercentile = 0.75
	DefaultTukeyFactor     = 1.5
)

var ErrNoData = errors.New("no non-NaN values to describe")

// Description holds descriptive statistics of the non-NaN values of a series
type Description struct {
	Count    int     `json:"count"`
	Missing  int     `json:"missing"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Q25      float64 `json:"q25"`
	Median   float64 `json:"median"`
	Q75      float64 `json:"q75"`
	Max      float64 `json:"max"`
	Outliers int     `json:"outliers"`
}

// Describe computes the description of y ignoring NaNs. Outliers are counted with Tukey
// fences on the interquartile range.
func Describe(y []float64) (Description, error) {
	data := make(mstats.Float64Data, 0, len(y))
	var missing int
	for _, v := range y {
		if math.IsNaN(v) {
			missing++
			continue
		}
		data = append(data, v)
	}
	if len(data) == 0 {
		return Description{Missing: missing}, ErrNoData
	}

	d := Description{Count: len(data), Missing: missing}
	var err error
	if d.Mean, err = mstats.Mean(data); err != nil {
		return Description{}, fmt.Errorf("unable to compute mean, %w", err)
	}
	if d.StdDev, err = mstats.StandardDeviationSample(data); err != nil {
		return Description{}, fmt.Errorf("unable to compute standard deviation, %w", err)
	}
	if len(data) == 1 {
		d.StdDev = 0
	}
	if d.Min, err = mstats.Min(data); err != nil {
		return Description{}, fmt.Errorf("unable to compute min, %w", err)
	}
	if d.Max, err = mstats.Max(data); err != nil {
		return Description{}, fmt.Errorf("unable to compute max, %w", err)
	}
	if d.Median, err = mstats.Median(data); err != nil {
		return Description{}, fmt.Errorf("unable to compute median, %w", err)
	}
	// too few points for a quartile falls back to the median
	if d.Q25, err = mstats.Percentile(data, 25); err != nil {
		d.Q25 = d.Median
	}
	if d.Q75, err = mstats.Percentile(data, 75); err != nil {
		d.Q75 = d.Median
	}
	d.Outliers = len(DetectOutliers(data, DefaultLowerPercentile, DefaultUpperPercentile, DefaultTukeyFactor))
	return d, nil
}

// DetectOutliers returns the indexes of y that fall strictly outside the fences built from
// the lower and upper percentiles widened by tukeyFactor times their range. NaNs are never
// outliers.
func DetectOutliers(y []float64, lowerPerc, upperPerc, tukeyFactor float64) []int {
	lowerPerc = math.Max(lowerPerc, 0.0)
	upperPerc = math.Min(upperPerc, 1.0)
	tukeyFactor = math.Max(tukeyFactor, 0.0)

	yCopy := make([]float64, 0, len(y))
	for _, v := range y {
		if !math.IsNaN(v) {
			yCopy = append(yCopy, v)
		}
	}
	if len(yCopy) == 0 {
		return nil
	}
	sort.Float64s(yCopy)

	last := len(yCopy) - 1
	lowerIdx := min(int(math.Floor(float64(last)*lowerPerc)), last)
	upperIdx := min(int(math.Ceil(float64(last)*upperPerc)), last)

	lower := yCopy[lowerIdx]
	upper := yCopy[upperIdx]
	innerRange := upper - lower
	lower -= innerRange * tukeyFactor
	upper += innerRange * tukeyFactor

	var outlierIdx []int
	for i := 0; i < len(y); i++ {
		if math.IsNaN(y[i]) {
			continue
		}
		if y[i] > upper || y[i] < lower {
			outlierIdx = append(outlierIdx, i)
		}
	}
	return outlierIdx
}
