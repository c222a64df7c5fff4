package timedataset

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
)

var ErrUnknownFillPolicy = errors.New("unknown fill policy")

// FillPolicy describes how missing days are filled in when a raw series is expanded
// onto a complete daily grid.
type FillPolicy string

const (
	// FillForwardBackward carries the last known value forward across gaps. Leading
	// gaps with no prior value take the first known value. Assumes the series is
	// locally constant across a gap.
	FillForwardBackward FillPolicy = "ffill_bfill"

	// FillZero treats every missing day as a zero observation.
	FillZero FillPolicy = "zero"
)

// Fill replaces NaN values in place according to the policy
func (p FillPolicy) Fill(y []float64) error {
	switch p {
	case FillForwardBackward, "":
		fillForward(y)
		fillBackward(y)
	case FillZero:
		for i, v := range y {
			if math.IsNaN(v) {
				y[i] = 0.0
			}
		}
	default:
		return fmt.Errorf("%q, %w", p, ErrUnknownFillPolicy)
	}
	return nil
}

func fillForward(y []float64) {
	last := math.NaN()
	for i, v := range y {
		if math.IsNaN(v) {
			y[i] = last
			continue
		}
		last = v
	}
}

func fillBackward(y []float64) {
	next := math.NaN()
	for i := len(y) - 1; i >= 0; i-- {
		if math.IsNaN(y[i]) {
			y[i] = next
			continue
		}
		next = y[i]
	}
}

// Normalize expands an unordered, possibly gapped set of observations into a
// complete daily series between the first and last observed date, inclusive,
// filling missing days with FillForwardBackward.
func Normalize(t []time.Time, y []float64) (*TimeDataset, error) {
	return NormalizeWithPolicy(t, y, FillForwardBackward)
}

// NormalizeWithPolicy is Normalize with an explicit gap filling policy. Timestamps
// are truncated to their calendar date and NaN observations are treated as gaps.
func NormalizeWithPolicy(t []time.Time, y []float64, policy FillPolicy) (*TimeDataset, error) {
	if len(t) != len(y) {
		return nil, fmt.Errorf(
			"time feature has length of %d, but values has a length of %d, %w",
			len(t), len(y), ErrDatasetLenMismatch,
		)
	}
	if len(y) == 0 {
		return nil, ErrEmptyInput
	}

	idx := make([]int, len(t))
	for i := range idx {
		idx[i] = i
	}
	days := make([]time.Time, len(t))
	for i, tPnt := range t {
		days[i] = TruncateDay(tPnt)
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return days[idx[i]].Before(days[idx[j]])
	})

	var numObserved int
	for i := 1; i < len(idx); i++ {
		if days[idx[i]].Equal(days[idx[i-1]]) {
			return nil, fmt.Errorf("%s, %w", days[idx[i]].Format(time.DateOnly), ErrDuplicateDate)
		}
	}
	for i, v := range y {
		if math.IsInf(v, 0) {
			return nil, fmt.Errorf("%v on %s, %w", v, days[i].Format(time.DateOnly), ErrNonFinite)
		}
		if !math.IsNaN(v) {
			numObserved++
		}
	}
	if numObserved == 0 {
		return nil, ErrEmptyInput
	}

	start := days[idx[0]]
	end := days[idx[len(idx)-1]]
	n := DaysBetween(start, end) + 1

	sortedDays := make(TimeSlice, len(idx))
	for i, j := range idx {
		sortedDays[i] = days[j]
	}
	if freq, err := sortedDays.EstimateFreq(); err == nil && freq != Day {
		slog.Warn("input series is not sampled daily, gaps will be filled", "frequency", freq.String(), "policy", string(policy))
	}
	if gaps := sortedDays.Gaps(); len(gaps) > 0 {
		slog.Debug("filling gaps", "gaps", len(gaps), "missing_days", sortedDays.MissingDays(), "policy", string(policy))
	}

	tGrid := make([]time.Time, n)
	yGrid := make([]float64, n)
	for i := 0; i < n; i++ {
		tGrid[i] = AddDays(start, i)
		yGrid[i] = math.NaN()
	}
	for _, j := range idx {
		yGrid[DaysBetween(start, days[j])] = y[j]
	}

	if err := policy.Fill(yGrid); err != nil {
		return nil, err
	}

	return &TimeDataset{
		T: tGrid,
		Y: yGrid,
	}, nil
}
