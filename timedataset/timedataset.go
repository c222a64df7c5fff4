package timedataset

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrEmptyInput         = errors.New("no observations in input")
	ErrNonMontonic        = errors.New("time feature is not monotonic")
	ErrDatasetLenMismatch = errors.New("time feature has a different length than observations")
	ErrDuplicateDate      = errors.New("duplicate date in input")
	ErrNotDaily           = errors.New("dataset is not a contiguous daily series")
	ErrNonFinite          = errors.New("infinite value in observations")
)

// Day is the duration between two adjacent points of a normalized series
const Day = 24 * time.Hour

// TimeDataset represents a time series storing a slice of time points and values.
// Both must be of the same length.
type TimeDataset struct {
	T []time.Time `json:"time"`
	Y []float64   `json:"values"`
}

// NewUnivariateDataset returns an instance of a TimeDataset given a time and value slice.
func NewUnivariateDataset(t []time.Time, y []float64) (*TimeDataset, error) {
	if len(y) == 0 {
		return nil, ErrEmptyInput
	}
	if len(t) != len(y) {
		return nil, fmt.Errorf(
			"time feature has length of %d, but values has a length of %d, %w",
			len(t), len(y), ErrDatasetLenMismatch,
		)
	}

	var lastT time.Time
	for i := 0; i < len(t); i++ {
		currT := t[i]
		if currT.Before(lastT) || currT.Equal(lastT) {
			return nil, fmt.Errorf("non-monotonic at %d, %w", i, ErrNonMontonic)
		}
		lastT = currT
	}

	tSeries := make([]time.Time, len(t))
	ySeries := make([]float64, len(t))
	copy(tSeries, t)
	copy(ySeries, y)
	td := &TimeDataset{
		T: tSeries,
		Y: ySeries,
	}

	return td, nil
}

func (td *TimeDataset) Copy() *TimeDataset {
	tSeries := make([]time.Time, len(td.T))
	ySeries := make([]float64, len(td.T))
	copy(tSeries, td.T)
	copy(ySeries, td.Y)
	return &TimeDataset{
		T: tSeries,
		Y: ySeries,
	}
}

// Len returns the number of points in the dataset
func (td *TimeDataset) Len() int {
	if td == nil {
		return 0
	}
	return len(td.T)
}

// DropNan returns a copy of the dataset without any NaN observations
func (td *TimeDataset) DropNan() *TimeDataset {
	if td == nil {
		return nil
	}

	t := make([]time.Time, 0, len(td.T))
	y := make([]float64, 0, len(td.Y))
	for i := 0; i < len(td.T); i++ {
		if math.IsNaN(td.Y[i]) {
			continue
		}
		t = append(t, td.T[i])
		y = append(y, td.Y[i])
	}
	return &TimeDataset{
		T: t,
		Y: y,
	}
}

// Slice returns a copy of the points falling between start and end, both inclusive.
func (td *TimeDataset) Slice(start, end time.Time) *TimeDataset {
	if td == nil {
		return nil
	}

	t := make([]time.Time, 0, len(td.T))
	y := make([]float64, 0, len(td.Y))
	for i, tPnt := range td.T {
		if tPnt.Before(start) || tPnt.After(end) {
			continue
		}
		t = append(t, tPnt)
		y = append(y, td.Y[i])
	}
	return &TimeDataset{
		T: t,
		Y: y,
	}
}

// Bounds returns the first and last time of the dataset
func (td *TimeDataset) Bounds() (time.Time, time.Time) {
	if td == nil {
		return time.Time{}, time.Time{}
	}
	return TimeSlice(td.T).Span()
}

// ValidateDaily checks that adjacent points are exactly one calendar day apart
func (td *TimeDataset) ValidateDaily() error {
	if td.Len() == 0 {
		return ErrEmptyInput
	}
	for i := 1; i < len(td.T); i++ {
		if !AddDays(td.T[i-1], 1).Equal(td.T[i]) {
			return fmt.Errorf("gap between %s and %s, %w",
				td.T[i-1].Format(time.DateOnly), td.T[i].Format(time.DateOnly), ErrNotDaily)
		}
	}
	return nil
}

// TruncateDay maps a timestamp onto its calendar date at midnight UTC. The calendar
// date is taken in the timestamp's own location.
func TruncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays moves a calendar date by n days
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// DaysBetween returns the number of whole calendar days from start to end
func DaysBetween(start, end time.Time) int {
	return int(math.Round(TruncateDay(end).Sub(TruncateDay(start)).Hours() / 24.0))
}
