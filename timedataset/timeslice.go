package timedataset

import (
	"errors"
	"time"
)

var ErrCannotInferFreq = errors.New("cannot infer frequency from time slice with less than 2 points")

// TimeSlice is an ordered slice of days
type TimeSlice []time.Time

// Span returns the first and last day, or zero times for an empty slice
func (t TimeSlice) Span() (time.Time, time.Time) {
	if len(t) == 0 {
		return time.Time{}, time.Time{}
	}
	return t[0], t[len(t)-1]
}

// Gap is a run of consecutive days with no observation
type Gap struct {
	Start time.Time `json:"start"`
	Days  int       `json:"days"`
}

// Gaps returns the runs of missing days between adjacent points
func (t TimeSlice) Gaps() []Gap {
	var gaps []Gap
	for i := 1; i < len(t); i++ {
		if missing := DaysBetween(t[i-1], t[i]) - 1; missing > 0 {
			gaps = append(gaps, Gap{Start: AddDays(t[i-1], 1), Days: missing})
		}
	}
	return gaps
}

// MissingDays returns the total number of days covered by gaps
func (t TimeSlice) MissingDays() int {
	var n int
	for _, g := range t.Gaps() {
		n += g.Days
	}
	return n
}

// EstimateFreq returns the most common spacing between adjacent points. Ties go to the
// smaller spacing.
func (t TimeSlice) EstimateFreq() (time.Duration, error) {
	if len(t) < 2 {
		return 0, ErrCannotInferFreq
	}

	frequencies := make(map[time.Duration]int)
	for i := 1; i < len(t); i++ {
		frequencies[t[i].Sub(t[i-1])]++
	}

	var maxCnt int
	var maxDelta time.Duration
	for delta, cnt := range frequencies {
		if cnt > maxCnt || (cnt == maxCnt && delta < maxDelta) {
			maxCnt = cnt
			maxDelta = delta
		}
	}
	return maxDelta, nil
}
