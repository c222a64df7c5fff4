// Package period resolves the pre-intervention and post-intervention date ranges of
// an analysis from either a single intervention date or explicit boundaries.
package period

import (
	"errors"
	"fmt"
	"time"

	"github.com/gabriellapppaixao/causal-impact-mvp/timedataset"
)

var (
	ErrOutOfRange      = errors.New("date is outside of the series range")
	ErrEmptyPeriod     = errors.New("period is empty")
	ErrInvalidOrdering = errors.New("period boundaries are out of order")
	ErrUnsetTime       = errors.New("unset period start or end time")
)

// Period is an inclusive range of calendar dates
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New returns a period truncated to calendar dates
func New(start, end time.Time) Period {
	return Period{
		Start: timedataset.TruncateDay(start),
		End:   timedataset.TruncateDay(end),
	}
}

// Valid checks that the period is set and that start is not after end
func (p Period) Valid() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return ErrUnsetTime
	}
	if p.Start.After(p.End) {
		return fmt.Errorf("start %s after end %s, %w", p.Start.Format(time.DateOnly), p.End.Format(time.DateOnly), ErrInvalidOrdering)
	}
	return nil
}

// Days returns the number of calendar days covered by the period
func (p Period) Days() int {
	if p.Start.After(p.End) {
		return 0
	}
	return timedataset.DaysBetween(p.Start, p.End) + 1
}

// Contains reports if t falls on a day inside the period
func (p Period) Contains(t time.Time) bool {
	d := timedataset.TruncateDay(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

func (p Period) String() string {
	return fmt.Sprintf("%s to %s", p.Start.Format(time.DateOnly), p.End.Format(time.DateOnly))
}

// PrePost holds the two non-overlapping periods of an analysis. Pre ends strictly
// before Post starts.
type PrePost struct {
	Pre  Period `json:"pre_period"`
	Post Period `json:"post_period"`
}

// Intervention returns the first day of the post period
func (pp PrePost) Intervention() time.Time {
	return pp.Post.Start
}

func (pp PrePost) String() string {
	return fmt.Sprintf("pre: %s, post: %s", pp.Pre, pp.Post)
}

// Bounds returns the period spanned by a normalized dataset
func Bounds(td *timedataset.TimeDataset) (Period, error) {
	if td.Len() == 0 {
		return Period{}, timedataset.ErrEmptyInput
	}
	start, end := td.Bounds()
	return New(start, end), nil
}

// FromIntervention splits the bounds at the intervention date. The pre period runs
// up to the day before the intervention and the post period from the intervention
// to the end of the bounds.
func FromIntervention(bounds Period, intervention time.Time) (PrePost, error) {
	if err := bounds.Valid(); err != nil {
		return PrePost{}, fmt.Errorf("invalid series bounds, %w", err)
	}
	intervention = timedataset.TruncateDay(intervention)
	if !bounds.Contains(intervention) {
		return PrePost{}, fmt.Errorf("intervention %s not within %s, %w",
			intervention.Format(time.DateOnly), bounds, ErrOutOfRange)
	}
	if intervention.Equal(bounds.Start) {
		return PrePost{}, fmt.Errorf("intervention %s is the first day of the series so the pre period has no days, %w",
			intervention.Format(time.DateOnly), ErrEmptyPeriod)
	}

	return PrePost{
		Pre:  Period{Start: bounds.Start, End: timedataset.AddDays(intervention, -1)},
		Post: Period{Start: intervention, End: bounds.End},
	}, nil
}

// FromBoundaries validates explicit pre and post boundaries against each other and
// against the series bounds.
func FromBoundaries(bounds Period, preStart, preEnd, postStart, postEnd time.Time) (PrePost, error) {
	if err := bounds.Valid(); err != nil {
		return PrePost{}, fmt.Errorf("invalid series bounds, %w", err)
	}

	pre := New(preStart, preEnd)
	post := New(postStart, postEnd)
	if !pre.Start.Before(pre.End) {
		return PrePost{}, fmt.Errorf("pre start %s must be before pre end %s, %w",
			pre.Start.Format(time.DateOnly), pre.End.Format(time.DateOnly), ErrInvalidOrdering)
	}
	if !post.Start.Before(post.End) {
		return PrePost{}, fmt.Errorf("post start %s must be before post end %s, %w",
			post.Start.Format(time.DateOnly), post.End.Format(time.DateOnly), ErrInvalidOrdering)
	}
	if !pre.End.Before(post.Start) {
		return PrePost{}, fmt.Errorf("pre end %s must be before post start %s, %w",
			pre.End.Format(time.DateOnly), post.Start.Format(time.DateOnly), ErrInvalidOrdering)
	}

	for _, d := range []time.Time{pre.Start, pre.End, post.Start, post.End} {
		if !bounds.Contains(d) {
			return PrePost{}, fmt.Errorf("boundary %s not within %s, %w",
				d.Format(time.DateOnly), bounds, ErrOutOfRange)
		}
	}

	return PrePost{Pre: pre, Post: post}, nil
}

// DefaultIntervention returns the middle day of the bounds
func DefaultIntervention(bounds Period) time.Time {
	return timedataset.AddDays(bounds.Start, (bounds.Days()-1)/2)
}
