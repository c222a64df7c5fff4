package causalimpact

import (
	"errors"
	"fmt"
	"time"

	"github.com/gabriellapppaixao/causal-impact-mvp/ingest"
	"github.com/gabriellapppaixao/causal-impact-mvp/period"
)

var (
	ErrAmbiguousWindow    = errors.New("set either an intervention date or explicit boundaries, not both")
	ErrIncompleteBoundary = errors.New("explicit boundaries need pre start, pre end, post start and post end")
)

// Window selects how the series is split into pre and post periods. Either Intervention
// is set, or all four boundaries are. A zero Window splits at the middle of the series.
type Window struct {
	Intervention time.Time `json:"intervention"`

	PreStart  time.Time `json:"pre_start"`
	PreEnd    time.Time `json:"pre_end"`
	PostStart time.Time `json:"post_start"`
	PostEnd   time.Time `json:"post_end"`
}

// Explicit returns true when any of the four boundaries is set
func (w Window) Explicit() bool {
	return !w.PreStart.IsZero() || !w.PreEnd.IsZero() || !w.PostStart.IsZero() || !w.PostEnd.IsZero()
}

// Resolve turns the window into validated periods within bounds
func (w Window) Resolve(bounds period.Period) (period.PrePost, error) {
	if !w.Explicit() {
		intervention := w.Intervention
		if intervention.IsZero() {
			intervention = period.DefaultIntervention(bounds)
		}
		return period.FromIntervention(bounds, intervention)
	}

	if !w.Intervention.IsZero() {
		return period.PrePost{}, ErrAmbiguousWindow
	}
	for _, b := range w.boundaries() {
		if b.date.IsZero() {
			return period.PrePost{}, fmt.Errorf("missing %s, %w", b.name, ErrIncompleteBoundary)
		}
	}
	return period.FromBoundaries(bounds, w.PreStart, w.PreEnd, w.PostStart, w.PostEnd)
}

type boundary struct {
	name string
	date time.Time
}

func (w Window) boundaries() []boundary {
	return []boundary{
		{"pre start", w.PreStart},
		{"pre end", w.PreEnd},
		{"post start", w.PostStart},
		{"post end", w.PostEnd},
	}
}

// ParseWindow builds a window from date strings in any layout accepted by
// ingest.ParseDate. Empty strings leave the matching field unset.
func ParseWindow(intervention, preStart, preEnd, postStart, postEnd string) (Window, error) {
	var w Window
	for _, f := range []struct {
		name  string
		value string
		dst   *time.Time
	}{
		{"intervention", intervention, &w.Intervention},
		{"pre start", preStart, &w.PreStart},
		{"pre end", preEnd, &w.PreEnd},
		{"post start", postStart, &w.PostStart},
		{"post end", postEnd, &w.PostEnd},
	} {
		if f.value == "" {
			continue
		}
		d, err := ingest.ParseDate(f.value)
		if err != nil {
			return Window{}, fmt.Errorf("%s, %w", f.name, err)
		}
		*f.dst = d
	}
	return w, nil
}
