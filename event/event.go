// Package event annotates analysis periods with calendar holidays that may confound the
// estimated effect.
package event

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gabriellapppaixao/causal-impact-mvp/timedataset"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/br"
	"github.com/rickar/cal/v2/us"
)

var (
	ErrStartAfterEnd   = errors.New("event start time is after end time")
	ErrUnsetTime       = errors.New("unset event start or end time")
	ErrNoEventName     = errors.New("no event name")
	ErrUnknownCalendar = errors.New("unknown holiday calendar")
)

// Holiday calendars selectable by name
const (
	CalendarUS = "us"
	CalendarBR = "br"
)

// Event is a named holiday observed on a single calendar day
type Event struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

func (e Event) Valid() error {
	if e.Date.IsZero() {
		return ErrUnsetTime
	}
	if e.Name == "" {
		return ErrNoEventName
	}
	return nil
}

func (e Event) String() string {
	return fmt.Sprintf("%s (%s)", e.Name, e.Date.Format(time.DateOnly))
}

// USHolidays are the federal holidays annotated by default
func USHolidays() []*cal.Holiday {
	return []*cal.Holiday{
		us.NewYear,
		us.MemorialDay,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	}
}

// BRHolidays are the Brazilian national holidays
func BRHolidays() []*cal.Holiday {
	return append([]*cal.Holiday(nil), br.Holidays...)
}

// Calendar returns the holidays of the named calendar
func Calendar(name string) ([]*cal.Holiday, error) {
	switch name {
	case CalendarUS:
		return USHolidays(), nil
	case CalendarBR:
		return BRHolidays(), nil
	default:
		return nil, fmt.Errorf("%q, %w", name, ErrUnknownCalendar)
	}
}

// Holiday returns the observed dates of hol that fall on a day within [start, end]
func Holiday(hol *cal.Holiday, start, end time.Time) ([]Event, error) {
	if start.IsZero() || end.IsZero() {
		return nil, ErrUnsetTime
	}
	start = timedataset.TruncateDay(start)
	end = timedataset.TruncateDay(end)
	if start.After(end) {
		return nil, ErrStartAfterEnd
	}

	events := []Event{}
	for i := start.Year(); i <= end.Year(); i++ {
		_, observed := hol.Calc(i)
		day := time.Date(observed.Year(), observed.Month(), observed.Day(), 0, 0, 0, 0, time.UTC)
		if day.Before(start) || day.After(end) {
			continue
		}
		events = append(events, Event{Name: hol.Name, Date: day})
	}
	return events, nil
}

// InRange returns every observed holiday of hols within [start, end] ordered by date
func InRange(hols []*cal.Holiday, start, end time.Time) ([]Event, error) {
	events := []Event{}
	for _, hol := range hols {
		evs, err := Holiday(hol, start, end)
		if err != nil {
			return nil, fmt.Errorf("unable to compute %s, %w", hol.Name, err)
		}
		events = append(events, evs...)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
	return events, nil
}
