package event

import (
	"testing"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoliday(t *testing.T) {
	testData := map[string]struct {
		hol      *cal.Holiday
		start    time.Time
		end      time.Time
		expected []Event
		err      error
	}{
		"simple": {
			hol:   us.ChristmasDay,
			start: time.Date(2024, 12, 8, 1, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 12, 8, 1, 0, 0, 0, time.UTC),
			expected: []Event{
				{us.ChristmasDay.Name, time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)},
				{us.ChristmasDay.Name, time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)},
			},
		},
		"non utc tz keeps the calendar date": {
			hol:   us.ChristmasDay,
			start: time.Date(2024, 12, 8, 1, 0, 0, 0, time.FixedZone("UTC-8", -8*60*60)),
			end:   time.Date(2024, 12, 25, 1, 0, 0, 0, time.FixedZone("UTC-8", -8*60*60)),
			expected: []Event{
				{us.ChristmasDay.Name, time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)},
			},
		},
		"inclusive end day": {
			hol:   us.IndependenceDay,
			start: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC),
			expected: []Event{
				{us.IndependenceDay.Name, time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC)},
			},
		},
		"none in range": {
			hol:      us.ThanksgivingDay,
			start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			end:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			expected: []Event{},
		},
		"unset": {
			hol: us.ChristmasDay,
			end: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			err: ErrUnsetTime,
		},
		"start after end": {
			hol:   us.ChristmasDay,
			start: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			err:   ErrStartAfterEnd,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := Holiday(td.hol, td.start, td.end)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, td.expected, res)
		})
	}
}

func TestInRange(t *testing.T) {
	res, err := InRange(USHolidays(),
		time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	dates := make([]time.Time, 0, len(res))
	for _, e := range res {
		require.NoError(t, e.Valid())
		dates = append(dates, e.Date)
	}
	assert.Equal(t, []time.Time{
		time.Date(2024, 11, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}, dates)
	assert.Equal(t, us.NewYear.Name, res[2].Name)
	assert.Equal(t, us.ThanksgivingDay.Name+" (2024-11-28)", res[0].String())
}

func TestEventValid(t *testing.T) {
	assert.ErrorIs(t, Event{Name: "x"}.Valid(), ErrUnsetTime)
	assert.ErrorIs(t, Event{Date: time.Now()}.Valid(), ErrNoEventName)
}

func TestCalendar(t *testing.T) {
	hols, err := Calendar(CalendarUS)
	require.NoError(t, err)
	assert.Equal(t, USHolidays(), hols)

	hols, err = Calendar(CalendarBR)
	require.NoError(t, err)
	require.NotEmpty(t, hols)

	res, err := InRange(hols,
		time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	dates := make([]time.Time, 0, len(res))
	for _, e := range res {
		dates = append(dates, e.Date)
	}
	assert.Contains(t, dates, time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC))
	assert.Contains(t, dates, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.NotContains(t, dates, time.Date(2024, 11, 28, 0, 0, 0, 0, time.UTC))

	_, err = Calendar("mars")
	assert.ErrorIs(t, err, ErrUnknownCalendar)
}
