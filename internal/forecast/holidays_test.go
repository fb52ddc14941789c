package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCountryHolidays_India(t *testing.T) {
	for _, code := range []string{"IN", "ind", " India "} {
		hs, err := CountryHolidays(code)
		require.NoError(t, err, code)
		assert.Len(t, hs, 9)
	}

	hs, _ := CountryHolidays("IN")
	want := map[string]time.Time{
		"Republic Day":       date(2025, time.January, 26),
		"Holi":               date(2025, time.March, 14),
		"Good Friday":        date(2025, time.April, 18),
		"Independence Day":   date(2025, time.August, 15),
		"Gandhi Jayanti":     date(2025, time.October, 2),
		"Dussehra":           date(2025, time.October, 2),
		"Diwali":             date(2025, time.October, 20),
		"Guru Nanak Jayanti": date(2025, time.November, 5),
		"Christmas":          date(2025, time.December, 25),
	}
	for _, h := range hs {
		actual, _ := h.Calc(2025)
		assert.Equal(t, want[h.Name], dateOf(actual), h.Name)
	}
}

func TestHolidayEvents(t *testing.T) {
	events, err := HolidayEvents("IN", 2024, 2025)
	require.NoError(t, err)
	assert.Len(t, events, 18)

	for _, e := range events {
		assert.Equal(t, time.UTC, e.Start.Location(), e.Name)
		assert.Zero(t, e.Start.Hour(), e.Name)
		assert.Equal(t, Day, e.End.Sub(e.Start), e.Name)
	}
	assert.Contains(t, events, Event{Name: "Republic Day", Start: date(2024, time.January, 26), End: date(2024, time.January, 27)})

	none, err := HolidayEvents("", 2024, 2025)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = HolidayEvents("ATLANTIS", 2024, 2025)
	assert.ErrorIs(t, err, ErrUnknownCountry)
}

func TestHolidayEvents_DatesIgnoreCalendarLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	assert.Equal(t, date(2025, time.January, 26), dateOf(time.Date(2025, time.January, 26, 0, 0, 0, 0, ny)))
}

func TestUncoveredYears(t *testing.T) {
	assert.Empty(t, UncoveredYears(2021, 2027))
	assert.Equal(t, []int{2029, 2030}, UncoveredYears(2027, 2030))

	// Years past the festival table keep the fixed-rule holidays only.
	far, err := HolidayEvents("IN", 2040, 2040)
	require.NoError(t, err)
	assert.Len(t, far, 5)
}
