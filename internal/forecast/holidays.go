package forecast

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
)

// ErrUnknownCountry is returned for a country code without a holiday calendar.
var ErrUnknownCountry = errors.New("unknown holiday country")

type monthDay struct {
	month time.Month
	day   int
}

// Lunisolar festival dates as gazetted by the Government of India.
var (
	holiDates = map[int]monthDay{
		2018: {time.March, 2}, 2019: {time.March, 21}, 2020: {time.March, 10},
		2021: {time.March, 29}, 2022: {time.March, 18}, 2023: {time.March, 8},
		2024: {time.March, 25}, 2025: {time.March, 14}, 2026: {time.March, 4},
		2027: {time.March, 22}, 2028: {time.March, 11},
	}
	dussehraDates = map[int]monthDay{
		2018: {time.October, 19}, 2019: {time.October, 8}, 2020: {time.October, 25},
		2021: {time.October, 15}, 2022: {time.October, 5}, 2023: {time.October, 24},
		2024: {time.October, 12}, 2025: {time.October, 2}, 2026: {time.October, 20},
		2027: {time.October, 9}, 2028: {time.September, 27},
	}
	diwaliDates = map[int]monthDay{
		2018: {time.November, 7}, 2019: {time.October, 27}, 2020: {time.November, 14},
		2021: {time.November, 4}, 2022: {time.October, 24}, 2023: {time.November, 12},
		2024: {time.October, 31}, 2025: {time.October, 20}, 2026: {time.November, 8},
		2027: {time.October, 29}, 2028: {time.October, 17},
	}
	guruNanakDates = map[int]monthDay{
		2018: {time.November, 23}, 2019: {time.November, 12}, 2020: {time.November, 30},
		2021: {time.November, 19}, 2022: {time.November, 8}, 2023: {time.November, 27},
		2024: {time.November, 15}, 2025: {time.November, 5}, 2026: {time.November, 24},
		2027: {time.November, 14}, 2028: {time.November, 2},
	}

	festivalTables = []map[int]monthDay{holiDates, dussehraDates, diwaliDates, guruNanakDates}
)

func tabulated(dates map[int]monthDay) cal.HolidayFn {
	return func(_ *cal.Holiday, year int) time.Time {
		md, ok := dates[year]
		if !ok {
			return time.Time{}
		}
		return time.Date(year, md.month, md.day, 0, 0, 0, 0, time.UTC)
	}
}

func indiaHolidays() []*cal.Holiday {
	return []*cal.Holiday{
		{Name: "Republic Day", Type: cal.ObservancePublic, Month: time.January, Day: 26, StartYear: 1950, Func: cal.CalcDayOfMonth},
		{Name: "Holi", Type: cal.ObservancePublic, Func: tabulated(holiDates)},
		{Name: "Good Friday", Type: cal.ObservancePublic, Offset: -2, Func: cal.CalcEasterOffset},
		{Name: "Independence Day", Type: cal.ObservancePublic, Month: time.August, Day: 15, StartYear: 1947, Func: cal.CalcDayOfMonth},
		{Name: "Gandhi Jayanti", Type: cal.ObservancePublic, Month: time.October, Day: 2, Func: cal.CalcDayOfMonth},
		{Name: "Dussehra", Type: cal.ObservancePublic, Func: tabulated(dussehraDates)},
		{Name: "Diwali", Type: cal.ObservancePublic, Func: tabulated(diwaliDates)},
		{Name: "Guru Nanak Jayanti", Type: cal.ObservancePublic, Func: tabulated(guruNanakDates)},
		{Name: "Christmas", Type: cal.ObservancePublic, Month: time.December, Day: 25, Func: cal.CalcDayOfMonth},
	}
}

// CountryHolidays returns the holiday calendar for an ISO country code.
func CountryHolidays(country string) ([]*cal.Holiday, error) {
	switch strings.ToUpper(strings.TrimSpace(country)) {
	case "IN", "IND", "INDIA":
		return indiaHolidays(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCountry, country)
	}
}

// UncoveredYears returns the years of [fromYear, toYear] missing from the festival
// tables. Those years only carry the holidays with a fixed rule.
func UncoveredYears(fromYear, toYear int) []int {
	var out []int
	for year := fromYear; year <= toYear; year++ {
		for _, table := range festivalTables {
			if _, ok := table[year]; !ok {
				out = append(out, year)
				break
			}
		}
	}
	return out
}

// HolidayEvents expands the country calendar into one-day events for fromYear..toYear.
// Events start at midnight UTC of the holiday's calendar date. An empty country yields none.
func HolidayEvents(country string, fromYear, toYear int) ([]Event, error) {
	if strings.TrimSpace(country) == "" {
		return nil, nil
	}
	hs, err := CountryHolidays(country)
	if err != nil {
		return nil, err
	}

	var events []Event
	for year := fromYear; year <= toYear; year++ {
		for _, h := range hs {
			actual, _ := h.Calc(year)
			if actual.IsZero() {
				continue
			}
			start := dateOf(actual)
			events = append(events, Event{Name: h.Name, Start: start, End: start.Add(Day)})
		}
	}
	return events, nil
}

// dateOf returns midnight UTC of t's calendar date in its own location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
