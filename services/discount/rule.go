// Package discount computes the banner discount from Pakistan local time and
// keeps the stored banner in sync with it.
package discount

import "time"

const (
	DayPercentage   = 50
	NightPercentage = 70

	// Day covers local hours [DayStartHour, NightStartHour).
	DayStartHour   = 6
	NightStartHour = 18
)

// Location is Pakistan Standard Time, a fixed UTC+5 offset without DST.
var Location = time.FixedZone("PKT", 5*60*60)

type Period string

const (
	Day   Period = "day"
	Night Period = "night"
)

// PeriodForHour maps a local hour of day (0-23) to its period.
func PeriodForHour(hour int) Period {
	if hour >= DayStartHour && hour < NightStartHour {
		return Day
	}
	return Night
}

// PercentageForHour maps a local hour of day (0-23) to a discount.
func PercentageForHour(hour int) int {
	if PeriodForHour(hour) == Day {
		return DayPercentage
	}
	return NightPercentage
}

func PeriodAt(t time.Time) Period {
	return PeriodForHour(t.In(Location).Hour())
}

// PercentageAt returns the discount in effect at instant t.
func PercentageAt(t time.Time) int {
	return PercentageForHour(t.In(Location).Hour())
}

// LocalDate formats t as a YYYY-MM-DD calendar date in Location.
func LocalDate(t time.Time) string {
	return t.In(Location).Format("2006-01-02")
}
