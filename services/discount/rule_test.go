package discount

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentageForHour_AllHours(t *testing.T) {
	for h := 0; h < 24; h++ {
		want := NightPercentage
		if h >= 6 && h < 18 {
			want = DayPercentage
		}
		assert.Equal(t, want, PercentageForHour(h), "hour %d", h)
	}
}

func TestPercentageForHour_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		hour int
		want int
	}{
		{"day starts at 6", 6, 50},
		{"last day hour", 17, 50},
		{"night starts at 18", 18, 70},
		{"midnight", 0, 70},
		{"last hour", 23, 70},
		{"before dawn", 5, 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PercentageForHour(tt.hour))
		})
	}
}

func TestPercentageAt_ConvertsToPakistanTime(t *testing.T) {
	tests := []struct {
		name string
		utc  time.Time
		want int
	}{
		// 01:00 UTC is 06:00 PKT
		{"utc 01:00 is local dawn", time.Date(2026, 5, 1, 1, 0, 0, 0, time.UTC), 50},
		// 00:59 UTC is 05:59 PKT
		{"utc 00:59 is still night", time.Date(2026, 5, 1, 0, 59, 0, 0, time.UTC), 70},
		// 13:00 UTC is 18:00 PKT
		{"utc 13:00 is local dusk", time.Date(2026, 5, 1, 13, 0, 0, 0, time.UTC), 70},
		// 12:59 UTC is 17:59 PKT
		{"utc 12:59 is still day", time.Date(2026, 5, 1, 12, 59, 0, 0, time.UTC), 50},
		// 19:00 UTC is 00:00 PKT next day
		{"utc 19:00 is local midnight", time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC), 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PercentageAt(tt.utc))
		})
	}
}

func TestPercentageAt_IndependentOfInputZone(t *testing.T) {
	instant := time.Date(2026, 5, 1, 10, 0, 0, 0, Location)
	newYork := time.FixedZone("EDT", -4*60*60)

	assert.Equal(t, PercentageAt(instant), PercentageAt(instant.In(newYork)))
	assert.Equal(t, DayPercentage, PercentageAt(instant.In(time.UTC)))
}

func TestPeriodAt(t *testing.T) {
	assert.Equal(t, Day, PeriodAt(time.Date(2026, 5, 1, 12, 0, 0, 0, Location)))
	assert.Equal(t, Night, PeriodAt(time.Date(2026, 5, 1, 20, 0, 0, 0, Location)))
}

func TestLocalDate(t *testing.T) {
	// 20:30 UTC on Jan 31 is already Feb 1 in Pakistan
	assert.Equal(t, "2026-02-01", LocalDate(time.Date(2026, 1, 31, 20, 30, 0, 0, time.UTC)))
}
