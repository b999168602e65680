package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendar_IsOpen(t *testing.T) {
	cal, err := NewCalendar("America/New_York", "09:30", "16:00", []string{"2026-11-26", ""})
	require.NoError(t, err)
	ny := cal.Location()

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"open bell", time.Date(2026, 10, 14, 9, 30, 0, 0, ny), true},
		{"one minute before open", time.Date(2026, 10, 14, 9, 29, 0, 0, ny), false},
		{"last minute", time.Date(2026, 10, 14, 15, 59, 59, 0, ny), true},
		{"close bell", time.Date(2026, 10, 14, 16, 0, 0, 0, ny), false},
		{"saturday", time.Date(2026, 10, 17, 12, 0, 0, 0, ny), false},
		{"sunday", time.Date(2026, 10, 18, 12, 0, 0, 0, ny), false},
		{"thanksgiving", time.Date(2026, 11, 26, 12, 0, 0, 0, ny), false},
		{"utc instant inside session", time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.IsOpen(tt.at))
		})
	}
}

func TestCalendar_MarketDate(t *testing.T) {
	cal, err := NewCalendar("America/New_York", "09:30", "16:00", nil)
	require.NoError(t, err)

	// 02:00 UTC는 뉴욕 기준 전날
	assert.Equal(t, "2026-10-14", cal.MarketDate(time.Date(2026, 10, 15, 2, 0, 0, 0, time.UTC)))
}

func TestNewCalendar_Invalid(t *testing.T) {
	tests := []struct {
		name            string
		tz, open, close string
		holidays        []string
	}{
		{"unknown timezone", "Mars/Olympus", "09:30", "16:00", nil},
		{"bad open", "America/New_York", "9h30", "16:00", nil},
		{"close before open", "America/New_York", "16:00", "09:30", nil},
		{"bad holiday", "America/New_York", "09:30", "16:00", []string{"12/25/2026"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCalendar(tt.tz, tt.open, tt.close, tt.holidays)
			assert.Error(t, err)
		})
	}
}

func TestAlwaysOpen(t *testing.T) {
	cal := AlwaysOpen()
	assert.True(t, cal.IsOpen(time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)))
}
