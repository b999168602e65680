package orchestrator

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Calendar answers whether the exchange is open at a given instant
type Calendar struct {
	loc      *time.Location
	open     time.Duration // 자정 기준 오프셋
	close    time.Duration
	holidays map[string]struct{}
	always   bool
}

// NewCalendar builds a weekday calendar. open and close are HH:MM in tz;
// holidays are YYYY-MM-DD market dates.
func NewCalendar(tz, open, close string, holidays []string) (*Calendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	o, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("market open: %w", err)
	}
	c, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("market close: %w", err)
	}
	if c <= o {
		return nil, fmt.Errorf("market close %s must be after open %s", close, open)
	}

	cal := &Calendar{loc: loc, open: o, close: c, holidays: make(map[string]struct{}, len(holidays))}
	for _, h := range holidays {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, h); err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		cal.holidays[h] = struct{}{}
	}
	return cal, nil
}

// AlwaysOpen returns a calendar that never closes; used by the one-shot CLI and tests
func AlwaysOpen() *Calendar {
	return &Calendar{loc: time.UTC, close: 24 * time.Hour, always: true}
}

// Location returns the exchange timezone
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// MarketDate returns the exchange-local date of t
func (c *Calendar) MarketDate(t time.Time) string {
	return t.In(c.loc).Format(dateLayout)
}

// IsTradingDay reports whether t falls on a weekday that is not a holiday
func (c *Calendar) IsTradingDay(t time.Time) bool {
	if c.always {
		return true
	}
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[local.Format(dateLayout)]
	return !holiday
}

// IsOpen reports whether the market is open at t. Open is inclusive, close exclusive.
func (c *Calendar) IsOpen(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	local := t.In(c.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	offset := local.Sub(midnight)
	return offset >= c.open && offset < c.close
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
