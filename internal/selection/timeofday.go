package selection

import (
	"fmt"
	"time"
)

// Window is an intraday interval with a score factor, in market local time.
// Start is inclusive, End exclusive. 형식: "HH:MM"
type Window struct {
	Name   string  `yaml:"name" json:"name"`
	Start  string  `yaml:"start" json:"start"`
	End    string  `yaml:"end" json:"end"`
	Factor float64 `yaml:"factor" json:"factor"`
}

// DefaultWindows returns the open/close/midday schedule
func DefaultWindows() []Window {
	return []Window{
		{Name: "open", Start: "09:30", End: "10:30", Factor: 1.3},
		{Name: "close", Start: "15:00", End: "16:00", Factor: 1.1},
		{Name: "midday", Start: "12:00", End: "14:00", Factor: 0.8},
	}
}

type parsedWindow struct {
	name       string
	start, end int // minutes after midnight
	factor     float64
}

// Schedule resolves the time-of-day multiplier
type Schedule struct {
	loc     *time.Location
	windows []parsedWindow
}

// NewSchedule parses windows for the given IANA time zone
func NewSchedule(timezone string, windows []Window) (*Schedule, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	s := &Schedule{loc: loc}
	for _, w := range windows {
		start, err := parseClock(w.Start)
		if err != nil {
			return nil, fmt.Errorf("window %s: %w", w.Name, err)
		}
		end, err := parseClock(w.End)
		if err != nil {
			return nil, fmt.Errorf("window %s: %w", w.Name, err)
		}
		if end <= start {
			return nil, fmt.Errorf("window %s: end %s not after start %s", w.Name, w.End, w.Start)
		}
		if w.Factor <= 0 {
			return nil, fmt.Errorf("window %s: factor must be positive", w.Name)
		}
		s.windows = append(s.windows, parsedWindow{name: w.Name, start: start, end: end, factor: w.Factor})
	}
	return s, nil
}

// Multiplier returns the factor for now and the matching window name.
// Outside every window the factor is 1.0.
func (s *Schedule) Multiplier(now time.Time) (float64, string) {
	local := now.In(s.loc)
	minute := local.Hour()*60 + local.Minute()
	for _, w := range s.windows {
		if minute >= w.start && minute < w.end {
			return w.factor, w.name
		}
	}
	return 1.0, ""
}

// Location returns the market time zone
func (s *Schedule) Location() *time.Location {
	return s.loc
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", v, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
