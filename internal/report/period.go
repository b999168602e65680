package report

import (
	"fmt"
	"time"
)

// Kind is the reporting period
type Kind string

const (
	Daily   Kind = "daily"
	Weekly  Kind = "weekly"
	Monthly Kind = "monthly"
)

// ParseKind accepts daily, weekly or monthly
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Daily, Weekly, Monthly:
		return k, nil
	default:
		return "", fmt.Errorf("unknown report period %q", s)
	}
}

// Period is a half-open [From, To) window with a dedupe label
type Period struct {
	Kind  Kind      `json:"kind"`
	Label string    `json:"label"`
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
}

// PeriodFor returns the window a report run at now should cover, in loc.
// daily: today. weekly: the 7 days ending at today's midnight. monthly: the previous calendar month.
func PeriodFor(kind Kind, now time.Time, loc *time.Location) Period {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch kind {
	case Weekly:
		from := midnight.AddDate(0, 0, -7)
		year, week := midnight.AddDate(0, 0, -1).ISOWeek()
		return Period{Kind: kind, Label: fmt.Sprintf("%d-W%02d", year, week), From: from, To: midnight}
	case Monthly:
		to := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		from := to.AddDate(0, -1, 0)
		return Period{Kind: kind, Label: from.Format("2006-01"), From: from, To: to}
	default:
		return Period{Kind: Daily, Label: midnight.Format("2006-01-02"), From: midnight, To: midnight.AddDate(0, 0, 1)}
	}
}
