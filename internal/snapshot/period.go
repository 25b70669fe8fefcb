// Package snapshot archives portfolio valuations as periodic JSON
// documents, on disk and optionally in PostgreSQL.
package snapshot

import (
	"fmt"
	"time"
)

// Period is an archive granularity.
type Period string

const (
	Daily     Period = "daily"
	Weekly    Period = "weekly"
	Monthly   Period = "monthly"
	Quarterly Period = "quarterly"
	Yearly    Period = "yearly"
)

// ParsePeriod validates a period name from user input.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case Daily, Weekly, Monthly, Quarterly, Yearly:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// PeriodsFor returns the periods a snapshot taken at t belongs to. Every
// snapshot is daily; the longer periods only trigger on their boundary
// day, so a run on the first Monday of a quarter lands in four archives
// at once.
func PeriodsFor(t time.Time) []Period {
	periods := []Period{Daily}
	if t.Weekday() == time.Monday {
		periods = append(periods, Weekly)
	}
	if t.Day() == 1 {
		periods = append(periods, Monthly)
		switch t.Month() {
		case time.January, time.April, time.July, time.October:
			periods = append(periods, Quarterly)
		}
		if t.Month() == time.January {
			periods = append(periods, Yearly)
		}
	}
	return periods
}

// Filename returns the archive file name for a snapshot of period p taken
// at t. Weekly files use the ISO week year, which can differ from the
// calendar year around January 1st.
func Filename(p Period, t time.Time) string {
	switch p {
	case Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d.json", year, week)
	case Monthly:
		return t.Format("2006-01") + ".json"
	case Quarterly:
		quarter := (int(t.Month())-1)/3 + 1
		return fmt.Sprintf("%d-Q%d.json", t.Year(), quarter)
	case Yearly:
		return fmt.Sprintf("%d.json", t.Year())
	default:
		return t.Format("2006-01-02") + ".json"
	}
}
