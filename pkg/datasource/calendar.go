package datasource

import (
	"sort"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar decides which stored days are offered for replay.
type TradingCalendar struct {
	cal *calendar.Calendar
}

// NewTradingCalendar returns a calendar for the given MIC. An empty or unknown
// MIC falls back to plain weekdays.
func NewTradingCalendar(mic string) *TradingCalendar {
	if mic == "" {
		return &TradingCalendar{}
	}
	return &TradingCalendar{cal: calendar.GetCalendar(strings.ToLower(mic))}
}

func (c *TradingCalendar) IsTradingDay(day time.Time) bool {
	if c == nil || c.cal == nil {
		wd := day.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	loc := c.cal.Loc
	if loc == nil {
		loc = time.UTC
	}
	// noon keeps the calendar date stable across the exchange offset
	return c.cal.IsBusinessDay(time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, loc))
}

// GroupWeeks groups days (DayLayout strings) into Monday-based weeks, dropping
// malformed and non-trading days. Output is sorted ascending.
func GroupWeeks(days []string, cal *TradingCalendar) []Week {
	var parsed []time.Time
	seen := make(map[string]struct{}, len(days))
	for _, d := range days {
		t, err := time.Parse(DayLayout, d)
		if err != nil {
			continue
		}
		key := t.Format(DayLayout)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if !cal.IsTradingDay(t) {
			continue
		}
		parsed = append(parsed, t)
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].Before(parsed[j]) })

	var weeks []Week
	for _, t := range parsed {
		start := weekStart(t).Format(DayLayout)
		if n := len(weeks); n > 0 && weeks[n-1].WeekStart == start {
			weeks[n-1].Days = append(weeks[n-1].Days, t.Format(DayLayout))
			continue
		}
		weeks = append(weeks, Week{WeekStart: start, Days: []string{t.Format(DayLayout)}})
	}
	return weeks
}

func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}
