package core

import (
	"sort"
	"time"
)

// Timeframe is an aggregation window for leaderboards and stats.
type Timeframe string

const (
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
	TimeframeAllTime Timeframe = "all_time"
)

// Timeframes lists every window in a stable order.
func Timeframes() []Timeframe {
	return []Timeframe{TimeframeDaily, TimeframeWeekly, TimeframeMonthly, TimeframeAllTime}
}

// ParseTimeframe validates a timeframe string.
func ParseTimeframe(s string) (Timeframe, bool) {
	switch Timeframe(s) {
	case TimeframeDaily, TimeframeWeekly, TimeframeMonthly, TimeframeAllTime:
		return Timeframe(s), true
	}
	return "", false
}

// WindowStart returns the inclusive cutoff for events counted in this
// timeframe: start of today (UTC) for daily, now minus 7 days for
// weekly, start of the current month for monthly, and the zero time
// for all_time.
func (t Timeframe) WindowStart(now time.Time) time.Time {
	now = now.UTC()
	switch t {
	case TimeframeDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case TimeframeWeekly:
		return now.AddDate(0, 0, -7)
	case TimeframeMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

// ApplyFilter filters events, sorts them newest first, and applies the
// filter's offset and limit. Shared by the in-process store adapters.
func ApplyFilter(events []SuccessEvent, f EventFilter) []SuccessEvent {
	out := make([]SuccessEvent, 0, len(events))
	for _, ev := range events {
		if f.Matches(ev) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
