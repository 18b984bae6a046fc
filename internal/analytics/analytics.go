// Package analytics summarises time entries. Every function is pure: callers
// pass the entries and the reference day.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/goodtune/flowtrack/internal/storage"
)

// Range selects a reporting window ending today
type Range string

const (
	RangeDay   Range = "day"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

// ParseRange validates a range name
func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case RangeDay, RangeWeek, RangeMonth:
		return r, nil
	case "":
		return RangeDay, nil
	default:
		return "", fmt.Errorf("unknown range %q (want day, week or month)", s)
	}
}

// Days returns the window length in days
func (r Range) Days() int {
	switch r {
	case RangeWeek:
		return 7
	case RangeMonth:
		return 30
	default:
		return 1
	}
}

// Window returns the inclusive first and last dates of the range ending on today
func Window(r Range, today time.Time) (from, to string) {
	start := today.AddDate(0, 0, -(r.Days() - 1))
	return start.Format(storage.DateLayout), today.Format(storage.DateLayout)
}

// Filter returns the entry filter for the range, optionally limited to one space
func Filter(r Range, today time.Time, spaceID string) storage.EntryFilter {
	from, to := Window(r, today)
	return storage.EntryFilter{SpaceID: spaceID, DateFrom: from, DateTo: to}
}

// AppTotal is the time spent in one app
type AppTotal struct {
	AppName  string `json:"appName"`
	Duration int64  `json:"duration"`
}

// DayTotal is the time spent on one day
type DayTotal struct {
	Date     string `json:"date"`
	Duration int64  `json:"duration"`
}

// GroupByApp sums durations per app name, longest first. Ties keep the order
// in which apps were first seen.
func GroupByApp(entries []storage.TimeEntry) []AppTotal {
	index := make(map[string]int)
	totals := make([]AppTotal, 0)
	for _, e := range entries {
		i, ok := index[e.AppName]
		if !ok {
			i = len(totals)
			index[e.AppName] = i
			totals = append(totals, AppTotal{AppName: e.AppName})
		}
		totals[i].Duration += e.Duration
	}
	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Duration > totals[j].Duration
	})
	return totals
}

// GroupByDate returns one bucket per day of the window, oldest first. Days
// without entries are zero and entries outside the window are ignored.
func GroupByDate(entries []storage.TimeEntry, r Range, today time.Time) []DayTotal {
	days := r.Days()
	start := today.AddDate(0, 0, -(days - 1))

	buckets := make([]DayTotal, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(storage.DateLayout)
		buckets[i] = DayTotal{Date: date}
		index[date] = i
	}

	for _, e := range entries {
		if i, ok := index[e.Date]; ok {
			buckets[i].Duration += e.Duration
		}
	}
	return buckets
}

// RangeTotal sums all durations
func RangeTotal(entries []storage.TimeEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Duration
	}
	return total
}

// DailyAverage divides the total by the window length, rounding half up
func DailyAverage(entries []storage.TimeEntry, r Range) int64 {
	days := int64(r.Days())
	if days < 1 {
		days = 1
	}
	return (RangeTotal(entries) + days/2) / days
}

// AppShare returns each total as a percentage of the first (largest) one
func AppShare(totals []AppTotal) []float64 {
	shares := make([]float64, len(totals))
	if len(totals) == 0 || totals[0].Duration <= 0 {
		return shares
	}
	leader := float64(totals[0].Duration)
	for i, t := range totals {
		shares[i] = float64(t.Duration) / leader * 100
	}
	return shares
}

// Summary is the aggregated view of one range
type Summary struct {
	Range        Range      `json:"range"`
	From         string     `json:"from"`
	To           string     `json:"to"`
	SpaceID      string     `json:"spaceId,omitempty"`
	Total        int64      `json:"total"`
	DailyAverage int64      `json:"dailyAverage"`
	ByApp        []AppTotal `json:"byApp"`
	ByDate       []DayTotal `json:"byDate"`
}

// Summarize builds the summary of entries for the range ending today. Entries
// outside the window are dropped before totalling.
func Summarize(entries []storage.TimeEntry, r Range, today time.Time, spaceID string) Summary {
	filter := Filter(r, today, spaceID)
	inWindow := make([]storage.TimeEntry, 0, len(entries))
	for _, e := range entries {
		if filter.Match(e) {
			inWindow = append(inWindow, e)
		}
	}

	return Summary{
		Range:        r,
		From:         filter.DateFrom,
		To:           filter.DateTo,
		SpaceID:      spaceID,
		Total:        RangeTotal(inWindow),
		DailyAverage: DailyAverage(inWindow, r),
		ByApp:        GroupByApp(inWindow),
		ByDate:       GroupByDate(inWindow, r, today),
	}
}
