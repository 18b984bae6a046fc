package storage

import (
	"sort"
	"time"
)

// DateLayout is the fixed-width calendar day format used for entry dates.
// Lexicographic comparison of these strings matches chronological order.
const DateLayout = "2006-01-02"

// TrackingSpace is a named group of applications tracked together.
type TrackingSpace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Apps      []string  `json:"apps"`
	IsActive  bool      `json:"isActive"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// TimeEntry accumulates the seconds spent in one app of one space on one day.
type TimeEntry struct {
	SpaceID  string `json:"spaceId"`
	AppName  string `json:"appName"`
	Date     string `json:"date"`
	Duration int64  `json:"duration"`
}

// AppSettings holds advisory preferences. Nothing in the tracker acts on them.
type AppSettings struct {
	EnableDND bool     `json:"enableDND"`
	MutedApps []string `json:"mutedApps"`
}

// EntryFilter restricts an entry query. Empty fields are unrestricted.
type EntryFilter struct {
	SpaceID  string `json:"spaceId,omitempty"`
	DateFrom string `json:"dateFrom,omitempty"`
	DateTo   string `json:"dateTo,omitempty"`
}

// Match reports whether the entry satisfies the filter.
func (f EntryFilter) Match(e TimeEntry) bool {
	if f.SpaceID != "" && e.SpaceID != f.SpaceID {
		return false
	}
	if f.DateFrom != "" && e.Date < f.DateFrom {
		return false
	}
	if f.DateTo != "" && e.Date > f.DateTo {
		return false
	}
	return true
}

// DefaultSettings returns the settings used before anything has been saved.
func DefaultSettings() AppSettings {
	return AppSettings{EnableDND: false, MutedApps: []string{}}
}

// Clone returns a deep copy of the space.
func (s TrackingSpace) Clone() TrackingSpace {
	out := s
	out.Apps = append([]string(nil), s.Apps...)
	if out.Apps == nil {
		out.Apps = []string{}
	}
	return out
}

// SortEntries orders entries by date, then space, then app, so every backend
// returns the same sequence for the same data.
func SortEntries(entries []TimeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.SpaceID != b.SpaceID {
			return a.SpaceID < b.SpaceID
		}
		return a.AppName < b.AppName
	})
}

// SortSpaces orders spaces by creation time, falling back to ID.
func SortSpaces(spaces []TrackingSpace) {
	sort.SliceStable(spaces, func(i, j int) bool {
		a, b := spaces[i], spaces[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
