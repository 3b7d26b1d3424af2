package timeline

import (
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
)

// Scale is the visible span unit of the timeline
type Scale string

const (
	ScaleDay   Scale = "day"
	ScaleWeek  Scale = "week"
	ScaleMonth Scale = "month"
	ScaleYear  Scale = "year"
)

// ParseScale accepts a scale name, defaulting to month
func ParseScale(s string) Scale {
	switch Scale(s) {
	case ScaleDay, ScaleWeek, ScaleMonth, ScaleYear:
		return Scale(s)
	default:
		return ScaleMonth
	}
}

// Range returns the visible range the scale shows around focus
func (s Scale) Range(focus time.Time) model.DateRange {
	day := model.StartOfDay(focus)
	switch s {
	case ScaleDay:
		return model.DateRange{Start: day, End: day.AddDate(0, 0, 1)}
	case ScaleWeek:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return model.DateRange{Start: start, End: start.AddDate(0, 0, 7)}
	case ScaleYear:
		start := time.Date(focus.Year(), 1, 1, 0, 0, 0, 0, focus.Location())
		return model.DateRange{Start: start, End: start.AddDate(1, 0, 0)}
	default:
		start := model.StartOfMonth(focus)
		return model.DateRange{Start: start, End: start.AddDate(0, 1, 0)}
	}
}

// Step moves focus by n scale units
func (s Scale) Step(focus time.Time, n int) time.Time {
	switch s {
	case ScaleDay:
		return focus.AddDate(0, 0, n)
	case ScaleWeek:
		return focus.AddDate(0, 0, 7*n)
	case ScaleYear:
		return focus.AddDate(n, 0, 0)
	default:
		return model.StartOfMonth(focus).AddDate(0, n, 0)
	}
}

// View is one rendered state of the timeline
type View struct {
	Generation     uint64
	Focus          time.Time
	Scale          Scale
	Visible        model.DateRange
	Entries        []Entry
	Groups         []model.Group
	CoveredMonths  []model.MonthKey
	Loading        bool
	LoadingMessage string
	Err            error
	RenderedAt     time.Time
}

// Entry looks up a visible record by ID
func (v View) Entry(id int64) (Entry, bool) {
	for _, e := range v.Entries {
		if e.Record.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// GroupEntries returns the entries of a row in row order
func (v View) GroupEntries(g model.Group) []Entry {
	byID := make(map[int64]Entry, len(v.Entries))
	for _, e := range v.Entries {
		byID[e.Record.ID] = e
	}
	out := make([]Entry, 0, len(g.RecordIDs))
	for _, id := range g.RecordIDs {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// RecordIDs lists visible record IDs in query order
func (v View) RecordIDs() []int64 {
	ids := make([]int64, 0, len(v.Entries))
	for _, e := range v.Entries {
		ids = append(ids, e.Record.ID)
	}
	return ids
}
