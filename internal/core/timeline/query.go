package timeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
	"github.com/penwyp/go-booking-timeline/internal/util"
)

// QueryEngine answers overlap questions against the cached records
type QueryEngine struct {
	records  RecordSet
	timezone *time.Location

	// malformed records already reported, keyed by id+boundaries
	warned sync.Map
}

// NewQueryEngine creates an engine reading naive timestamps in timezone
func NewQueryEngine(records RecordSet, timezone string) *QueryEngine {
	loc := time.Local
	if timezone != "" && timezone != "Local" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}
	return NewQueryEngineInLocation(records, loc)
}

func NewQueryEngineInLocation(records RecordSet, loc *time.Location) *QueryEngine {
	return &QueryEngine{records: records, timezone: loc}
}

func (qe *QueryEngine) Location() *time.Location {
	return qe.timezone
}

// QueryEntries returns the records overlapping r with their parsed
// intervals, in store order. Records with unparseable boundaries are skipped.
func (qe *QueryEngine) QueryEntries(r model.DateRange) []Entry {
	var entries []Entry
	for rec := range qe.records.All() {
		iv, ok := qe.interval(rec)
		if !ok {
			continue
		}
		if iv.Overlaps(r) {
			entries = append(entries, Entry{Record: rec, Interval: iv})
		}
	}
	return entries
}

// QueryOverlapping returns the records whose [start, stop) intersects r
func (qe *QueryEngine) QueryOverlapping(r model.DateRange) []model.Record {
	entries := qe.QueryEntries(r)
	records := make([]model.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Record)
	}
	return records
}

// MonthHasAnyOverlap reports whether any cached record touches the month
func (qe *QueryEngine) MonthHasAnyOverlap(key model.MonthKey) bool {
	month := key.Range(qe.timezone)
	for rec := range qe.records.All() {
		if iv, ok := qe.interval(rec); ok && iv.Overlaps(month) {
			return true
		}
	}
	return false
}

func (qe *QueryEngine) interval(rec model.Record) (model.DateRange, bool) {
	iv, err := rec.Interval(qe.timezone)
	if err != nil {
		key := fmt.Sprintf("%d|%s|%s", rec.ID, rec.Start, rec.Stop)
		if _, seen := qe.warned.LoadOrStore(key, struct{}{}); !seen {
			util.LogWarn("QueryEngine: excluding malformed record",
				util.F("id", rec.ID),
				util.F("error", err.Error()))
		}
		return model.DateRange{}, false
	}
	return iv, true
}
