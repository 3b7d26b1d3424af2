package timeline

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/cache"
	"github.com/penwyp/go-booking-timeline/internal/core/model"
	"github.com/penwyp/go-booking-timeline/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func march() model.DateRange {
	return model.NewDateRange(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
}

func ids(records []model.Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestQueryOverlapping_MarchScenario(t *testing.T) {
	store := cache.NewIntervalStore()
	store.MergeRecords([]model.Record{
		{ID: 1, Start: "2024-02-25", Stop: "2024-03-02"},
		{ID: 2, Start: "2024-03-10", Stop: "2024-03-12"},
		{ID: 3, Start: "2024-03-31", Stop: "2024-04-03"},
		{ID: 4, Start: "2024-04-01", Stop: "2024-04-05"},
		{ID: 5, Start: "2024-02-10", Stop: "2024-03-01"},
	})
	qe := NewQueryEngine(store, "UTC")

	assert.Equal(t, []int64{1, 2, 3}, ids(qe.QueryOverlapping(march())))
}

func TestQueryOverlapping_ExcludesMalformedOnce(t *testing.T) {
	var buf bytes.Buffer
	util.SetLogger(util.NewLoggerWithOutputs(util.LevelDebug, util.NewConsoleOutput(&buf, util.FormatText)))
	defer util.SetLogger(nil)

	store := cache.NewIntervalStore()
	store.MergeRecords([]model.Record{
		{ID: 1, Start: "2024-03-10", Stop: "not a date"},
		{ID: 2, Start: "2024-03-10", Stop: "2024-03-12"},
	})
	qe := NewQueryEngine(store, "UTC")

	assert.Equal(t, []int64{2}, ids(qe.QueryOverlapping(march())))
	assert.Equal(t, []int64{2}, ids(qe.QueryOverlapping(march())))
	assert.Equal(t, 1, strings.Count(buf.String(), "excluding malformed record"))
}

func TestMonthHasAnyOverlap(t *testing.T) {
	store := cache.NewIntervalStore()
	store.MergeRecords([]model.Record{
		{ID: 1, Start: "2024-02-28", Stop: "2024-03-01"},
		{ID: 2, Start: "2024-05-31", Stop: "2024-06-02"},
	})
	qe := NewQueryEngine(store, "UTC")

	assert.True(t, qe.MonthHasAnyOverlap("2024-02"))
	assert.False(t, qe.MonthHasAnyOverlap("2024-03"), "stop at month start is exclusive")
	assert.True(t, qe.MonthHasAnyOverlap("2024-05"))
	assert.True(t, qe.MonthHasAnyOverlap("2024-06"))
	assert.False(t, qe.MonthHasAnyOverlap("2024-07"))
}

func TestQueryEntries_CarriesIntervals(t *testing.T) {
	store := cache.NewIntervalStore()
	store.MergeRecords([]model.Record{{ID: 7, Start: "2024-03-10 16:00:00", Stop: "2024-03-12 14:00:00"}})
	qe := NewQueryEngine(store, "UTC")

	entries := qe.QueryEntries(march())
	require.Len(t, entries, 1)
	assert.Equal(t, 16, entries[0].Interval.Start.Hour())
	assert.Equal(t, time.UTC, qe.Location())
}
