package layout

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/penwyp/go-booking-timeline/internal/core/model"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id int64, start, end time.Time) timelinepkg.Entry {
	return timelinepkg.Entry{
		Record:   model.Record{ID: id, Fields: map[string]any{model.FieldReferenceName: "R" + string(rune('A'+id))}},
		Interval: model.DateRange{Start: start, End: end},
	}
}

func testView() timelinepkg.View {
	d := func(day, hour int) time.Time { return time.Date(2024, time.February, day, hour, 0, 0, 0, time.UTC) }
	return timelinepkg.View{
		Scale:   timelinepkg.ScaleMonth,
		Visible: model.MonthKey("2024-02").Range(time.UTC),
		Entries: []timelinepkg.Entry{
			entry(1, d(1, 16), d(3, 14)),
			entry(2, d(27, 16), d(29, 14)),
			entry(3, d(10, 16), d(11, 14)),
		},
		Groups: []model.Group{
			{CategoryLabel: "Double", Unassigned: true, RecordIDs: []int64{3}},
			{CategoryLabel: "Double", ResourceID: 101, ResourceLabel: "101", RecordIDs: []int64{1, 2}},
		},
	}
}

func TestGetLayoutStrategy(t *testing.T) {
	assert.Equal(t, "lanes", GetLayoutStrategy(StyleLanes).GetName())
	assert.Equal(t, "list", GetLayoutStrategy(StyleList).GetName())
	assert.Equal(t, "lanes", GetLayoutStrategy(42).GetName())
}

func TestLanesStrategy(t *testing.T) {
	// 29 days over 29 columns: one column per day
	sizer := NewSizer(len("Double / unassigned")+3+29, 24)
	lines := (&LanesStrategy{}).Render(testView(), sizer)
	require.Len(t, lines, 3)

	for _, line := range lines {
		assert.Equal(t, sizer.Width, runewidth.StringWidth(line), line)
	}

	unassigned := strings.SplitN(lines[1], "│ ", 2)[1]
	assert.Equal(t, '▒', []rune(unassigned)[9])
	assert.Equal(t, '▒', []rune(unassigned)[10])
	assert.Equal(t, '·', []rune(unassigned)[11])

	room := []rune(strings.SplitN(lines[2], "│ ", 2)[1])
	assert.Equal(t, "███", string(room[0:3]))
	assert.Equal(t, '·', room[3])
	assert.Equal(t, "███", string(room[26:29]))

	assert.True(t, strings.HasPrefix(strings.SplitN(lines[0], "│ ", 2)[1], "1      8"))
}

func TestListStrategy(t *testing.T) {
	sizer := NewSizer(60, 24)
	lines := (&ListStrategy{}).Render(testView(), sizer)
	require.Len(t, lines, 5)
	assert.Equal(t, "Double / unassigned", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[3], "Feb 01 16:00 → Feb 03 14:00")

	empty := (&ListStrategy{}).Render(timelinepkg.View{Visible: model.MonthKey("2024-02").Range(time.UTC)}, sizer)
	assert.Equal(t, []string{"No bookings between 2024-02-01 and 2024-02-29"}, empty)
}

func TestSizerFit(t *testing.T) {
	s := NewSizer(80, 24)
	assert.Equal(t, "abc  ", s.Fit("abc", 5))
	assert.Equal(t, "abcd…", s.Fit("abcdefgh", 5))
	assert.Equal(t, 4, s.DisplayWidth("日本"))
	assert.Equal(t, "  ab", s.PadString("ab", 4, false))
	assert.Empty(t, s.Fit("abc", 0))
}
