package layout

import (
	"fmt"
	"strings"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
)

const (
	maxLabelWidth = 24
	cellBooked    = '█'
	cellUnplaced  = '▒'
	cellFree      = '·'
)

// LanesStrategy draws one bar lane per row across the visible range
type LanesStrategy struct{}

func (l *LanesStrategy) GetName() string {
	return "lanes"
}

func (l *LanesStrategy) Render(view timelinepkg.View, sizer *Sizer) []string {
	labelWidth := len("unassigned")
	for _, g := range view.Groups {
		if w := sizer.DisplayWidth(g.Label()); w > labelWidth {
			labelWidth = w
		}
	}
	if labelWidth > maxLabelWidth {
		labelWidth = maxLabelWidth
	}
	cols := sizer.Width - labelWidth - 3
	if cols < 1 {
		cols = 1
	}
	spans := columnSpans(view.Visible, cols)

	lines := []string{sizer.PadString("", labelWidth, true) + " │ " + ruler(spans)}
	for _, g := range view.Groups {
		fill := cellBooked
		if g.Unassigned {
			fill = cellUnplaced
		}
		lane := lane(view.GroupEntries(g), spans, fill)
		lines = append(lines, sizer.Fit(g.Label(), labelWidth)+" │ "+lane)
	}
	if len(view.Groups) == 0 {
		lines = append(lines, sizer.Fit("(no bookings)", labelWidth)+" │")
	}
	return lines
}

// columnSpans splits r into cols equal sub-ranges
func columnSpans(r model.DateRange, cols int) []model.DateRange {
	total := r.End.Sub(r.Start)
	if total <= 0 {
		return nil
	}
	spans := make([]model.DateRange, cols)
	for c := range cols {
		spans[c] = model.DateRange{
			Start: r.Start.Add(total * time.Duration(c) / time.Duration(cols)),
			End:   r.Start.Add(total * time.Duration(c+1) / time.Duration(cols)),
		}
	}
	return spans
}

func lane(entries []timelinepkg.Entry, spans []model.DateRange, fill rune) string {
	var b strings.Builder
	for _, span := range spans {
		cell := cellFree
		for _, e := range entries {
			if e.Interval.Overlaps(span) {
				cell = fill
				break
			}
		}
		b.WriteRune(cell)
	}
	return b.String()
}

// ruler labels the columns where a week starts with the day of month
func ruler(spans []model.DateRange) string {
	cells := make([]rune, len(spans))
	for i := range cells {
		cells[i] = ' '
	}
	lastDay := -1
	for i, span := range spans {
		day := span.Start.YearDay()
		if day == lastDay {
			continue
		}
		lastDay = day
		if d := span.Start.Day(); (d-1)%7 == 0 {
			label := fmt.Sprint(d)
			if i+len(label) <= len(cells) && (i == 0 || cells[i-1] == ' ') {
				copy(cells[i:], []rune(label))
			}
		}
	}
	return string(cells)
}
