package layout

import (
	"fmt"
	"time"

	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
)

// ListStrategy lists the bookings of each row
type ListStrategy struct{}

func (l *ListStrategy) GetName() string {
	return "list"
}

func (l *ListStrategy) Render(view timelinepkg.View, sizer *Sizer) []string {
	var lines []string
	for _, g := range view.Groups {
		lines = append(lines, sizer.Fit(g.Label(), sizer.Width))
		for _, e := range view.GroupEntries(g) {
			line := fmt.Sprintf("  %s → %s  %s",
				e.Interval.Start.Format("Jan 02 15:04"),
				e.Interval.End.Format("Jan 02 15:04"),
				e.Record.DisplayName())
			lines = append(lines, sizer.Fit(line, sizer.Width))
		}
	}
	if len(lines) == 0 {
		lines = append(lines, fmt.Sprintf("No bookings between %s and %s",
			view.Visible.Start.Format(time.DateOnly),
			view.Visible.End.Add(-time.Nanosecond).Format(time.DateOnly)))
	}
	return lines
}
