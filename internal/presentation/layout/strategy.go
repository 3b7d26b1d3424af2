package layout

import (
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
)

// Layout styles
const (
	StyleLanes = iota
	StyleList
)

// LayoutStrategy renders a view into screen lines
type LayoutStrategy interface {
	Render(view timelinepkg.View, sizer *Sizer) []string
	GetName() string
}

// GetLayoutStrategy returns the strategy for style, lanes by default
func GetLayoutStrategy(style int) LayoutStrategy {
	strategies := map[int]LayoutStrategy{
		StyleLanes: &LanesStrategy{},
		StyleList:  &ListStrategy{},
	}
	if strategy, exists := strategies[style]; exists {
		return strategy
	}
	return &LanesStrategy{}
}

// StyleCount is the number of available layout styles
func StyleCount() int {
	return 2
}
