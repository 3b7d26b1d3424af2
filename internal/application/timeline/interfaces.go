package timeline

import (
	"time"

	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
)

// FocusStore persists the focus date between runs
type FocusStore interface {
	// LoadFocus returns the persisted focus date
	LoadFocus() (time.Time, error)
	// SaveFocus persists a new focus date
	SaveFocus(t time.Time) error
}

// ScaleStore is optionally implemented by a FocusStore that also keeps the scale
type ScaleStore interface {
	LoadScale() (string, error)
	SaveScale(scale string) error
}

// Renderer receives every published view
type Renderer interface {
	// Render draws the view
	Render(view timelinepkg.View)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(view timelinepkg.View)

func (f RendererFunc) Render(view timelinepkg.View) {
	f(view)
}
