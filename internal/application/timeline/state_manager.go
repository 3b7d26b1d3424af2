package timeline

import (
	"sync"
	"time"

	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
)

// ViewState holds the published view in a thread-safe manner
type ViewState struct {
	mu sync.RWMutex

	current  timelinepkg.View
	previous timelinepkg.View

	// Loading state
	isLoading      bool
	loadingMessage string

	lastErr     error
	lastRender  time.Time
	renderCount int
}

func NewViewState() *ViewState {
	return &ViewState{}
}

// Current returns the last published view with the loading state applied
func (vs *ViewState) Current() timelinepkg.View {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	v := vs.current
	v.Loading = vs.isLoading
	v.LoadingMessage = vs.loadingMessage
	v.Err = vs.lastErr
	return v
}

// Previous returns the view replaced by the last publish
func (vs *ViewState) Previous() timelinepkg.View {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.previous
}

// Publish replaces the current view and clears the last error
func (vs *ViewState) Publish(v timelinepkg.View) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	vs.previous = vs.current
	vs.current = v
	vs.lastErr = nil
	vs.lastRender = v.RenderedAt
	vs.renderCount++
}

func (vs *ViewState) LoadingState() (bool, string) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.isLoading, vs.loadingMessage
}

func (vs *ViewState) SetLoadingState(isLoading bool, message string) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.isLoading = isLoading
	vs.loadingMessage = message
}

// SetError records a failure without touching the published view
func (vs *ViewState) SetError(err error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.lastErr = err
}

func (vs *ViewState) LastError() error {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.lastErr
}

// RenderCount is the number of views published so far
func (vs *ViewState) RenderCount() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.renderCount
}

func (vs *ViewState) LastRender() time.Time {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.lastRender
}
