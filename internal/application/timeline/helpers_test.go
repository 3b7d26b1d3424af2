package timeline

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
	"github.com/penwyp/go-booking-timeline/internal/data/source"
	"github.com/penwyp/go-booking-timeline/internal/testing/fixtures"
	"github.com/penwyp/go-booking-timeline/internal/util"
	"github.com/stretchr/testify/require"
)

// fakeSource serves a fixture hotel from memory. The next fetch whose span
// starts in a gated month blocks until the gate is released.
type fakeSource struct {
	mu      sync.Mutex
	loc     *time.Location
	records []model.Record
	catalog model.Catalog
	spans   []model.DateRange
	gates   map[model.MonthKey]chan struct{}
	err     error
}

func newFakeSource(h fixtures.Hotel) *fakeSource {
	return &fakeSource{
		loc:     time.UTC,
		records: h.Records,
		catalog: h.Catalog,
		gates:   make(map[model.MonthKey]chan struct{}),
	}
}

func (f *fakeSource) Fetch(ctx context.Context, req source.FetchRequest) (source.FetchResponse, error) {
	f.mu.Lock()
	f.spans = append(f.spans, req.Range)
	key := model.MonthKeyOf(req.Range.Start)
	gate := f.gates[key]
	delete(f.gates, key)
	err := f.err
	records := f.records
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return source.FetchResponse{}, ctx.Err()
		}
	}
	if err != nil {
		return source.FetchResponse{}, err
	}

	var matched []model.Record
	for _, rec := range records {
		iv, err := rec.Interval(f.loc)
		if err != nil {
			continue
		}
		if !iv.Start.After(req.Range.End) && !iv.End.Before(req.Range.Start) {
			matched = append(matched, rec)
		}
	}

	page := matched
	if off := req.Context.Offset; off > 0 {
		if off >= len(page) {
			page = nil
		} else {
			page = page[off:]
		}
	}
	if limit := req.Context.Limit; limit > 0 && limit < len(page) {
		page = page[:limit]
	}
	return source.FetchResponse{Count: len(matched), Records: page}, nil
}

func (f *fakeSource) FetchOne(_ context.Context, id int64) (model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return model.Record{}, source.ErrNotFound
}

func (f *fakeSource) Catalog(context.Context) (model.Catalog, error) {
	return f.catalog, nil
}

func (f *fakeSource) gate(month model.MonthKey) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[month] = ch
	return ch
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) update(rec model.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == rec.ID {
			f.records[i] = rec
		}
	}
}

// remove deletes a record without touching slices handed to running fetches
func (f *fakeSource) remove(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = slices.DeleteFunc(slices.Clone(f.records), func(r model.Record) bool {
		return r.ID == id
	})
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spans)
}

func (f *fakeSource) lastSpan() model.DateRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spans[len(f.spans)-1]
}

// memFocus is an in-memory FocusStore
type memFocus struct {
	mu      sync.Mutex
	focus   time.Time
	scale   string
	saved   int
	loadErr error
	saveErr error
}

func (m *memFocus) LoadFocus() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return time.Time{}, m.loadErr
	}
	if m.focus.IsZero() {
		return time.Time{}, errNoFocus
	}
	return m.focus, nil
}

func (m *memFocus) SaveFocus(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.focus = t
	m.saved++
	return nil
}

func (m *memFocus) LoadScale() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scale == "" {
		return "", errNoFocus
	}
	return m.scale, nil
}

func (m *memFocus) SaveScale(scale string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scale = scale
	return nil
}

var errNoFocus = source.ErrNotFound

// recordingRenderer keeps every rendered view
type recordingRenderer struct {
	mu    sync.Mutex
	views []timelinepkg.View
}

func (r *recordingRenderer) Render(v timelinepkg.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *recordingRenderer) last() timelinepkg.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[len(r.views)-1]
}

// March 10th 2024, noon UTC
var testNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func testClock() *util.TimeProvider {
	return util.NewFixedTimeProvider(testNow)
}

func testHotel() fixtures.Hotel {
	return fixtures.GenerateHotel(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), 12)
}

func testConfig() Config {
	return Config{
		DaysToMove:       5,
		Scale:            timelinepkg.ScaleMonth,
		Timezone:         "UTC",
		ThrottleInterval: -1,
	}
}

func month(year int, m time.Month) model.DateRange {
	return model.MonthKeyOf(time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)).Range(time.UTC)
}

func day(year int, m time.Month, d int) time.Time {
	return time.Date(year, m, d, 0, 0, 0, 0, time.UTC)
}

type sessionFixture struct {
	session  *Session
	source   *fakeSource
	focus    *memFocus
	renderer *recordingRenderer
}

func newStartedSession(t *testing.T, cfg Config) sessionFixture {
	t.Helper()
	src := newFakeSource(testHotel())
	focus := &memFocus{}
	renderer := &recordingRenderer{}

	s, err := NewSession(cfg, Dependencies{
		Records:  src,
		Catalog:  src,
		Focus:    focus,
		Renderer: renderer,
		Clock:    testClock(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Start(context.Background()))
	return sessionFixture{session: s, source: src, focus: focus, renderer: renderer}
}

func nextCompletion(t *testing.T, s *Session) Completion {
	t.Helper()
	select {
	case c := <-s.Completions():
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a completion")
		return Completion{}
	}
}

func settle(t *testing.T, s *Session) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.Settle(ctx)
}
