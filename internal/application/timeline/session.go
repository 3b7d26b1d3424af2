package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/penwyp/go-booking-timeline/internal/core/cache"
	"github.com/penwyp/go-booking-timeline/internal/core/grouping"
	"github.com/penwyp/go-booking-timeline/internal/core/model"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
	"github.com/penwyp/go-booking-timeline/internal/data/source"
	"github.com/penwyp/go-booking-timeline/internal/util"
)

// Dependencies are the collaborators a Session is built from. Only Records
// is required.
type Dependencies struct {
	Records  source.RecordSource
	Catalog  source.CatalogSource
	Focus    FocusStore
	Renderer Renderer
	Clock    util.Clock
}

// Completion is the outcome of a background fetch
type Completion struct {
	Generation uint64
	Transition Transition
	Result     FillResult
	Err        error
}

// Outcome describes what Navigate did with an intent
type Outcome struct {
	Generation  uint64
	Transition  Transition
	Throttled   bool
	Rendered    bool
	FetchIssued bool
}

// SessionStats summarizes cache and source activity
type SessionStats struct {
	Store      cache.StoreStats
	Loader     LoaderStats
	Generation uint64
	Pending    int
}

// Session owns the cache of one timeline and turns navigation intents into
// published views. Navigate, Apply and the other mutating methods are meant
// to be called from a single goroutine; fetches run in the background and
// come back through Completions.
type Session struct {
	cfg      Config
	clock    util.Clock
	store    *cache.IntervalStore
	engine   *timelinepkg.QueryEngine
	filler   *CacheFiller
	nav      *NavigationController
	loader   *DataLoader
	state    *ViewState
	renderer Renderer
	limiter  *rate.Limiter

	mu            sync.Mutex
	catalog       model.Catalog
	frame         Frame
	renderedFrame Frame
	generation    uint64
	renderedGen   uint64
	pending       int
	started       bool

	completions chan Completion
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

// NewSession wires a session from cfg and deps
func NewSession(cfg Config, deps Dependencies) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Records == nil {
		return nil, errors.New("record source is required")
	}

	clock := deps.Clock
	if clock == nil {
		tp, err := util.NewTimeProvider(cfg.Timezone)
		if err != nil {
			return nil, err
		}
		clock = tp
	}

	store := cache.NewIntervalStore()
	engine := timelinepkg.NewQueryEngineInLocation(store, clock.Location())
	loader := NewDataLoader(deps.Records, deps.Catalog)
	filler := NewCacheFiller(store, engine, loader, cfg.Query, cfg.PageSize)

	var limiter *rate.Limiter
	if cfg.ThrottleInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.ThrottleInterval), 1)
	}

	renderer := deps.Renderer
	if renderer == nil {
		renderer = RendererFunc(func(timelinepkg.View) {})
	}

	return &Session{
		cfg:         cfg,
		clock:       clock,
		store:       store,
		engine:      engine,
		filler:      filler,
		nav:         NewNavigationController(cfg, clock, filler, deps.Focus),
		loader:      loader,
		state:       NewViewState(),
		renderer:    renderer,
		limiter:     limiter,
		completions: make(chan Completion, 16),
		done:        make(chan struct{}),
	}, nil
}

// Start loads the catalog and the initial months around today, then
// renders the initial frame
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.state.SetLoadingState(true, "Loading bookings...")
	today := s.clock.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		catalog, err := s.loader.LoadCatalog(gctx)
		if err != nil {
			return err
		}
		s.catalog = catalog
		return nil
	})
	g.Go(func() error {
		_, err := s.filler.AddMonths(gctx,
			today.AddDate(0, -s.cfg.MonthsBehind, 0),
			today.AddDate(0, s.cfg.MonthsAhead, 0))
		return err
	})
	if err := g.Wait(); err != nil {
		s.state.SetLoadingState(false, "")
		s.state.SetError(err)
		return fmt.Errorf("failed to start session: %w", err)
	}

	frame := s.nav.Initial()
	if _, err := s.filler.CoverRange(ctx, frame.Visible.ExpandMonths(1)); err != nil {
		// The initial window is loaded; the persisted focus falls back to today
		util.LogWarn("Session: initial focus could not be loaded, using today",
			util.F("focus", frame.Focus.Format(time.DateOnly)),
			util.F("error", err.Error()))
		frame = s.nav.frame(s.nav.today(), frame.Scale)
	}

	s.started = true
	s.generation++
	s.setFrame(frame)
	s.render(s.generation, frame, false, "")

	stats := s.store.Stats()
	util.LogInfo("Session: started",
		util.F("records", stats.Records),
		util.F("covered_months", stats.CoveredMonths),
		util.F("focus", frame.Focus.Format(time.DateOnly)))
	return nil
}

// Navigate plans and executes one intent. Pans beyond the throttle rate are
// dropped.
func (s *Session) Navigate(ctx context.Context, intent Intent) (Outcome, error) {
	if _, ok := intent.(Pan); ok && s.limiter != nil && !s.limiter.Allow() {
		util.LogDebug("Session: pan throttled")
		s.mu.Lock()
		defer s.mu.Unlock()
		return Outcome{Generation: s.generation, Throttled: true}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tr, err := s.nav.Plan(s.frame, intent)
	if err != nil {
		return Outcome{Generation: s.generation}, err
	}
	s.generation++
	gen := s.generation
	out := Outcome{Generation: gen, Transition: tr}

	util.LogDebug("Session: navigating",
		util.F("intent", intent.Name()),
		util.F("kind", tr.Kind.String()),
		util.F("generation", gen),
		util.F("visible", tr.Visible.String()))

	switch tr.Kind {
	case RenderNow:
		s.setFrame(tr.Frame)
		s.render(gen, tr.Frame, false, "")
		out.Rendered = true

	case SnapBackAndFetch:
		s.setFrame(*tr.Fallback)
		if plan, ok := s.filler.Plan(tr.Recache); ok {
			s.issue(ctx, gen, tr, plan)
			out.FetchIssued = true
			s.render(gen, *tr.Fallback, true, loadingMessage(plan))
		} else {
			s.setFrame(tr.Frame)
			s.render(gen, tr.Frame, false, "")
		}
		out.Rendered = true

	case FetchThenRender:
		s.setFrame(tr.Frame)
		if plan, ok := s.filler.Plan(tr.Recache); ok {
			s.issue(ctx, gen, tr, plan)
			out.FetchIssued = true
			s.state.SetLoadingState(true, loadingMessage(plan))
			s.renderer.Render(s.state.Current())
		} else {
			s.render(gen, tr.Frame, false, "")
			out.Rendered = true
		}
	}
	return out, nil
}

func loadingMessage(plan FillPlan) string {
	return fmt.Sprintf("Loading %s...", plan.Span)
}

// issue starts the background fetch for gen. Called with s.mu held.
func (s *Session) issue(ctx context.Context, gen uint64, tr Transition, plan FillPlan) {
	s.pending++
	s.wg.Add(1)
	fetchCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.wg.Done()
		result, err := s.filler.Fetch(fetchCtx, plan)
		c := Completion{Generation: gen, Transition: tr, Result: result, Err: err}
		select {
		case s.completions <- c:
		case <-s.done:
		}
	}()
}

// Completions delivers finished background fetches; pass each to Apply
func (s *Session) Completions() <-chan Completion {
	return s.completions
}

// Apply merges a completion into the cache and renders its frame when it is
// the latest intent. It reports whether a view was published.
func (s *Session) Apply(c Completion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending > 0 {
		s.pending--
	}
	latest := c.Generation == s.generation

	if c.Err != nil {
		if latest {
			s.setFrame(s.renderedFrame)
			s.state.SetLoadingState(false, "")
			s.state.SetError(c.Err)
			s.renderer.Render(s.state.Current())
		}
		return false, c.Err
	}

	added, ok := s.filler.Apply(c.Result)
	if !ok {
		return false, nil
	}
	if !latest {
		util.LogDebug("Session: merged superseded fetch",
			util.F("generation", c.Generation),
			util.F("latest", s.generation),
			util.F("added", added))
		return false, nil
	}

	s.setFrame(c.Transition.Frame)
	s.render(c.Generation, c.Transition.Frame, false, "")
	return true, nil
}

// Settle applies completions until no fetch is pending
func (s *Session) Settle(ctx context.Context) error {
	var errs []error
	for s.Pending() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-s.completions:
			if _, err := s.Apply(c); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Run navigates every intent and applies completions until ctx is done or
// intents is closed
func (s *Session) Run(ctx context.Context, intents <-chan Intent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case intent, ok := <-intents:
			if !ok {
				return nil
			}
			if _, err := s.Navigate(ctx, intent); err != nil {
				util.LogWarn("Session: navigation failed",
					util.F("intent", intent.Name()),
					util.F("error", err.Error()))
			}
		case c := <-s.completions:
			if _, err := s.Apply(c); err != nil {
				util.LogWarn("Session: background fetch failed",
					util.F("generation", c.Generation),
					util.F("error", err.Error()))
			}
		}
	}
}

// RefreshRecord reloads one record after an out-of-band edit and re-renders
func (s *Session) RefreshRecord(ctx context.Context, id int64) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.filler.RefreshRecord(ctx, id)
	if err != nil {
		return model.Record{}, err
	}
	s.render(s.renderedGen, s.renderedFrame, false, "")
	return rec, nil
}

// SetQueryContext switches filters or grouping. A different context drops
// the cache and reloads the current frame.
func (s *Session) SetQueryContext(ctx context.Context, qc model.QueryContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qc.Key() == s.filler.QueryContext().Key() {
		return nil
	}
	s.filler.SetQueryContext(qc)
	return s.reload(ctx, "query context changed")
}

// Reload drops the cache, reloads the catalog and refills the current frame
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalog, err := s.loader.LoadCatalog(ctx)
	if err != nil {
		s.state.SetError(err)
		return err
	}
	s.catalog = catalog
	return s.reload(ctx, "dataset reloaded")
}

func (s *Session) reload(ctx context.Context, reason string) error {
	s.store.Reset()
	s.filler.Invalidate()
	s.generation++
	util.LogInfo("Session: cache reset", util.F("reason", reason), util.F("generation", s.generation))

	if _, err := s.filler.Fill(ctx, s.frame.Visible.ExpandMonths(1)); err != nil {
		s.state.SetError(err)
		s.renderer.Render(s.state.Current())
		return err
	}
	s.render(s.generation, s.frame, false, "")
	return nil
}

// render publishes the view of f. Called with s.mu held.
func (s *Session) render(gen uint64, f Frame, loading bool, message string) {
	entries := s.engine.QueryEntries(f.Visible)
	records := make([]model.Record, len(entries))
	for i, e := range entries {
		records[i] = e.Record
	}

	catalog := s.catalog
	if catalog == nil {
		catalog = DeriveCatalog(records)
	}

	view := timelinepkg.View{
		Generation:    gen,
		Focus:         f.Focus,
		Scale:         f.Scale,
		Visible:       f.Visible,
		Entries:       entries,
		Groups:        grouping.Build(records, catalog),
		CoveredMonths: s.store.CoveredMonths(),
		RenderedAt:    s.clock.Now(),
	}
	s.state.Publish(view)
	s.state.SetLoadingState(loading, message)
	s.renderedFrame = f
	s.renderedGen = gen
	s.renderer.Render(s.state.Current())
}

// setFrame moves the focus and persists it. Called with s.mu held.
func (s *Session) setFrame(f Frame) {
	changed := !f.Focus.Equal(s.frame.Focus) || f.Scale != s.frame.Scale
	s.frame = f
	if changed {
		s.nav.Persist(f)
	}
}

// Current returns the last published view
func (s *Session) Current() timelinepkg.View {
	return s.state.Current()
}

// Frame returns the frame the next intent is planned from
func (s *Session) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Pending is the number of background fetches not yet applied
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStats{
		Store:      s.store.Stats(),
		Loader:     s.loader.Stats(),
		Generation: s.generation,
		Pending:    s.pending,
	}
}

// Close stops delivering completions and waits for in-flight fetches
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}
