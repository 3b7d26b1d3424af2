package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Start(t *testing.T) {
	fx := newStartedSession(t, testConfig())
	s := fx.session

	view := s.Current()
	assert.Equal(t, day(2024, time.March, 10), view.Focus)
	assert.Equal(t, month(2024, time.March), view.Visible)
	assert.False(t, view.Loading)
	assert.NotEmpty(t, view.Entries)
	assert.NotEmpty(t, view.Groups)
	assert.Equal(t, []model.MonthKey{"2024-02", "2024-03", "2024-04"}, view.CoveredMonths)

	// Initial month, then the lookaround around it in one span
	assert.Equal(t, 2, fx.source.fetchCount())
	assert.Equal(t, day(2024, time.February, 1), fx.source.lastSpan().Start)
	assert.Equal(t, day(2024, time.May, 1), fx.source.lastSpan().End)

	assert.Equal(t, 1, fx.renderer.count())
	assert.Equal(t, day(2024, time.March, 10), fx.focus.focus)

	// Starting twice is a no-op
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, fx.source.fetchCount())
}

func TestSession_StartWindow(t *testing.T) {
	cfg := testConfig()
	cfg.MonthsBehind = 2
	cfg.MonthsAhead = 1
	fx := newStartedSession(t, cfg)

	assert.Equal(t, 1, fx.source.fetchCount(), "window already includes the lookaround")
	assert.Equal(t,
		[]model.MonthKey{"2024-01", "2024-02", "2024-03", "2024-04"},
		fx.session.Current().CoveredMonths)
}

func TestSession_StartFromPersistedFocus(t *testing.T) {
	src := newFakeSource(testHotel())
	focus := &memFocus{focus: day(2024, time.August, 5)}

	s, err := NewSession(testConfig(), Dependencies{Records: src, Catalog: src, Focus: focus, Clock: testClock()})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Start(context.Background()))

	view := s.Current()
	assert.Equal(t, day(2024, time.August, 5), view.Focus)
	assert.Equal(t, month(2024, time.August), view.Visible)
	for _, e := range view.Entries {
		assert.True(t, e.Interval.Overlaps(view.Visible))
	}
}

func TestSession_StartFailure(t *testing.T) {
	src := newFakeSource(testHotel())
	src.fail(errors.New("no route to host"))

	s, err := NewSession(testConfig(), Dependencies{Records: src, Clock: testClock()})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	err = s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Error(t, s.Current().Err)
}

func TestNewSession_RequiresRecords(t *testing.T) {
	_, err := NewSession(testConfig(), Dependencies{})
	assert.Error(t, err)

	cfg := testConfig()
	cfg.MonthsAhead = -1
	_, err = NewSession(cfg, Dependencies{Records: newFakeSource(testHotel())})
	assert.Error(t, err)
}

func TestSession_PanWithinCoveredMonthRendersWithoutFetch(t *testing.T) {
	fx := newStartedSession(t, testConfig())
	s := fx.session
	fetches := fx.source.fetchCount()

	out, err := s.Navigate(context.Background(), Pan{Days: 5, Direction: Forward})
	require.NoError(t, err)
	assert.True(t, out.Rendered)
	assert.False(t, out.FetchIssued)
	assert.Equal(t, RenderNow, out.Transition.Kind)
	assert.Equal(t, fetches, fx.source.fetchCount())
	assert.Zero(t, s.Pending())

	view := s.Current()
	assert.Equal(t, out.Generation, view.Generation)
	assert.Equal(t, day(2024, time.March, 15), view.Focus)
	assert.Equal(t, day(2024, time.March, 6), view.Visible.Start)
	assert.Equal(t, day(2024, time.March, 15), fx.focus.focus)
}

func TestSession_PanIntoUncoveredMonth(t *testing.T) {
	fx := newStartedSession(t, testConfig())
	s := fx.session
	renders := fx.renderer.count()

	out, err := s.Navigate(context.Background(), Pan{Days: 62, Direction: Forward})
	require.NoError(t, err)
	assert.Equal(t, SnapBackAndFetch, out.Transition.Kind)
	assert.True(t, out.Rendered)
	assert.True(t, out.FetchIssued)

	// Snapped back to the start of the month shown before the pan
	view := s.Current()
	assert.Equal(t, day(2024, time.March, 1), view.Focus)
	assert.Equal(t, month(2024, time.March), view.Visible)
	assert.True(t, view.Loading)
	assert.Equal(t, renders+1, fx.renderer.count())

	require.NoError(t, settle(t, s))

	// Destination with a month of margin, skipping covered April
	assert.Equal(t, day(2024, time.May, 1), fx.source.lastSpan().Start)
	assert.Equal(t, day(2024, time.July, 1), fx.source.lastSpan().End)

	view = s.Current()
	assert.Equal(t, out.Generation, view.Generation)
	assert.Equal(t, day(2024, time.May, 1), view.Focus)
	assert.Equal(t, month(2024, time.May), view.Visible)
	assert.False(t, view.Loading)
	assert.Contains(t, view.CoveredMonths, model.MonthKey("2024-05"))
	assert.Contains(t, view.CoveredMonths, model.MonthKey("2024-06"))
	assert.NotEmpty(t, view.Entries)
	assert.Equal(t, renders+2, fx.renderer.count())
	assert.Equal(t, day(2024, time.May, 1), fx.focus.focus)
}

func TestSession_LatestIntentWins(t *testing.T) {
	// Fetches are gated by the first month of their span
	spanA, spanB := model.MonthKey("2024-05"), model.MonthKey("2024-08")

	run := func(t *testing.T, releaseFirst, releaseSecond model.MonthKey) (*Session, Outcome, Outcome) {
		fx := newStartedSession(t, testConfig())
		s := fx.session
		gates := map[model.MonthKey]chan struct{}{
			spanA: fx.source.gate(spanA),
			spanB: fx.source.gate(spanB),
		}

		outA, err := s.Navigate(context.Background(), JumpToMonth{Month: time.June})
		require.NoError(t, err)
		require.True(t, outA.FetchIssued)
		outB, err := s.Navigate(context.Background(), JumpToMonth{Month: time.September})
		require.NoError(t, err)
		require.True(t, outB.FetchIssued)
		assert.Equal(t, 2, s.Pending())

		for _, key := range []model.MonthKey{releaseFirst, releaseSecond} {
			close(gates[key])
			c := nextCompletion(t, s)
			rendered, err := s.Apply(c)
			require.NoError(t, err)
			assert.Equal(t, c.Generation == outB.Generation, rendered)
		}
		return s, outA, outB
	}

	check := func(t *testing.T, s *Session, outB Outcome) {
		view := s.Current()
		assert.Equal(t, outB.Generation, view.Generation)
		assert.Equal(t, month(2024, time.September), view.Visible)
		for _, key := range []model.MonthKey{"2024-05", "2024-06", "2024-07", "2024-08", "2024-09", "2024-10"} {
			assert.True(t, s.store.IsMonthCovered(key), key)
		}

		// June bookings were merged even though June never rendered
		var juneRecords int
		for rec := range s.store.All() {
			if rec.Start[:7] == "2024-06" {
				juneRecords++
			}
		}
		assert.Positive(t, juneRecords)
		assert.Zero(t, s.Pending())
	}

	t.Run("a_completes_first", func(t *testing.T) {
		s, outA, outB := run(t, spanA, spanB)
		assert.Less(t, outA.Generation, outB.Generation)
		check(t, s, outB)
	})

	t.Run("b_completes_first", func(t *testing.T) {
		s, _, outB := run(t, spanB, spanA)
		check(t, s, outB)
	})
}

func TestSession_FetchFailureKeepsView(t *testing.T) {
	fx := newStartedSession(t, testConfig())
	s := fx.session
	before := s.Current()
	cause := errors.New("gateway timeout")
	fx.source.fail(cause)

	out, err := s.Navigate(context.Background(), JumpToMonth{Month: time.October})
	require.NoError(t, err)
	require.True(t, out.FetchIssued)

	err = settle(t, s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, cause)

	view := s.Current()
	assert.Equal(t, before.Visible, view.Visible)
	assert.Equal(t, before.Generation, view.Generation)
	assert.Equal(t, before.RecordIDs(), view.RecordIDs())
	assert.False(t, view.Loading)
	assert.ErrorIs(t, view.Err, ErrFetchFailed)
	assert.False(t, s.store.IsMonthCovered("2024-10"))
	assert.Equal(t, before.Focus, s.Frame().Focus)

	// Navigating again retries
	fx.source.fail(nil)
	out, err = s.Navigate(context.Background(), JumpToMonth{Month: time.October})
	require.NoError(t, err)
	assert.True(t, out.FetchIssued)
	require.NoError(t, settle(t, s))
	assert.Equal(t, month(2024, time.October), s.Current().Visible)
	assert.NoError(t, s.Current().Err)
}

func TestSession_JumpToCoveredMonthRendersImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.MonthsBehind = 3
	cfg.MonthsAhead = 3
	fx := newStartedSession(t, cfg)
	fetches := fx.source.fetchCount()

	out, err := fx.session.Navigate(context.Background(), JumpToMonth{Month: time.April})
	require.NoError(t, err)
	assert.Equal(t, FetchThenRender, out.Transition.Kind)
	assert.False(t, out.FetchIssued)
	assert.True(t, out.Rendered)
	assert.Equal(t, fetches, fx.source.fetchCount())
	assert.Equal(t, month(2024, time.April), fx.session.Current().Visible)
}

func TestSession_PanThrottle(t *testing.T) {
	cfg := testConfig()
	cfg.ThrottleInterval = time.Hour
	fx := newStartedSession(t, cfg)
	s := fx.session
	ctx := context.Background()

	first, err := s.Navigate(ctx, Pan{Direction: Forward})
	require.NoError(t, err)
	assert.False(t, first.Throttled)

	second, err := s.Navigate(ctx, Pan{Direction: Forward})
	require.NoError(t, err)
	assert.True(t, second.Throttled)
	assert.Equal(t, first.Generation, second.Generation)
	assert.Equal(t, first.Transition.Frame.Focus, s.Frame().Focus)

	// Only pans are throttled
	jump, err := s.Navigate(ctx, ResetToToday{})
	require.NoError(t, err)
	assert.False(t, jump.Throttled)
	assert.Greater(t, jump.Generation, first.Generation)
}

func TestSession_SetQueryContextResetsCache(t *testing.T) {
	fx := newStartedSession(t, testConfig())
	s := fx.session
	ctx := context.Background()

	gate := fx.source.gate("2024-09")
	out, err := s.Navigate(ctx, JumpToMonth{Month: time.October})
	require.NoError(t, err)
	require.True(t, out.FetchIssued)

	qc := model.QueryContext{Filters: []model.Condition{{Field: "category_id", Op: "=", Value: 2}}}
	require.NoError(t, s.SetQueryContext(ctx, qc))

	view := s.Current()
	assert.Greater(t, view.Generation, out.Generation)
	assert.Equal(t, month(2024, time.October), view.Visible)
	assert.Equal(t, []model.MonthKey{"2024-09", "2024-10", "2024-11"}, view.CoveredMonths)

	// The fetch issued under the old context is dropped
	close(gate)
	rendered, err := s.Apply(nextCompletion(t, s))
	require.NoError(t, err)
	assert.False(t, rendered)
	assert.Equal(t, view.Generation, s.Current().Generation)

	// Same context again changes nothing
	fetches := fx.source.fetchCount()
	require.NoError(t, s.SetQueryContext(ctx, qc))
	assert.Equal(t, fetches, fx.source.fetchCount())
}

func TestSession_RefreshRecord(t *testing.T) {
	fx := newStartedSession(t, testConfig())
	s := fx.session

	entry := s.Current().Entries[0]
	rec := entry.Record
	rec.Fields = map[string]any{model.FieldReferenceName: "Moved guest"}
	rec.Resource = &model.Ref{ID: 202, Name: "202"}
	fx.source.update(rec)
	renders := fx.renderer.count()

	_, err := s.RefreshRecord(context.Background(), rec.ID)
	require.NoError(t, err)

	got, ok := s.Current().Entry(rec.ID)
	require.True(t, ok)
	assert.Equal(t, "Moved guest", got.Record.DisplayName())
	assert.Equal(t, int64(202), got.Record.Resource.ID)
	assert.Equal(t, renders+1, fx.renderer.count())
}

func TestSession_Reload(t *testing.T) {
	fx := newStartedSession(t, testConfig())
	s := fx.session
	gen := s.Current().Generation

	require.NoError(t, s.Reload(context.Background()))
	view := s.Current()
	assert.Greater(t, view.Generation, gen)
	assert.Equal(t, []model.MonthKey{"2024-02", "2024-03", "2024-04"}, view.CoveredMonths)
	assert.NotEmpty(t, view.Entries)
}

func TestSession_ReloadDropsFetchInFlight(t *testing.T) {
	fx := newStartedSession(t, testConfig())
	s := fx.session
	release := fx.source.gate("2024-05")

	out, err := s.Navigate(context.Background(), Pan{Days: 62, Direction: Forward})
	require.NoError(t, err)
	require.True(t, out.FetchIssued)

	// A May booking disappears from the dataset while May is being fetched
	var removed model.Record
	for _, rec := range fx.source.records {
		iv, err := rec.Interval(time.UTC)
		if err == nil && model.MonthKeyOf(iv.Start) == "2024-05" {
			removed = rec
			break
		}
	}
	require.NotZero(t, removed.ID)
	fx.source.remove(removed.ID)

	require.NoError(t, s.Reload(context.Background()))

	close(release)
	rendered, err := s.Apply(nextCompletion(t, s))
	require.NoError(t, err)
	assert.False(t, rendered)
	assert.Zero(t, s.Pending())

	_, cached := s.store.Get(removed.ID)
	assert.False(t, cached, "records fetched before the reload stay out of the cache")
	assert.False(t, s.store.IsMonthCovered("2024-05"))
	assert.Contains(t, s.filler.MissingMonths(month(2024, time.May)), model.MonthKey("2024-05"))
}

func TestSession_Run(t *testing.T) {
	fx := newStartedSession(t, testConfig())
	s := fx.session

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	intents := make(chan Intent)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, intents) }()

	intents <- JumpToMonth{Month: time.November}
	intents <- SetScale{Scale: timelinepkg.ScaleWeek}

	assert.Eventually(t, func() bool {
		v := s.Current()
		return !v.Loading && v.Scale == timelinepkg.ScaleWeek && v.Focus.Equal(day(2024, time.November, 1))
	}, 2*time.Second, 10*time.Millisecond)

	close(intents)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after intents closed")
	}
}
