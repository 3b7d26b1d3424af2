package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/cache"
	"github.com/penwyp/go-booking-timeline/internal/core/model"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFiller(src *fakeSource, pageSize int) (*CacheFiller, *cache.IntervalStore) {
	store := cache.NewIntervalStore()
	engine := timelinepkg.NewQueryEngineInLocation(store, time.UTC)
	return NewCacheFiller(store, engine, src, model.QueryContext{}, pageSize), store
}

func TestCacheFiller_MissingMonths(t *testing.T) {
	src := newFakeSource(testHotel())
	filler, store := newTestFiller(src, 0)

	store.MergeRecords(src.records[:1]) // a January booking
	store.MarkMonthCovered("2024-01", "2023-12")

	r := model.DateRange{Start: day(2023, time.December, 20), End: day(2024, time.February, 3)}
	assert.Equal(t, []model.MonthKey{"2023-12", "2024-02"}, filler.MissingMonths(r),
		"covered but empty December is missing, covered January is not")
	assert.False(t, filler.IsUsable(r))

	store.MarkMonthCovered("2024-02")
	assert.True(t, filler.IsUsable(r), "empty covered months are usable")
}

func TestCacheFiller_PlanIsOneContiguousSpan(t *testing.T) {
	src := newFakeSource(testHotel())
	filler, _ := newTestFiller(src, 0)
	ctx := context.Background()

	_, err := filler.Fill(ctx, month(2024, time.March))
	require.NoError(t, err)

	plan, ok := filler.Plan(model.DateRange{Start: day(2024, time.February, 10), End: day(2024, time.April, 20)})
	require.True(t, ok)
	assert.Equal(t, []model.MonthKey{"2024-02", "2024-04"}, plan.Missing)
	assert.Equal(t, day(2024, time.February, 1), plan.Span.Start)
	assert.Equal(t, day(2024, time.May, 1), plan.Span.End)
	assert.Equal(t, []model.MonthKey{"2024-02", "2024-03", "2024-04"}, plan.Months)

	_, ok = filler.Plan(model.DateRange{Start: day(2024, time.March, 5), End: day(2024, time.March, 20)})
	assert.False(t, ok, "a fully covered month needs no fetch")
}

func TestCacheFiller_FillMarksEveryMonthOfSpan(t *testing.T) {
	src := newFakeSource(testHotel())
	filler, store := newTestFiller(src, 0)

	issued, err := filler.Fill(context.Background(), model.DateRange{
		Start: day(2024, time.November, 25),
		End:   day(2025, time.February, 2),
	})
	require.NoError(t, err)
	assert.True(t, issued)
	assert.Equal(t, 1, src.fetchCount())

	assert.Equal(t, []model.MonthKey{"2024-11", "2024-12", "2025-01", "2025-02"}, store.CoveredMonths(),
		"months without bookings are still covered")
	for rec := range store.All() {
		assert.Contains(t, rec.Start, "2024-1")
	}
}

func TestCacheFiller_AddMonthsSkipsCoveredMonths(t *testing.T) {
	src := newFakeSource(testHotel())
	filler, store := newTestFiller(src, 0)
	ctx := context.Background()

	issued, err := filler.AddMonths(ctx, day(2024, time.March, 15), day(2024, time.April, 2))
	require.NoError(t, err)
	assert.True(t, issued)
	assert.Equal(t, 1, src.fetchCount())

	issued, err = filler.AddMonths(ctx, day(2024, time.March, 1), day(2024, time.April, 30))
	require.NoError(t, err)
	assert.False(t, issued)
	assert.Equal(t, 1, src.fetchCount(), "covered months must not be refetched")

	// Empty months are covered too
	store.MarkMonthCovered("2030-01")
	issued, err = filler.AddMonths(ctx, day(2030, time.January, 1), day(2030, time.January, 31))
	require.NoError(t, err)
	assert.False(t, issued)
}

func TestCacheFiller_FetchFailureLeavesStoreUntouched(t *testing.T) {
	src := newFakeSource(testHotel())
	filler, store := newTestFiller(src, 0)
	cause := errors.New("connection refused")
	src.fail(cause)

	issued, err := filler.Fill(context.Background(), month(2024, time.June))
	assert.True(t, issued)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, cause)

	assert.Zero(t, store.Len())
	assert.Empty(t, store.CoveredMonths())

	src.fail(nil)
	_, err = filler.Fill(context.Background(), month(2024, time.June))
	require.NoError(t, err)
	assert.True(t, store.IsMonthCovered("2024-06"))
}

func TestCacheFiller_Paging(t *testing.T) {
	src := newFakeSource(testHotel())
	filler, store := newTestFiller(src, 4)

	plan, ok := filler.Plan(month(2024, time.May))
	require.True(t, ok)
	result, err := filler.Fetch(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, result.Count, len(result.Records))
	assert.Greater(t, src.fetchCount(), 1)
	assert.Zero(t, store.Len(), "Fetch alone does not merge")

	added, applied := filler.Apply(result)
	assert.True(t, applied)
	assert.Equal(t, result.Count, added)
}

func TestCacheFiller_ApplyDropsOtherQueryContext(t *testing.T) {
	src := newFakeSource(testHotel())
	filler, store := newTestFiller(src, 0)

	plan, _ := filler.Plan(month(2024, time.May))
	result, err := filler.Fetch(context.Background(), plan)
	require.NoError(t, err)

	filler.SetQueryContext(model.QueryContext{GroupBy: []string{"category_id"}})
	_, applied := filler.Apply(result)
	assert.False(t, applied)
	assert.Zero(t, store.Len())
	assert.False(t, store.IsMonthCovered("2024-05"))
}

func TestCacheFiller_ApplyDropsResultPlannedBeforeInvalidate(t *testing.T) {
	src := newFakeSource(testHotel())
	filler, store := newTestFiller(src, 0)

	plan, ok := filler.Plan(month(2024, time.May))
	require.True(t, ok)
	result, err := filler.Fetch(context.Background(), plan)
	require.NoError(t, err)
	require.NotEmpty(t, result.Records)

	store.Reset()
	filler.Invalidate()

	_, applied := filler.Apply(result)
	assert.False(t, applied)
	assert.Zero(t, store.Len())
	assert.False(t, store.IsMonthCovered("2024-05"))

	// A plan made after the reset applies normally
	filled, err := filler.Fill(context.Background(), month(2024, time.May))
	require.NoError(t, err)
	assert.True(t, filled)
	assert.True(t, store.IsMonthCovered("2024-05"))
}

func TestCacheFiller_RefreshRecord(t *testing.T) {
	src := newFakeSource(testHotel())
	filler, store := newTestFiller(src, 0)
	ctx := context.Background()

	_, err := filler.Fill(ctx, month(2024, time.January))
	require.NoError(t, err)

	rec := src.records[0]
	rec.Resource = &model.Ref{ID: 202, Name: "202"}
	src.update(rec)

	got, err := filler.RefreshRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(202), got.Resource.ID)

	stored, ok := store.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, int64(202), stored.Resource.ID)

	_, err = filler.RefreshRecord(ctx, 99999)
	assert.Error(t, err)
}
