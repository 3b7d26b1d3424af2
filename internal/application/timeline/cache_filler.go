package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/cache"
	"github.com/penwyp/go-booking-timeline/internal/core/model"
	timelinepkg "github.com/penwyp/go-booking-timeline/internal/core/timeline"
	"github.com/penwyp/go-booking-timeline/internal/data/source"
	"github.com/penwyp/go-booking-timeline/internal/util"
)

// ErrFetchFailed wraps every failed cache fill
var ErrFetchFailed = errors.New("fetch failed")

// FillPlan is a single contiguous fetch over whole months
type FillPlan struct {
	Span    model.DateRange
	Months  []model.MonthKey
	Missing []model.MonthKey
	// Epoch is the store epoch the plan was made against
	Epoch uint64
}

// FillResult is what a completed fetch brings back
type FillResult struct {
	Plan     FillPlan
	Records  []model.Record
	Count    int
	QueryKey string
	Epoch    uint64
	Elapsed  time.Duration
}

// CacheFiller decides which months must be fetched and loads them into the store
type CacheFiller struct {
	store    *cache.IntervalStore
	engine   *timelinepkg.QueryEngine
	source   source.RecordSource
	pageSize int

	mu    sync.RWMutex
	query model.QueryContext
	epoch atomic.Uint64
}

func NewCacheFiller(store *cache.IntervalStore, engine *timelinepkg.QueryEngine, src source.RecordSource, query model.QueryContext, pageSize int) *CacheFiller {
	return &CacheFiller{
		store:    store,
		engine:   engine,
		source:   src,
		pageSize: pageSize,
		query:    query,
	}
}

// SetQueryContext switches the context used for subsequent fetches
func (f *CacheFiller) SetQueryContext(qc model.QueryContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query = qc
}

// Invalidate starts a new store epoch. Fetches planned before it are
// dropped by Apply. Call it together with a store reset.
func (f *CacheFiller) Invalidate() {
	f.epoch.Add(1)
}

func (f *CacheFiller) QueryContext() model.QueryContext {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.query
}

// MissingMonths lists the months of r that are not covered, or covered
// but without any cached record touching them
func (f *CacheFiller) MissingMonths(r model.DateRange) []model.MonthKey {
	var missing []model.MonthKey
	for _, k := range r.Months() {
		if !f.store.IsMonthCovered(k) || !f.engine.MonthHasAnyOverlap(k) {
			missing = append(missing, k)
		}
	}
	return missing
}

// IsUsable reports whether every month of r is covered. An empty covered
// month is a valid answer here.
func (f *CacheFiller) IsUsable(r model.DateRange) bool {
	for _, k := range r.Months() {
		if !f.store.IsMonthCovered(k) {
			return false
		}
	}
	return true
}

// Plan returns the fetch needed to make r complete, if any
func (f *CacheFiller) Plan(r model.DateRange) (FillPlan, bool) {
	return f.planFor(f.MissingMonths(r))
}

func (f *CacheFiller) planFor(missing []model.MonthKey) (FillPlan, bool) {
	if len(missing) == 0 {
		return FillPlan{}, false
	}
	loc := f.engine.Location()
	span := model.DateRange{
		Start: missing[0].Start(loc),
		End:   missing[len(missing)-1].End(loc),
	}
	return FillPlan{Span: span, Months: span.Months(), Missing: missing, Epoch: f.epoch.Load()}, true
}

// Fetch runs the single fetch of a plan, paging through the source.
// It never touches the store.
func (f *CacheFiller) Fetch(ctx context.Context, plan FillPlan) (FillResult, error) {
	qc := f.QueryContext()
	started := time.Now()

	limit := qc.Limit
	if f.pageSize > 0 {
		limit = f.pageSize
	}

	var (
		records []model.Record
		total   int
		offset  = qc.Offset
	)
	for {
		req := source.FetchRequest{Range: plan.Span, Context: qc}
		req.Context.Limit = limit
		req.Context.Offset = offset

		resp, err := f.source.Fetch(ctx, req)
		if err != nil {
			util.LogError("CacheFiller: fetch failed",
				util.F("span", plan.Span.String()),
				util.F("error", err.Error()))
			return FillResult{}, fmt.Errorf("%w for %s: %w", ErrFetchFailed, plan.Span, err)
		}
		records = append(records, resp.Records...)
		total = resp.Count
		offset += len(resp.Records)

		if limit == 0 || len(resp.Records) == 0 || offset-qc.Offset >= total {
			break
		}
	}

	result := FillResult{
		Plan:     plan,
		Records:  records,
		Count:    total,
		QueryKey: qc.Key(),
		Epoch:    plan.Epoch,
		Elapsed:  time.Since(started),
	}
	util.LogInfo("CacheFiller: fetched span",
		util.F("span", plan.Span.String()),
		util.F("missing", len(plan.Missing)),
		util.F("records", len(records)),
		util.F("elapsed", result.Elapsed.String()))
	return result, nil
}

// Apply merges a fetch result and marks every month of its span covered.
// Results fetched under a different query context, or planned before the
// last Invalidate, are dropped.
func (f *CacheFiller) Apply(result FillResult) (int, bool) {
	if result.QueryKey != f.QueryContext().Key() {
		util.LogDebug("CacheFiller: dropping result for previous query context",
			util.F("span", result.Plan.Span.String()))
		return 0, false
	}
	if result.Epoch != f.epoch.Load() {
		util.LogDebug("CacheFiller: dropping result planned before cache reset",
			util.F("span", result.Plan.Span.String()),
			util.F("epoch", result.Epoch))
		return 0, false
	}
	added := f.store.MergeRecords(result.Records)
	f.store.MarkMonthCovered(result.Plan.Months...)
	return added, true
}

// Fill makes r complete synchronously. It reports whether a fetch was issued.
func (f *CacheFiller) Fill(ctx context.Context, r model.DateRange) (bool, error) {
	plan, ok := f.Plan(r)
	if !ok {
		return false, nil
	}
	result, err := f.Fetch(ctx, plan)
	if err != nil {
		return true, err
	}
	f.Apply(result)
	return true, nil
}

// AddMonths loads every month from start's month through stop's month that
// is not covered yet. Covered months are never refetched here.
func (f *CacheFiller) AddMonths(ctx context.Context, start, stop time.Time) (bool, error) {
	return f.cover(ctx, model.MonthsBetween(start, stop))
}

// CoverRange loads the uncovered months of r
func (f *CacheFiller) CoverRange(ctx context.Context, r model.DateRange) (bool, error) {
	return f.cover(ctx, r.Months())
}

func (f *CacheFiller) cover(ctx context.Context, keys []model.MonthKey) (bool, error) {
	var missing []model.MonthKey
	for _, k := range keys {
		if !f.store.IsMonthCovered(k) {
			missing = append(missing, k)
		}
	}
	plan, ok := f.planFor(missing)
	if !ok {
		return false, nil
	}
	result, err := f.Fetch(ctx, plan)
	if err != nil {
		return true, err
	}
	f.Apply(result)
	return true, nil
}

// RefreshRecord reloads one record and replaces it in the store
func (f *CacheFiller) RefreshRecord(ctx context.Context, id int64) (model.Record, error) {
	rec, err := f.source.FetchOne(ctx, id)
	if err != nil {
		return model.Record{}, fmt.Errorf("failed to refresh record %d: %w", id, err)
	}
	f.store.MergeRecords([]model.Record{rec})
	util.LogDebugf("CacheFiller: refreshed record %d", id)
	return rec, nil
}
