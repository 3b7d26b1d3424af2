package timeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
	"github.com/penwyp/go-booking-timeline/internal/data/source"
	"github.com/penwyp/go-booking-timeline/internal/util"
)

// LoaderStats counts source round trips
type LoaderStats struct {
	Fetches   int64
	Refreshes int64
	Failures  int64
	LastSpan  model.DateRange
	LastFetch time.Time
}

// DataLoader wraps the record and catalog sources and keeps round-trip statistics
type DataLoader struct {
	records  source.RecordSource
	catalogs source.CatalogSource

	fetches   atomic.Int64
	refreshes atomic.Int64
	failures  atomic.Int64

	mu        sync.Mutex
	lastSpan  model.DateRange
	lastFetch time.Time
}

// NewDataLoader creates a loader; catalogs may be nil, in which case the
// catalog is derived from fetched records
func NewDataLoader(records source.RecordSource, catalogs source.CatalogSource) *DataLoader {
	return &DataLoader{records: records, catalogs: catalogs}
}

// Fetch implements source.RecordSource
func (dl *DataLoader) Fetch(ctx context.Context, req source.FetchRequest) (source.FetchResponse, error) {
	dl.fetches.Add(1)
	dl.mu.Lock()
	dl.lastSpan = req.Range
	dl.lastFetch = time.Now()
	dl.mu.Unlock()

	resp, err := dl.records.Fetch(ctx, req)
	if err != nil {
		dl.failures.Add(1)
		return source.FetchResponse{}, err
	}
	util.LogDebug("DataLoader: page loaded",
		util.F("span", req.Range.String()),
		util.F("offset", req.Context.Offset),
		util.F("records", len(resp.Records)),
		util.F("count", resp.Count))
	return resp, nil
}

// FetchOne implements source.RecordSource
func (dl *DataLoader) FetchOne(ctx context.Context, id int64) (model.Record, error) {
	dl.refreshes.Add(1)
	rec, err := dl.records.FetchOne(ctx, id)
	if err != nil {
		dl.failures.Add(1)
		return model.Record{}, err
	}
	return rec, nil
}

// LoadCatalog returns the resource catalog; nil without a catalog source
func (dl *DataLoader) LoadCatalog(ctx context.Context) (model.Catalog, error) {
	if dl.catalogs == nil {
		return nil, nil
	}
	catalog, err := dl.catalogs.Catalog(ctx)
	if err != nil {
		dl.failures.Add(1)
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	util.LogInfo("DataLoader: catalog loaded",
		util.F("groups", len(catalog)),
		util.F("resources", catalog.ResourceCount()))
	return catalog, nil
}

// DeriveCatalog builds a catalog from the categories and resources the
// records reference, in first-seen order
func DeriveCatalog(records []model.Record) model.Catalog {
	var catalog model.Catalog
	groupIdx := make(map[int64]int)
	for _, rec := range records {
		if rec.Category == nil {
			continue
		}
		if _, ok := groupIdx[rec.Category.ID]; !ok {
			groupIdx[rec.Category.ID] = len(catalog)
			catalog = append(catalog, model.ResourceGroup{ID: rec.Category.ID, Label: rec.Category.Name})
		}
	}
	return source.AugmentCatalog(catalog, records)
}

func (dl *DataLoader) Stats() LoaderStats {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return LoaderStats{
		Fetches:   dl.fetches.Load(),
		Refreshes: dl.refreshes.Load(),
		Failures:  dl.failures.Load(),
		LastSpan:  dl.lastSpan,
		LastFetch: dl.lastFetch,
	}
}
