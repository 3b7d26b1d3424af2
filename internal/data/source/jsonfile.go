package source

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-booking-timeline/internal/core/model"
	"github.com/penwyp/go-booking-timeline/internal/util"
)

// JSONFileSource serves a Dataset file. The file is read on every call so
// edits show up without a restart.
type JSONFileSource struct {
	path string
	loc  *time.Location
}

func NewJSONFileSource(path string, loc *time.Location) *JSONFileSource {
	if loc == nil {
		loc = time.Local
	}
	return &JSONFileSource{path: path, loc: loc}
}

// LoadDataset reads and decodes a dataset file
func LoadDataset(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("%w: failed to read dataset %s: %v", ErrUnavailable, path, err)
	}
	var ds Dataset
	if err := sonic.Unmarshal(data, &ds); err != nil {
		return Dataset{}, fmt.Errorf("%w: failed to parse dataset %s: %v", ErrUnavailable, path, err)
	}
	return ds, nil
}

// SaveDataset writes a dataset atomically
func SaveDataset(path string, ds Dataset) error {
	data, err := sonic.ConfigStd.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename dataset: %w", err)
	}
	return nil
}

func (s *JSONFileSource) Name() string {
	return TypeJSON
}

func (s *JSONFileSource) Path() string {
	return s.path
}

func (s *JSONFileSource) Close() error {
	return nil
}

func (s *JSONFileSource) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	if err := ctx.Err(); err != nil {
		return FetchResponse{}, err
	}
	ds, err := LoadDataset(s.path)
	if err != nil {
		return FetchResponse{}, err
	}

	var matched []model.Record
	for _, rec := range ds.Records {
		rec.Start, rec.Stop = model.NormalizeStayTimes(rec.Start, rec.Stop)
		if !matchesDomain(rec, req.Range, s.loc) || !MatchConditions(rec, req.Context.Filters) {
			continue
		}
		matched = append(matched, rec)
	}

	s.sortRecords(matched, req.Context.GroupBy)

	page := paginate(matched, req.Context.Limit, req.Context.Offset)
	records := make([]model.Record, 0, len(page))
	for _, rec := range page {
		records = append(records, project(rec, req.Context.Fields))
	}

	util.LogDebug("JSONFileSource: fetched bookings",
		util.F("range", req.Range.String()),
		util.F("count", len(matched)),
		util.F("page", len(records)))
	return FetchResponse{Count: len(matched), Records: records}, nil
}

// sortRecords orders by the group-by fields, then start, then ID
func (s *JSONFileSource) sortRecords(records []model.Record, groupBy []string) {
	starts := make(map[int64]time.Time, len(records))
	for _, r := range records {
		if iv, err := r.Interval(s.loc); err == nil {
			starts[r.ID] = iv.Start
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		for _, g := range groupBy {
			va, vb := fieldValue(a, g), fieldValue(b, g)
			if va != vb {
				return va < vb
			}
		}
		if !starts[a.ID].Equal(starts[b.ID]) {
			return starts[a.ID].Before(starts[b.ID])
		}
		return a.ID < b.ID
	})
}

func (s *JSONFileSource) FetchOne(ctx context.Context, id int64) (model.Record, error) {
	ds, err := LoadDataset(s.path)
	if err != nil {
		return model.Record{}, err
	}
	for _, rec := range ds.Records {
		if rec.ID == id {
			rec.Start, rec.Stop = model.NormalizeStayTimes(rec.Start, rec.Stop)
			return rec, nil
		}
	}
	return model.Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
}

func (s *JSONFileSource) Catalog(ctx context.Context) (model.Catalog, error) {
	ds, err := LoadDataset(s.path)
	if err != nil {
		return nil, err
	}
	return AugmentCatalog(ds.Catalog, ds.Records), nil
}
