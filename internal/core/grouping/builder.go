// Package grouping partitions records into timeline rows by resource.
package grouping

import (
	"slices"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
)

// Build turns records into rows following the catalog order. Each catalog
// group contributes an unassigned row (when it has any record) followed by
// one row per sub-resource, empty or not. Placeholder sub-resources without
// an ID or a label get no row.
//
// A record without a resource lands in the unassigned row of its own
// category, or of every group when it has no category either. Records on
// resources missing from the catalog are not shown.
func Build(records []model.Record, catalog model.Catalog) []model.Group {
	byResource := make(map[int64][]int64)
	byCategory := make(map[int64][]int64)
	var uncategorized []int64

	for _, r := range records {
		switch {
		case r.HasResource():
			byResource[r.Resource.ID] = append(byResource[r.Resource.ID], r.ID)
		case r.Category != nil && r.Category.ID != 0:
			byCategory[r.Category.ID] = append(byCategory[r.Category.ID], r.ID)
		default:
			uncategorized = append(uncategorized, r.ID)
		}
	}

	var groups []model.Group
	for _, cg := range catalog {
		unassigned := mergeInOrder(records, byCategory[cg.ID], uncategorized)
		if len(unassigned) > 0 {
			groups = append(groups, model.Group{
				CategoryID:    cg.ID,
				CategoryLabel: cg.Label,
				Unassigned:    true,
				RecordIDs:     unassigned,
			})
		}

		for _, res := range cg.Resources {
			// placeholder entries
			if res.ID == 0 || res.Name == "" {
				continue
			}
			ids := slices.Clone(byResource[res.ID])
			if ids == nil {
				ids = []int64{}
			}
			groups = append(groups, model.Group{
				CategoryID:    cg.ID,
				CategoryLabel: cg.Label,
				ResourceID:    res.ID,
				ResourceLabel: res.Name,
				RecordIDs:     ids,
			})
		}
	}
	return groups
}

// mergeInOrder combines two ID lists keeping the order of records. The
// result never aliases a or b.
func mergeInOrder(records []model.Record, a, b []int64) []int64 {
	if len(a) == 0 {
		return slices.Clone(b)
	}
	if len(b) == 0 {
		return slices.Clone(a)
	}
	want := make(map[int64]struct{}, len(a)+len(b))
	for _, id := range a {
		want[id] = struct{}{}
	}
	for _, id := range b {
		want[id] = struct{}{}
	}
	out := make([]int64, 0, len(want))
	for _, r := range records {
		if _, ok := want[r.ID]; ok {
			out = append(out, r.ID)
		}
	}
	return out
}
