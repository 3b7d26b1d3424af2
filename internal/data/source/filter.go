package source

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
	"github.com/penwyp/go-booking-timeline/internal/util"
)

// Supported condition operators
const (
	OpEq    = "="
	OpNe    = "!="
	OpIn    = "in"
	OpNotIn = "not in"
	OpILike = "ilike"
)

// Built-in condition fields; anything else is looked up in the payload
const (
	FieldID         = "id"
	FieldResourceID = "resource_id"
	FieldCategoryID = "category_id"
)

// matchesDomain applies the overlap domain start <= end AND stop >= start
func matchesDomain(r model.Record, rng model.DateRange, loc *time.Location) bool {
	iv, err := r.Interval(loc)
	if err != nil {
		util.LogDebugf("source: skipping record %d with unparseable boundaries", r.ID)
		return false
	}
	return !iv.Start.After(rng.End) && !iv.End.Before(rng.Start)
}

// MatchConditions reports whether a record satisfies every condition
func MatchConditions(r model.Record, conds []model.Condition) bool {
	for _, c := range conds {
		if !matchCondition(r, c) {
			return false
		}
	}
	return true
}

func matchCondition(r model.Record, c model.Condition) bool {
	actual := fieldValue(r, c.Field)
	switch strings.ToLower(c.Op) {
	case OpEq, "":
		return actual == stringify(c.Value)
	case OpNe:
		return actual != stringify(c.Value)
	case OpIn:
		return slices.Contains(stringList(c.Value), actual)
	case OpNotIn:
		return !slices.Contains(stringList(c.Value), actual)
	case OpILike:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(stringify(c.Value)))
	default:
		util.LogWarnf("source: unsupported operator %q on field %s", c.Op, c.Field)
		return false
	}
}

func fieldValue(r model.Record, field string) string {
	switch field {
	case FieldID:
		return fmt.Sprint(r.ID)
	case FieldResourceID:
		if r.Resource == nil {
			return "0"
		}
		return fmt.Sprint(r.Resource.ID)
	case FieldCategoryID:
		if r.Category == nil {
			return "0"
		}
		return fmt.Sprint(r.Category.ID)
	default:
		return r.StringField(field)
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprint(int64(f))
	}
	return fmt.Sprint(v)
}

func stringList(v any) []string {
	switch vals := v.(type) {
	case []any:
		out := make([]string, 0, len(vals))
		for _, x := range vals {
			out = append(out, stringify(x))
		}
		return out
	case []string:
		return vals
	default:
		return []string{stringify(v)}
	}
}

// project keeps only the requested payload fields. An empty list keeps all.
func project(r model.Record, fields []string) model.Record {
	if len(fields) == 0 || r.Fields == nil {
		return r
	}
	kept := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := r.Fields[f]; ok {
			kept[f] = v
		}
	}
	r.Fields = kept
	return r
}

// paginate applies limit/offset; limit 0 means no limit
func paginate(records []model.Record, limit, offset int) []model.Record {
	if offset >= len(records) {
		return nil
	}
	if offset > 0 {
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

// AugmentCatalog appends resources referenced by bookings but missing from
// the catalog to their category group, in first-seen order.
func AugmentCatalog(catalog model.Catalog, records []model.Record) model.Catalog {
	known := make(map[int64]bool, catalog.ResourceCount())
	groupIdx := make(map[int64]int, len(catalog))
	out := make(model.Catalog, len(catalog))
	for i, g := range catalog {
		g.Resources = slices.Clone(g.Resources)
		out[i] = g
		groupIdx[g.ID] = i
		for _, r := range g.Resources {
			known[r.ID] = true
		}
	}

	for _, rec := range records {
		if !rec.HasResource() || known[rec.Resource.ID] || rec.Category == nil {
			continue
		}
		idx, ok := groupIdx[rec.Category.ID]
		if !ok {
			continue
		}
		label := rec.Resource.Name
		if label == "" {
			label = fmt.Sprint(rec.Resource.ID)
		}
		out[idx].Resources = append(out[idx].Resources, model.Ref{ID: rec.Resource.ID, Name: label})
		known[rec.Resource.ID] = true
	}
	return out
}
