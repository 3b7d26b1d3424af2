package cache

import (
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
	"github.com/penwyp/go-booking-timeline/internal/util"
)

// IntervalStore holds every record fetched in a session, keyed by ID, along
// with the set of months whose records are known to be loaded.
// Coverage only grows until Reset.
type IntervalStore struct {
	mu       sync.RWMutex
	records  map[int64]model.Record
	order    []int64
	coverage map[model.MonthKey]time.Time
}

// StoreStats is a point-in-time summary used by status lines and logs
type StoreStats struct {
	Records       int
	CoveredMonths int
	LastMerge     time.Time
}

func NewIntervalStore() *IntervalStore {
	return &IntervalStore{
		records:  make(map[int64]model.Record),
		coverage: make(map[model.MonthKey]time.Time),
	}
}

// MergeRecords inserts or overwrites records by ID and returns how many IDs
// were new. Overwritten records keep their original position.
func (s *IntervalStore) MergeRecords(records []model.Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, r := range records {
		if _, exists := s.records[r.ID]; !exists {
			s.order = append(s.order, r.ID)
			added++
		}
		s.records[r.ID] = r
	}

	if len(records) > 0 {
		util.LogDebug("IntervalStore: merged records",
			util.F("received", len(records)),
			util.F("added", added),
			util.F("total", len(s.records)))
	}
	return added
}

// MarkMonthCovered records that the given months are loaded
func (s *IntervalStore) MarkMonthCovered(keys ...model.MonthKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, k := range keys {
		if _, ok := s.coverage[k]; !ok {
			s.coverage[k] = now
		}
	}
}

func (s *IntervalStore) IsMonthCovered(key model.MonthKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.coverage[key]
	return ok
}

// CoveredMonths returns the covered months in ascending order
func (s *IntervalStore) CoveredMonths() []model.MonthKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]model.MonthKey, 0, len(s.coverage))
	for k := range s.coverage {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// All iterates over a snapshot of the records in first-insertion order
func (s *IntervalStore) All() iter.Seq[model.Record] {
	s.mu.RLock()
	snapshot := make([]model.Record, 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, s.records[id])
	}
	s.mu.RUnlock()

	return func(yield func(model.Record) bool) {
		for _, r := range snapshot {
			if !yield(r) {
				return
			}
		}
	}
}

func (s *IntervalStore) Get(id int64) (model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	return r, ok
}

func (s *IntervalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *IntervalStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last time.Time
	for _, t := range s.coverage {
		if t.After(last) {
			last = t
		}
	}
	return StoreStats{
		Records:       len(s.records),
		CoveredMonths: len(s.coverage),
		LastMerge:     last,
	}
}

// Reset drops all records and coverage. Only a query-context change or a
// dataset reload may call this.
func (s *IntervalStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[int64]model.Record)
	s.order = nil
	s.coverage = make(map[model.MonthKey]time.Time)
	util.LogInfo("IntervalStore: reset")
}
