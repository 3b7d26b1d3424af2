// Package state persists small pieces of view state between runs.
package state

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/peterbourgon/diskv/v3"
)

// Keys stored by FocusStore
const (
	KeyFocusDate = "focus_date"
	KeyScale     = "scale"
)

// ErrNotPersisted is returned when no value has been saved yet
var ErrNotPersisted = errors.New("no persisted value")

// FocusStore keeps the timeline focus date as an ISO-8601 date on disk
type FocusStore struct {
	d   *diskv.Diskv
	loc *time.Location
}

// NewFocusStore stores values as flat files under baseDir
func NewFocusStore(baseDir string, loc *time.Location) *FocusStore {
	if loc == nil {
		loc = time.Local
	}
	return &FocusStore{
		d: diskv.New(diskv.Options{
			BasePath:     baseDir,
			Transform:    func(string) []string { return []string{} },
			CacheSizeMax: 64 * 1024,
		}),
		loc: loc,
	}
}

// LoadFocus returns the persisted focus date at midnight in the store's location
func (s *FocusStore) LoadFocus() (time.Time, error) {
	raw, err := s.read(KeyFocusDate)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid persisted focus date %q: %w", raw, err)
	}
	return t, nil
}

// SaveFocus persists the date part of t
func (s *FocusStore) SaveFocus(t time.Time) error {
	return s.d.WriteString(KeyFocusDate, t.In(s.loc).Format(time.DateOnly))
}

// LoadScale returns the persisted timeline scale name
func (s *FocusStore) LoadScale() (string, error) {
	return s.read(KeyScale)
}

func (s *FocusStore) SaveScale(scale string) error {
	return s.d.WriteString(KeyScale, scale)
}

// Clear removes every persisted value
func (s *FocusStore) Clear() error {
	return s.d.EraseAll()
}

func (s *FocusStore) read(key string) (string, error) {
	if !s.d.Has(key) {
		return "", ErrNotPersisted
	}
	val, err := s.d.Read(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotPersisted
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return strings.TrimSpace(string(val)), nil
}
