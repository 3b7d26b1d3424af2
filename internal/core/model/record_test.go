package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		expect  time.Time
		wantErr bool
	}{
		{"sql datetime", "2024-03-10 16:00:00", time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC), false},
		{"rfc3339", "2024-03-10T16:00:00Z", time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC), false},
		{"date only", "2024-03-10", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), false},
		{"empty", "", time.Time{}, true},
		{"garbage", "next tuesday", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.value, time.UTC)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedTimestamp)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expect.Equal(got), "got %s", got)
		})
	}
}

func TestRecord_Interval(t *testing.T) {
	r := Record{ID: 7, Start: "2024-03-10 16:00:00", Stop: "2024-03-12 14:00:00"}

	iv, err := r.Interval(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 46*time.Hour, iv.End.Sub(iv.Start))

	r.Stop = "soon"
	_, err = r.Interval(time.UTC)
	assert.ErrorIs(t, err, ErrMalformedTimestamp)
	assert.Contains(t, err.Error(), "record 7 stop")
}

func TestRecord_DisplayName(t *testing.T) {
	assert.Equal(t, "Smith family", Record{ID: 1, Fields: map[string]any{
		FieldReferenceName: "Smith family",
		FieldFolioNumber:   "F-001",
	}}.DisplayName())
	assert.Equal(t, "F-001", Record{ID: 1, Fields: map[string]any{FieldFolioNumber: "F-001"}}.DisplayName())
	assert.Equal(t, "#42", Record{ID: 42}.DisplayName())
}

func TestNormalizeStayTimes(t *testing.T) {
	start, stop := NormalizeStayTimes("2024-03-10", "2024-03-12")
	assert.Equal(t, "2024-03-10 16:00:00", start)
	assert.Equal(t, "2024-03-12 14:00:00", stop)

	start, stop = NormalizeStayTimes("2024-03-10 09:30:00", "2024-03-12T11:00:00Z")
	assert.Equal(t, "2024-03-10 09:30:00", start)
	assert.Equal(t, "2024-03-12T11:00:00Z", stop)
}

func TestQueryContext_Key(t *testing.T) {
	a := QueryContext{Filters: []Condition{{Field: "state", Op: "=", Value: "confirmed"}}, Limit: 80}
	b := QueryContext{Filters: []Condition{{Field: "state", Op: "=", Value: "confirmed"}}, Limit: 80}
	c := QueryContext{Filters: []Condition{{Field: "state", Op: "=", Value: "cancelled"}}, Limit: 80}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestCatalog_Lookup(t *testing.T) {
	catalog := Catalog{
		{ID: 1, Label: "Double", Resources: []Ref{{ID: 101, Name: "101"}, {ID: 102, Name: "102"}}},
		{ID: 2, Label: "Suite", Resources: []Ref{{ID: 201, Name: "201"}}},
	}

	g, r, ok := catalog.Lookup(201)
	require.True(t, ok)
	assert.Equal(t, "Suite", g.Label)
	assert.Equal(t, "201", r.Name)

	_, _, ok = catalog.Lookup(999)
	assert.False(t, ok)
	assert.Equal(t, 3, catalog.ResourceCount())
}
