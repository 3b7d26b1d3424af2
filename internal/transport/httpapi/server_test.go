package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
	"github.com/penwyp/go-booking-timeline/internal/data/source"
	"github.com/penwyp/go-booking-timeline/internal/testing/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) *source.HTTPSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bookings.json")
	hotel := fixtures.GenerateHotel(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), 6)
	require.NoError(t, fixtures.WriteDataset(path, hotel))

	server := httptest.NewServer(NewRouter(source.NewJSONFileSource(path, time.UTC)))
	t.Cleanup(server.Close)

	client := source.NewHTTPSource(server.URL, time.Second)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestServer_SearchRoundTrip(t *testing.T) {
	client := newTestAPI(t)

	resp, err := client.Fetch(context.Background(), source.FetchRequest{
		Range: model.MonthKey("2024-03").Range(time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, 13, resp.Count)
	require.Len(t, resp.Records, 13)
	for _, rec := range resp.Records {
		assert.Contains(t, rec.Start, "2024-03-")
	}
}

func TestServer_SearchPaging(t *testing.T) {
	client := newTestAPI(t)

	resp, err := client.Fetch(context.Background(), source.FetchRequest{
		Range:   model.MonthKey("2024-03").Range(time.UTC),
		Context: model.QueryContext{Limit: 5, Offset: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 13, resp.Count)
	assert.Len(t, resp.Records, 3)
}

func TestServer_RecordAndCatalog(t *testing.T) {
	client := newTestAPI(t)
	ctx := context.Background()

	rec, err := client.FetchOne(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)

	_, err = client.FetchOne(ctx, 999999)
	assert.ErrorIs(t, err, source.ErrNotFound)

	catalog, err := client.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, "Double", catalog[0].Label)
	assert.Len(t, catalog[0].Resources, 4)
	assert.Equal(t, "Suite", catalog[1].Label)
}

func TestServer_RejectsBadRequests(t *testing.T) {
	server := httptest.NewServer(NewRouter(source.NewJSONFileSource(filepath.Join(t.TempDir(), "missing.json"), time.UTC)))
	defer server.Close()

	resp, err := http.Get(server.URL + "/records/abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(server.URL + "/catalog")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
