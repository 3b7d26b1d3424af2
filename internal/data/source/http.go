package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-booking-timeline/internal/core/model"
	"github.com/penwyp/go-booking-timeline/internal/util"
)

// Paths of the booking API
const (
	PathSearch  = "/records/search"
	PathRecord  = "/records/{id}"
	PathCatalog = "/catalog"
)

// SearchRequest is the wire form of a FetchRequest
type SearchRequest struct {
	Start   string            `json:"start"`
	End     string            `json:"end"`
	Filters []model.Condition `json:"filters,omitempty"`
	GroupBy []string          `json:"group_by,omitempty"`
	Fields  []string          `json:"fields,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Offset  int               `json:"offset,omitempty"`
}

// NewSearchRequest encodes a fetch request for the wire
func NewSearchRequest(req FetchRequest) SearchRequest {
	return SearchRequest{
		Start:   req.Range.Start.Format(time.RFC3339),
		End:     req.Range.End.Format(time.RFC3339),
		Filters: req.Context.Filters,
		GroupBy: req.Context.GroupBy,
		Fields:  req.Context.Fields,
		Limit:   req.Context.Limit,
		Offset:  req.Context.Offset,
	}
}

// FetchRequest decodes the wire form
func (sr SearchRequest) FetchRequest() (FetchRequest, error) {
	start, err := time.Parse(time.RFC3339, sr.Start)
	if err != nil {
		return FetchRequest{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, sr.End)
	if err != nil {
		return FetchRequest{}, fmt.Errorf("invalid end: %w", err)
	}
	return FetchRequest{
		Range: model.NewDateRange(start, end),
		Context: model.QueryContext{
			Filters: sr.Filters,
			GroupBy: sr.GroupBy,
			Fields:  sr.Fields,
			Limit:   sr.Limit,
			Offset:  sr.Offset,
		},
	}, nil
}

// HTTPSource reads bookings from a remote booking API
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *HTTPSource) Name() string {
	return TypeHTTP
}

func (s *HTTPSource) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *HTTPSource) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	body, err := sonic.Marshal(NewSearchRequest(req))
	if err != nil {
		return FetchResponse{}, fmt.Errorf("failed to encode search request: %w", err)
	}

	var resp FetchResponse
	if err := s.do(ctx, http.MethodPost, PathSearch, bytes.NewReader(body), &resp); err != nil {
		return FetchResponse{}, err
	}
	return resp, nil
}

func (s *HTTPSource) FetchOne(ctx context.Context, id int64) (model.Record, error) {
	path := strings.Replace(PathRecord, "{id}", url.PathEscape(strconv.FormatInt(id, 10)), 1)
	var rec model.Record
	if err := s.do(ctx, http.MethodGet, path, nil, &rec); err != nil {
		return model.Record{}, err
	}
	return rec, nil
}

func (s *HTTPSource) Catalog(ctx context.Context) (model.Catalog, error) {
	var catalog model.Catalog
	if err := s.do(ctx, http.MethodGet, PathCatalog, nil, &catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

func (s *HTTPSource) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		util.LogDebugf("HTTPSource: %s %s failed: %v", method, path, err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: unexpected status code %d from %s", ErrUnavailable, resp.StatusCode, path)
	}

	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to parse response from %s: %v", ErrUnavailable, path, err)
	}
	return nil
}
