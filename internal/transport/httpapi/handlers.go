package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	"github.com/penwyp/go-booking-timeline/internal/core/model"
	"github.com/penwyp/go-booking-timeline/internal/data/source"
	"github.com/penwyp/go-booking-timeline/internal/util"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	src source.Source
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var sr source.SearchRequest
	if err := sonic.Unmarshal(body, &sr); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := sr.FetchRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := h.src.Fetch(r.Context(), req)
	if err != nil {
		writeSourceError(w, err)
		return
	}
	if resp.Records == nil {
		resp.Records = []model.Record{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) record(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := h.src.FetchOne(r.Context(), id)
	if err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) catalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.src.Catalog(r.Context())
	if err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func writeSourceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, source.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, source.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	util.LogWarn("HTTP API error", util.F("status", status), util.F("error", err.Error()))
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
