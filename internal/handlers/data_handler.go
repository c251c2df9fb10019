package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"familyphotos/internal/schema"
)

const (
	containsPrefix = "contains."
	sseHeartbeat   = 25 * time.Second
)

// DataHandler exposes every registered model under /api/data/{model}
type DataHandler struct {
	store     *schema.Store
	logger    *zap.Logger
	heartbeat time.Duration
}

// NewDataHandler creates a new data handler
func NewDataHandler(store *schema.Store, logger *zap.Logger) *DataHandler {
	return &DataHandler{store: store, logger: logger, heartbeat: sseHeartbeat}
}

// Routes mounts the resource routes
func (h *DataHandler) Routes(r chi.Router) {
	r.Get("/", h.Models)
	r.Route("/{model}", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/batch", h.BatchGet)
		r.Get("/observe", h.Observe)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// Models lists the registered model names
func (h *DataHandler) Models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.ModelNames())
}

// Create inserts the JSON body as a new record
func (h *DataHandler) Create(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidBody, "", err)
		return
	}
	rec, err := res.CreateJSON(r.Context(), body)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// List returns the records matching the query filter
func (h *DataHandler) List(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	filter, limit, err := parseListQuery(r.URL.Query())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	recs, err := res.ListRecords(r.Context(), filter, limit)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// BatchGet returns the records named by repeated id parameters
func (h *DataHandler) BatchGet(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	recs, err := res.BatchGetRecords(r.Context(), r.URL.Query()["id"])
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// Get returns one record
func (h *DataHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	rec, err := res.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Update applies a JSON patch object to one record
func (h *DataHandler) Update(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	var patch schema.Patch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.UseNumber()
	if err := dec.Decode(&patch); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidBody, "", err)
		return
	}
	rec, err := res.UpdateRecord(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Delete removes one record. Related records are left in place.
func (h *DataHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	if err := res.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Observe streams the matching set as server-sent events: once on connect and
// again after every change. The stream ends when the client disconnects.
func (h *DataHandler) Observe(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	filter, limit, err := parseListQuery(r.URL.Query())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	sub, err := res.ObserveRecords(r.Context(), filter, limit)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	_ = rc.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, ok := <-sub.Updates():
			if !ok {
				return
			}
			data, err := json.Marshal(snapshot)
			if err != nil {
				h.logger.Error("failed to encode snapshot", zap.String("model", res.Model().Name), zap.Error(err))
				return
			}
			var buf bytes.Buffer
			fmt.Fprintf(&buf, "event: snapshot\ndata: %s\n\n", data)
			if _, err := w.Write(buf.Bytes()); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (h *DataHandler) resource(w http.ResponseWriter, r *http.Request) (schema.Resource, bool) {
	name := chi.URLParam(r, "model")
	res, ok := h.store.Resource(name)
	if !ok {
		respondWithError(w, h.logger, http.StatusNotFound, "unknown model "+name, "", nil)
		return nil, false
	}
	return res, true
}

// parseListQuery turns ?field=value into equality conditions, ?contains.field=value
// into contains conditions and reads ?limit
func parseListQuery(q url.Values) (schema.Filter, int, error) {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		filter schema.Filter
		limit  int
	)
	for _, key := range keys {
		for _, value := range q[key] {
			switch {
			case key == "limit":
				n, err := strconv.Atoi(value)
				if err != nil || n < 0 {
					return nil, 0, &schema.ValidationError{Field: "limit", Message: "must be a non-negative integer"}
				}
				limit = n
			case strings.HasPrefix(key, containsPrefix):
				filter = append(filter, schema.Contains(strings.TrimPrefix(key, containsPrefix), value))
			default:
				filter = append(filter, schema.Eq(key, value))
			}
		}
	}
	return filter, limit, nil
}
