package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/core/verifier"
	"github.com/markdave123-py/ksync/internal/services"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type Searcher interface {
	Search(ctx context.Context, req services.SearchRequest) (*services.SearchResponse, error)
}

type ReportVerifier interface {
	Verify(ctx context.Context) (*verifier.Report, string, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, paths []string) (int, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// KnowledgeHandler serves the /api/knowledge endpoints.
type KnowledgeHandler struct {
	searcher    Searcher
	verifier    ReportVerifier
	enqueuer    Enqueuer
	db          Pinger
	configCheck func() error
	logger      *slog.Logger
}

// NewKnowledgeHandler wires the endpoints. configCheck may be nil; a nil
// enqueuer makes the ingest endpoint answer 503.
func NewKnowledgeHandler(s Searcher, v ReportVerifier, e Enqueuer, db Pinger, configCheck func() error, logger *slog.Logger) *KnowledgeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeHandler{
		searcher:    s,
		verifier:    v,
		enqueuer:    e,
		db:          db,
		configCheck: configCheck,
		logger:      logger.With("component", "api"),
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Config   string `json:"config"`
	Database string `json:"database"`
}

// Health reports configuration presence and database reachability.
func (h *KnowledgeHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Config: "ok", Database: "ok"}
	if h.configCheck != nil {
		if err := h.configCheck(); err != nil {
			resp.Status, resp.Config = "degraded", err.Error()
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		resp.Status, resp.Database = "degraded", err.Error()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Verify runs the coverage audit. A failed audit answers 503 with the report.
func (h *KnowledgeHandler) Verify(w http.ResponseWriter, r *http.Request) {
	rep, url, err := h.verifier.Verify(r.Context())
	if err != nil {
		h.logger.Warn("verify report not archived", "err", err)
	}
	if rep == nil {
		http.Error(w, "verification unavailable", http.StatusInternalServerError)
		return
	}
	if url != "" {
		w.Header().Set("X-Report-URL", url)
	}

	status := http.StatusOK
	if !rep.Passed {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

// Search runs a similarity search.
func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req services.SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.searcher.Search(r.Context(), req)
	switch {
	case errors.Is(err, core.ErrEmptyQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error("search failed", "err", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type ingestRequest struct {
	Paths []string `json:"paths"`
}

type ingestResponse struct {
	Enqueued int `json:"enqueued"`
}

// Ingest queues paths for background ingestion. Paths outside the ingest
// root are rejected.
func (h *KnowledgeHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		http.Error(w, "ingestion workers not running", http.StatusServiceUnavailable)
		return
	}

	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Paths) == 0 {
		http.Error(w, "paths is required", http.StatusBadRequest)
		return
	}

	n, err := h.enqueuer.Enqueue(r.Context(), req.Paths)
	if errors.Is(err, services.ErrInvalidPath) {
		http.Error(w, "paths must be existing files under the ingest root", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Warn("enqueue interrupted", "enqueued", n, "err", err)
		http.Error(w, "enqueue interrupted", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, ingestResponse{Enqueued: n})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
