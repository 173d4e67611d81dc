package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/core/ingestion_engine"
	"github.com/markdave123-py/ksync/internal/core/verifier"
	"github.com/markdave123-py/ksync/internal/models"
	"github.com/markdave123-py/ksync/internal/services"
)

type fakeSearcher struct {
	got services.SearchRequest
	err error
}

func (f *fakeSearcher) Search(_ context.Context, req services.SearchRequest) (*services.SearchResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &services.SearchResponse{
		Query:    req.Query,
		Results:  []models.SearchResult{{Chunk: models.KnowledgeChunk{FilePath: "docs/a.md"}, Score: 0.9}},
		Returned: 1,
		TopScore: 0.9,
	}, nil
}

type fakeVerifier struct {
	report *verifier.Report
	url    string
	err    error
}

func (f fakeVerifier) Verify(context.Context) (*verifier.Report, string, error) {
	return f.report, f.url, f.err
}

type fakeEnqueuer struct {
	paths []string
	err   error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, paths []string) (int, error) {
	f.paths = append(f.paths, paths...)
	return len(paths), f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func serve(h http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		cfgErr error
		dbErr  error
		status int
		want   healthResponse
	}{
		{"healthy", nil, nil, http.StatusOK, healthResponse{"ok", "ok", "ok"}},
		{"missing config", errors.New("DATABASE_URL not set"), nil, http.StatusServiceUnavailable, healthResponse{"degraded", "DATABASE_URL not set", "ok"}},
		{"db down", nil, errors.New("connection refused"), http.StatusServiceUnavailable, healthResponse{"degraded", "ok", "connection refused"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewKnowledgeHandler(nil, nil, nil, fakePinger{tt.dbErr}, func() error { return tt.cfgErr }, nil)
			rec := serve(h.Health, http.MethodGet, "")

			assert.Equal(t, tt.status, rec.Code)
			var got healthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyStatus(t *testing.T) {
	pass := &verifier.Report{Passed: true, Checks: []verifier.Check{{Name: "tables", Passed: true}}}
	fail := &verifier.Report{Passed: false, Checks: []verifier.Check{{Name: "document_count", Reason: "No documents indexed"}}}

	h := NewKnowledgeHandler(nil, fakeVerifier{report: pass, url: "https://b.s3/r.json"}, nil, fakePinger{}, nil, nil)
	rec := serve(h.Verify, http.MethodGet, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://b.s3/r.json", rec.Header().Get("X-Report-URL"))

	h = NewKnowledgeHandler(nil, fakeVerifier{report: fail, err: errors.New("archive report: denied")}, nil, fakePinger{}, nil, nil)
	rec = serve(h.Verify, http.MethodGet, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "No documents indexed")
	assert.Empty(t, rec.Header().Get("X-Report-URL"))
}

func TestSearch(t *testing.T) {
	s := &fakeSearcher{}
	h := NewKnowledgeHandler(s, nil, nil, fakePinger{}, nil, nil)

	rec := serve(h.Search, http.MethodPost, `{"query":"how to deploy","top_k":3,"category":"guide"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.SearchRequest{Query: "how to deploy", TopK: 3, Category: "guide"}, s.got)

	var resp services.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Returned)
	assert.Equal(t, "docs/a.md", resp.Results[0].Chunk.FilePath)
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed body", `{"query":`, nil, http.StatusBadRequest},
		{"unknown field", `{"q":"x"}`, nil, http.StatusBadRequest},
		{"empty query", `{"query":"  "}`, core.ErrEmptyQuery, http.StatusBadRequest},
		{"store failure", `{"query":"x"}`, errors.New("pool closed"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewKnowledgeHandler(&fakeSearcher{err: tt.err}, nil, nil, fakePinger{}, nil, nil)
			rec := serve(h.Search, http.MethodPost, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestIngest(t *testing.T) {
	e := &fakeEnqueuer{}
	h := NewKnowledgeHandler(nil, nil, e, fakePinger{}, nil, nil)

	rec := serve(h.Ingest, http.MethodPost, `{"paths":["docs/a.md","src/b.go"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"enqueued":2}`, rec.Body.String())
	assert.Equal(t, []string{"docs/a.md", "src/b.go"}, e.paths)

	assert.Equal(t, http.StatusBadRequest, serve(h.Ingest, http.MethodPost, `{"paths":[]}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(h.Ingest, http.MethodPost, `nope`).Code)

	e.err = context.Canceled
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.Ingest, http.MethodPost, `{"paths":["x"]}`).Code)
}

func TestIngestWithoutWorkers(t *testing.T) {
	h := NewKnowledgeHandler(nil, nil, nil, fakePinger{}, nil, nil)
	rec := serve(h.Ingest, http.MethodPost, `{"paths":["a"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type recordingIngestor struct{ paths []string }

func (r *recordingIngestor) Run(context.Context, core.FileSource) (*ingestion_engine.RunSummary, error) {
	return &ingestion_engine.RunSummary{}, nil
}

func (r *recordingIngestor) ProcessOne(context.Context, core.FileSource, string) ingestion_engine.FileResult {
	return ingestion_engine.FileResult{}
}

func (r *recordingIngestor) Start(context.Context, int) {}

func (r *recordingIngestor) Enqueue(_ context.Context, p string) error {
	r.paths = append(r.paths, p)
	return nil
}

func TestIngestRejectsPathsOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "repo", "kb")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.md"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(parent, ".env"), []byte("GEMINI_API_KEY=sk-live-123"), 0o644))

	ing := &recordingIngestor{}
	svc := services.NewIngestService(ing, nil, "", root, nil)
	h := NewKnowledgeHandler(nil, nil, svc, fakePinger{}, nil, nil)

	for _, body := range []string{
		`{"paths":["../../.env"]}`,
		`{"paths":["/etc/passwd"]}`,
		`{"paths":["docs/a.md","../../.env"]}`,
	} {
		rec := serve(h.Ingest, http.MethodPost, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, ing.paths)

	rec := serve(h.Ingest, http.MethodPost, `{"paths":["docs/a.md"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{filepath.Join(root, "docs", "a.md")}, ing.paths)
}
