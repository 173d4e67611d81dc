package ingestion_engine

import (
	"time"
)

// FileState is the position of one file in the pipeline.
type FileState string

const (
	StatePending   FileState = "pending"
	StateHashed    FileState = "hashed"
	StateSkipped   FileState = "skipped"
	StateChunked   FileState = "chunked"
	StateEmbedded  FileState = "embedded"
	StatePersisted FileState = "persisted"
	StatePartial   FileState = "partial"
	StateFailed    FileState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s FileState) Terminal() bool {
	switch s {
	case StateSkipped, StatePersisted, StatePartial, StateFailed:
		return true
	}
	return false
}

// FileResult is the outcome of processing one file.
type FileResult struct {
	Path        string        `json:"path"`
	State       FileState     `json:"state"`
	ContentHash string        `json:"content_hash,omitempty"`
	Chunks      int           `json:"chunks"`
	Embedded    int           `json:"embedded"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ns"`

	Err error `json:"-"`
}

func (r *FileResult) fail(err error) {
	r.State = StateFailed
	r.Err = err
	r.Error = err.Error()
}

// RunSummary tallies one ingestion run.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Total     int           `json:"total"`
	Persisted int           `json:"persisted"`
	Partial   int           `json:"partial"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	// NotRun counts listed files that were never scheduled because the run
	// was stopped.
	NotRun int          `json:"not_run"`
	Files  []FileResult `json:"files"`
}

func (s *RunSummary) add(r FileResult) {
	switch r.State {
	case StatePersisted:
		s.Persisted++
	case StatePartial:
		s.Partial++
	case StateSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Files = append(s.Files, r)
}

// HasFailures reports whether any file did not fully sync.
func (s *RunSummary) HasFailures() bool {
	return s.Failed > 0 || s.Partial > 0 || s.NotRun > 0
}
