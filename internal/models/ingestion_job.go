package models

import (
	"time"
)

// Ingestion job lifecycle states.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// IngestionJob is the durable ledger row for one ingestion attempt per county.
// Cursor is the last processed source-side sequence number; a run resumes by
// filtering the source to sequence > Cursor. A county has at most one
// non-complete job at a time, so re-invocation resumes rather than restarts.
type IngestionJob struct {
	StartedAt      time.Time      `json:"startedAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	NullAudit      map[string]int `json:"nullAudit,omitempty"`
	LastError      *string        `json:"lastError,omitempty"`
	MedianLandVal  *float64       `json:"medianLandVal,omitempty"`
	ID             string         `json:"id"`
	County         string         `json:"county"`
	Status         string         `json:"status"`
	Cursor         int64          `json:"cursor"`
	Processed      int            `json:"processed"`
	Failed         int            `json:"failed"`
	WithGeometry   int            `json:"withGeometry"`
	PagesFetched   int            `json:"pagesFetched"`
}

// Complete reports whether the job reached a terminal successful state.
func (j *IngestionJob) Complete() bool {
	return j.Status == JobStatusCompleted
}

// Resumable reports whether a new invocation should pick up this job's cursor
// instead of creating a fresh ledger row. Failed jobs resume too: their
// cursor still marks the last good checkpoint.
func (j *IngestionJob) Resumable() bool {
	return j.Status != JobStatusCompleted
}
