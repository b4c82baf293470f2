package core

import (
	"time"

	"github.com/google/uuid"
)

// Record is an append-only performance log for one pipeline stage. The core
// only writes to it; reporting reads it after the fact.
type Record struct {
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewRecord starts a record for the named operation.
func NewRecord(operation string) *Record {
	return &Record{
		ID:        uuid.New().String(),
		Operation: operation,
		StartedAt: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// Set attaches a metadata value.
func (r *Record) Set(key string, value any) {
	r.Metadata[key] = value
}

// Complete marks the record finished, recording the error if any.
func (r *Record) Complete(err error) {
	r.EndedAt = time.Now()
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration returns the elapsed time, live if the record is still open.
func (r *Record) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.EndedAt.Sub(r.StartedAt)
}
