// Package history persists a record of past executions for auditing and the
// CLI history listing. The workspace itself stays disposable; history lives
// in its own database and survives Reset.
package history

import (
	"context"
	"time"
)

// Record is one stored execution.
type Record struct {
	ID           string        `json:"id"`
	Code         string        `json:"code"`
	Stdout       string        `json:"stdout"`
	Stderr       string        `json:"stderr"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	FileCount    int           `json:"file_count"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Failed reports whether the execution ended in a fault.
func (r *Record) Failed() bool { return r.ErrorKind != "" }

// ListOptions controls pagination for ListExecutions.
type ListOptions struct {
	Limit  int
	Offset int
}

// Store is the persistence interface for execution records.
type Store interface {
	// SaveExecution inserts a new record. The ID field must be set by the
	// caller; CreatedAt is set by the store.
	SaveExecution(ctx context.Context, r *Record) error

	// GetExecution returns a record by ID or unique ID prefix.
	GetExecution(ctx context.Context, id string) (*Record, error)

	// ListExecutions returns records ordered by created_at descending.
	ListExecutions(ctx context.Context, opts ListOptions) ([]Record, error)

	// Prune deletes all but the newest keep records.
	Prune(ctx context.Context, keep int) error

	// Close releases resources.
	Close() error
}
