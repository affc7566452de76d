// Package store persists the append-only record history of conversion jobs.
package store

import (
	"context"

	"github.com/docpress/api/internal/model"
)

// RecordStore appends and queries job records. Implementations never update
// or delete records; readers derive job state by reducing the full history.
type RecordStore interface {
	Append(ctx context.Context, record model.JobRecord) error
	Query(ctx context.Context, jobID string) ([]model.JobRecord, error)
}
