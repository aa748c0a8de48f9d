// Package lineage writes the append-only 5-layer identity chain every
// terminal external-agent invocation produces (spec.md §3, §4.7 step 11,
// §4.9). Writes here happen after the invocation row is already terminal,
// on a detached context, and must never fail the request that triggered them.
package lineage

import (
	"context"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/model"
)

// Writer persists InvocationLineage rows.
type Writer struct {
	db *db.Queries
}

func NewWriter(queries *db.Queries) *Writer {
	return &Writer{db: queries}
}

// Write appends one lineage row. Callers on the request path should invoke
// this on a detached context with a short timeout after the invocation row
// is already terminal, so a client cancellation doesn't abort the write and
// a failing lineage write never fails the caller's response.
func (w *Writer) Write(ctx context.Context, l *model.InvocationLineage) error {
	return w.db.CreateLineage(ctx, l)
}

// Get fetches the lineage row for a terminal invocation.
func (w *Writer) Get(ctx context.Context, invocationID uuid.UUID) (*model.InvocationLineage, error) {
	return w.db.GetLineageByInvocationID(ctx, invocationID)
}
