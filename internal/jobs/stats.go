package jobs

import (
	"context"

	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

// CountByStatus returns the number of jobs currently in status. It backs
// the non-spec admin diagnostics surface described in SPEC_FULL.md §13.
func (e *Engine) CountByStatus(ctx context.Context, status store.JobStatus) (int64, error) {
	var count int64
	err := e.db.WithContext(ctx).Model(&store.Job{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
