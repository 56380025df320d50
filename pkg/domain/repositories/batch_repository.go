package repositories

import (
	"context"

	"github.com/vsinha/tandas/pkg/domain/entities"
)

// BatchRepository provides access to production batches held by the backend
type BatchRepository interface {
	// SubmitBatch creates a batch from the submission. Callers never pass an
	// empty order list.
	SubmitBatch(ctx context.Context, submission entities.BatchSubmission) (entities.BatchID, error)

	// FetchBatchesByState returns every batch currently in state, grouped by line
	FetchBatchesByState(ctx context.Context, state entities.BatchState) ([]*entities.LineGroup, error)

	// UpdateBatchState moves all listed batches to target. Callers guarantee
	// batchIDs is non-empty and de-duplicated.
	UpdateBatchState(ctx context.Context, batchIDs []entities.BatchID, target entities.BatchState) error
}
