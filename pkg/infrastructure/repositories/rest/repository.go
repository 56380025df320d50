package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/domain/repositories"
)

// ErrContract is returned, without any network call, when a request would
// break the backend's input contract
var ErrContract = errors.New("request violates backend contract")

// Repository reads and writes lines, orders and batches through the
// production backend's HTTP API
type Repository struct {
	client *HTTPClient
}

// NewRepository creates a repository over an HTTP client
func NewRepository(client *HTTPClient) *Repository {
	return &Repository{client: client}
}

// Verify interface compliance
var (
	_ repositories.OrderRepository = (*Repository)(nil)
	_ repositories.BatchRepository = (*Repository)(nil)
)

func (r *Repository) fetchLines(ctx context.Context) ([]wireLine, error) {
	var resp linesResponse
	if err := r.client.Call(ctx, http.MethodGet, AcceptedOrdersPath, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

// ListLines returns every production line known to the backend
func (r *Repository) ListLines(ctx context.Context) ([]*entities.ProductionLine, error) {
	lines, err := r.fetchLines(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*entities.ProductionLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.toEntity())
	}
	return out, nil
}

// FetchAvailableOrders returns the accepted, unbatched orders of a line. A
// line missing from the listing has no available orders.
func (r *Repository) FetchAvailableOrders(ctx context.Context, lineID entities.LineID) ([]*entities.AcceptedOrder, error) {
	lines, err := r.fetchLines(ctx)
	if err != nil {
		return nil, err
	}

	orders := []*entities.AcceptedOrder{}
	for _, l := range lines {
		if entities.LineID(l.ID) != lineID {
			continue
		}
		for _, o := range l.Orders {
			orders = append(orders, o.toEntity(lineID))
		}
	}
	return orders, nil
}

// SubmitBatch creates a batch for the submission's orders. The backend does
// not always answer with the new id; a zero BatchID then means accepted
// without id.
func (r *Repository) SubmitBatch(ctx context.Context, submission entities.BatchSubmission) (entities.BatchID, error) {
	if len(submission.Items) == 0 {
		return 0, fmt.Errorf("%w: empty order list", ErrContract)
	}

	req := createBatchRequest{
		LineID: int64(submission.LineID),
		Orders: make([]createBatchItem, len(submission.Items)),
	}
	for i, item := range submission.Items {
		req.Orders[i] = createBatchItem{
			OrderID: int64(item.OrderID),
			Weight:  entities.NewKilograms(item.Weight),
		}
	}

	var resp createBatchResponse
	if err := r.client.Call(ctx, http.MethodPost, CreateBatchPath, req, &resp); err != nil {
		return 0, err
	}
	return entities.BatchID(resp.BatchID), nil
}

// FetchBatchesByState returns the batches in state grouped by line
func (r *Repository) FetchBatchesByState(ctx context.Context, state entities.BatchState) ([]*entities.LineGroup, error) {
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: %q", entities.ErrInvalidState, state)
	}

	var resp linesResponse
	req := batchesByStateRequest{State: state.String()}
	if err := r.client.Call(ctx, http.MethodPost, BatchesByStatePath, req, &resp); err != nil {
		return nil, err
	}

	groups := make([]*entities.LineGroup, 0, len(resp.Lines))
	for _, l := range resp.Lines {
		groups = append(groups, l.toGroup())
	}
	return groups, nil
}

// UpdateBatchState moves the listed batches to target in one call
func (r *Repository) UpdateBatchState(ctx context.Context, batchIDs []entities.BatchID, target entities.BatchState) error {
	if len(batchIDs) == 0 {
		return fmt.Errorf("%w: empty batch id list", ErrContract)
	}
	if !target.IsValid() {
		return fmt.Errorf("%w: %q", entities.ErrInvalidState, target)
	}

	ids := make([]int64, len(batchIDs))
	for i, id := range batchIDs {
		ids[i] = int64(id)
	}

	req := updateStateRequest{BatchIDs: ids, State: target.String()}
	return r.client.Call(ctx, http.MethodPost, UpdateBatchStatePath, req, nil)
}
