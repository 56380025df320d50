package repositories

import (
	"context"

	"github.com/vsinha/tandas/pkg/domain/entities"
)

// OrderRepository provides read access to production lines and the orders
// that are accepted and still waiting for a batch
type OrderRepository interface {
	ListLines(ctx context.Context) ([]*entities.ProductionLine, error)

	// FetchAvailableOrders returns the orders eligible for batching on a line.
	// An empty slice is a valid answer.
	FetchAvailableOrders(ctx context.Context, lineID entities.LineID) ([]*entities.AcceptedOrder, error)
}
