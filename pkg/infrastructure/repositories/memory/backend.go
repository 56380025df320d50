package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/domain/repositories"
)

var (
	// ErrNotFound is returned for unknown lines, orders and batches
	ErrNotFound = errors.New("not found")
	// ErrRejected is returned when a request breaks a backend rule
	ErrRejected = errors.New("rejected")
)

// Backend is an in-process stand-in for the production backend. It keeps
// lines, the pool of accepted orders waiting for a batch, and batches.
//
// Batches start planificada. Moving a batch to en_progreso takes its line out
// of service; the line is back in service once it has no batch in progress.
type Backend struct {
	mu sync.RWMutex

	lines     map[entities.LineID]*entities.ProductionLine
	lineOrder []entities.LineID

	orders     map[entities.OrderID]*entities.AcceptedOrder
	orderOrder []entities.OrderID

	batches     map[entities.BatchID]*entities.Batch
	nextBatchID entities.BatchID
	sequences   map[entities.LineID]int

	now func() time.Time
}

// NewBackend creates an empty in-memory backend
func NewBackend() *Backend {
	return &Backend{
		lines:       make(map[entities.LineID]*entities.ProductionLine),
		orders:      make(map[entities.OrderID]*entities.AcceptedOrder),
		batches:     make(map[entities.BatchID]*entities.Batch),
		nextBatchID: 1,
		sequences:   make(map[entities.LineID]int),
		now:         time.Now,
	}
}

// Verify interface compliance
var (
	_ repositories.OrderRepository = (*Backend)(nil)
	_ repositories.BatchRepository = (*Backend)(nil)
)

// SetClock replaces the clock used to stamp batches
func (b *Backend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// AddLine registers a production line
func (b *Backend) AddLine(line *entities.ProductionLine) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.lines[line.ID]; exists {
		return fmt.Errorf("line %d already exists", line.ID)
	}
	l := *line
	b.lines[line.ID] = &l
	b.lineOrder = append(b.lineOrder, line.ID)
	return nil
}

// AddOrder puts an accepted order into its line's pool
func (b *Backend) AddOrder(order *entities.AcceptedOrder) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.lines[order.LineID]; !ok {
		return fmt.Errorf("order %d: line %d: %w", order.ID, order.LineID, ErrNotFound)
	}
	if _, exists := b.orders[order.ID]; exists {
		return fmt.Errorf("order %d already exists", order.ID)
	}
	o := *order
	o.Weight = entities.CoerceKilograms(o.Weight)
	b.orders[order.ID] = &o
	b.orderOrder = append(b.orderOrder, order.ID)
	return nil
}

// AddBatch stores an existing batch as is. Orders it lists are taken out of
// the pool.
func (b *Backend) AddBatch(batch *entities.Batch) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.lines[batch.LineID]; !ok {
		return fmt.Errorf("batch %d: line %d: %w", batch.ID, batch.LineID, ErrNotFound)
	}
	if !batch.State.IsValid() {
		return fmt.Errorf("batch %d: %w: %q", batch.ID, entities.ErrInvalidState, batch.State)
	}
	if _, exists := b.batches[batch.ID]; exists {
		return fmt.Errorf("batch %d already exists", batch.ID)
	}

	stored := copyBatch(batch)
	for _, o := range stored.Orders {
		b.consume(o.OrderID)
		if o.Sequence > b.sequences[batch.LineID] {
			b.sequences[batch.LineID] = o.Sequence
		}
	}
	b.batches[batch.ID] = stored
	if batch.ID >= b.nextBatchID {
		b.nextBatchID = batch.ID + 1
	}
	if stored.State == entities.StateInProgress {
		b.lines[batch.LineID].Active = false
	}
	return nil
}

// ListLines returns every line, active or not, in registration order
func (b *Backend) ListLines(ctx context.Context) ([]*entities.ProductionLine, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	lines := make([]*entities.ProductionLine, 0, len(b.lineOrder))
	for _, id := range b.lineOrder {
		l := *b.lines[id]
		lines = append(lines, &l)
	}
	return lines, nil
}

// FetchAvailableOrders returns the line's unbatched orders in arrival order
func (b *Backend) FetchAvailableOrders(ctx context.Context, lineID entities.LineID) ([]*entities.AcceptedOrder, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.lines[lineID]; !ok {
		return nil, fmt.Errorf("line %d: %w", lineID, ErrNotFound)
	}

	orders := []*entities.AcceptedOrder{}
	for _, id := range b.orderOrder {
		o, ok := b.orders[id]
		if !ok || o.LineID != lineID {
			continue
		}
		cp := *o
		orders = append(orders, &cp)
	}
	return orders, nil
}

// SubmitBatch creates a planificada batch from orders still in the line's
// pool. The line must be in service and the batch must fit its capacity.
func (b *Backend) SubmitBatch(ctx context.Context, submission entities.BatchSubmission) (entities.BatchID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	line, ok := b.lines[submission.LineID]
	if !ok {
		return 0, fmt.Errorf("line %d: %w", submission.LineID, ErrNotFound)
	}
	if len(submission.Items) == 0 {
		return 0, fmt.Errorf("line %d: %w: %v", line.ID, ErrRejected, entities.ErrEmptySelection)
	}
	if !line.Active {
		return 0, fmt.Errorf("line %d is not active: %w", line.ID, ErrRejected)
	}

	total := decimal.Zero
	seen := make(map[entities.OrderID]bool, len(submission.Items))
	for _, item := range submission.Items {
		if seen[item.OrderID] {
			return 0, fmt.Errorf("order %d listed twice: %w", item.OrderID, ErrRejected)
		}
		seen[item.OrderID] = true
		order, ok := b.orders[item.OrderID]
		if !ok {
			return 0, fmt.Errorf("order %d is not available: %w", item.OrderID, ErrNotFound)
		}
		if order.LineID != line.ID {
			return 0, fmt.Errorf("order %d belongs to line %d, not %d: %w", order.ID, order.LineID, line.ID, ErrRejected)
		}
		total = total.Add(entities.CoerceKilograms(item.Weight))
	}
	if !line.Fits(total) {
		return 0, fmt.Errorf("batch of %s kg exceeds line %d capacity of %s kg: %w", total, line.ID, line.MaxCapacity, ErrRejected)
	}

	now := b.now()
	batch := &entities.Batch{
		ID:        b.nextBatchID,
		LineID:    line.ID,
		State:     entities.StatePlanned,
		CreatedAt: now,
	}
	b.nextBatchID++

	for _, item := range submission.Items {
		order := b.orders[item.OrderID]
		b.sequences[line.ID]++
		batch.Orders = append(batch.Orders, entities.BatchOrder{
			OrderID:           order.ID,
			SalesOrderID:      order.SalesOrderID,
			Product:           order.Product,
			Client:            order.Client,
			Units:             order.Units,
			Weight:            entities.CoerceKilograms(item.Weight),
			Sequence:          b.sequences[line.ID],
			CreatedAt:         order.CreatedAt,
			RequestedDelivery: order.RequestedDelivery,
			Materials:         order.Materials,
		})
		b.consume(order.ID)
	}
	b.batches[batch.ID] = batch

	return batch.ID, nil
}

// FetchBatchesByState returns the batches in state grouped by line, lines in
// registration order and batches by id
func (b *Backend) FetchBatchesByState(ctx context.Context, state entities.BatchState) ([]*entities.LineGroup, error) {
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: %q", entities.ErrInvalidState, state)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	byLine := make(map[entities.LineID][]*entities.Batch)
	for _, batch := range b.batches {
		if batch.State == state {
			byLine[batch.LineID] = append(byLine[batch.LineID], copyBatch(batch))
		}
	}

	groups := []*entities.LineGroup{}
	for _, id := range b.lineOrder {
		batches := byLine[id]
		if len(batches) == 0 {
			continue
		}
		sort.Slice(batches, func(i, j int) bool { return batches[i].ID < batches[j].ID })
		line := b.lines[id]
		groups = append(groups, &entities.LineGroup{
			LineID:      line.ID,
			LineName:    line.Name,
			Description: line.Description,
			MaxCapacity: line.MaxCapacity,
			Active:      line.Active,
			Batches:     batches,
		})
	}
	return groups, nil
}

// UpdateBatchState moves every listed batch to target, or none of them
func (b *Backend) UpdateBatchState(ctx context.Context, batchIDs []entities.BatchID, target entities.BatchState) error {
	if len(batchIDs) == 0 {
		return fmt.Errorf("%w: no batch ids", ErrRejected)
	}
	if !target.IsValid() {
		return fmt.Errorf("%w: %q", entities.ErrInvalidState, target)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range batchIDs {
		batch, ok := b.batches[id]
		if !ok {
			return fmt.Errorf("batch %d: %w", id, ErrNotFound)
		}
		if !batch.State.CanTransitionTo(target) {
			return fmt.Errorf("batch %d cannot move from %s to %s: %w", id, batch.State, target, ErrRejected)
		}
	}

	now := b.now()
	touched := make(map[entities.LineID]bool)
	for _, id := range batchIDs {
		batch := b.batches[id]
		if batch.State == target {
			continue
		}
		batch.State = target
		for i := range batch.Orders {
			switch target {
			case entities.StateInProgress:
				start := now
				batch.Orders[i].PlannedStart = &start
			case entities.StateCompleted, entities.StateCancelled:
				end := now
				batch.Orders[i].PlannedEnd = &end
			}
		}
		touched[batch.LineID] = true
	}
	for lineID := range touched {
		b.refreshOccupancy(lineID, target)
	}
	return nil
}

// BatchState returns a batch's current state
func (b *Backend) BatchState(id entities.BatchID) (entities.BatchState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	batch, ok := b.batches[id]
	if !ok {
		return "", fmt.Errorf("batch %d: %w", id, ErrNotFound)
	}
	return batch.State, nil
}

// refreshOccupancy takes a line out of service when a batch starts and puts
// it back once a batch finishes and none is left in progress
func (b *Backend) refreshOccupancy(lineID entities.LineID, target entities.BatchState) {
	line, ok := b.lines[lineID]
	if !ok {
		return
	}
	switch target {
	case entities.StateInProgress:
		line.Active = false
		return
	case entities.StatePlanned:
		return
	}
	for _, batch := range b.batches {
		if batch.LineID == lineID && batch.State == entities.StateInProgress {
			line.Active = false
			return
		}
	}
	line.Active = true
}

func (b *Backend) consume(id entities.OrderID) {
	if _, ok := b.orders[id]; !ok {
		return
	}
	delete(b.orders, id)
	for i, oid := range b.orderOrder {
		if oid == id {
			b.orderOrder = append(b.orderOrder[:i], b.orderOrder[i+1:]...)
			break
		}
	}
}

func copyBatch(batch *entities.Batch) *entities.Batch {
	out := *batch
	out.Orders = append([]entities.BatchOrder(nil), batch.Orders...)
	return &out
}
