package composer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/tandas/pkg/application/dto"
	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/domain/repositories"
	"github.com/vsinha/tandas/pkg/domain/services"
	"github.com/vsinha/tandas/pkg/infrastructure/events"
)

// Config holds the optional collaborators of a Composer
type Config struct {
	// EventStore receives composition events when set
	EventStore events.EventStore
	// Logger defaults to a discarding logger
	Logger *logrus.Entry
}

// Composer is one operator's batch composition session. It owns the loaded
// lines, each line's pool of available orders, the active line and the
// selection on it.
//
// A Composer is safe for concurrent use. Its lock is never held across a
// backend call.
type Composer struct {
	orders  repositories.OrderRepository
	batches repositories.BatchRepository
	policy  *services.CapacityPolicy
	events  events.EventStore
	logger  *logrus.Entry

	mu         sync.Mutex
	lines      map[entities.LineID]*entities.ProductionLine
	lineOrder  []entities.LineID
	pools      map[entities.LineID][]*entities.AcceptedOrder
	active     *entities.ProductionLine
	selection  *entities.Selection
	submitting bool

	// generation counts successful submissions. Orders consumed while a
	// Load is fetching are remembered with the generation that consumed
	// them, so the Load cannot bring them back.
	generation uint64
	loading    int
	consumed   map[entities.OrderID]uint64
}

// NewComposer creates a composer with default configuration
func NewComposer(orders repositories.OrderRepository, batches repositories.BatchRepository) *Composer {
	return NewComposerWithConfig(Config{}, orders, batches)
}

// NewComposerWithConfig creates a composer with custom configuration
func NewComposerWithConfig(
	config Config,
	orders repositories.OrderRepository,
	batches repositories.BatchRepository,
) *Composer {
	logger := config.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}

	return &Composer{
		orders:  orders,
		batches: batches,
		policy:  services.NewCapacityPolicy(),
		events:  config.EventStore,
		logger:  logger.WithField("module", "composer"),
		lines:   make(map[entities.LineID]*entities.ProductionLine),
		pools:   make(map[entities.LineID][]*entities.AcceptedOrder),
	}
}

// Load fetches the production lines and the available orders of every
// active line, replacing what the session held. The active line survives a
// reload when it is still composable; selected orders that left its pool are
// unmarked. Orders submitted while the fetch was outstanding stay out of the
// pool.
func (c *Composer) Load(ctx context.Context) error {
	c.mu.Lock()
	since := c.generation
	c.loading++
	c.mu.Unlock()

	loaded, lineOrder, pools, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.finishLoad()

	if err != nil {
		return err
	}
	for lineID, pool := range pools {
		pools[lineID] = c.dropConsumedSince(pool, since)
	}

	c.lines = loaded
	c.lineOrder = lineOrder
	c.pools = pools

	if c.active == nil {
		return nil
	}
	line, ok := c.lines[c.active.ID]
	if !ok {
		c.active = nil
		c.selection = nil
		return nil
	}
	c.active = line
	var gone []entities.OrderID
	for _, id := range c.selection.SelectedIDs() {
		if c.findOrder(id) == nil {
			gone = append(gone, id)
		}
	}
	c.selection.Remove(gone...)
	// Capacity may have shrunk under the selection
	if !line.Fits(c.policy.SelectedTotal(c.selection, c.pools[line.ID])) {
		c.selection.Clear()
	}

	return nil
}

func (c *Composer) fetch(ctx context.Context) (
	map[entities.LineID]*entities.ProductionLine,
	[]entities.LineID,
	map[entities.LineID][]*entities.AcceptedOrder,
	error,
) {
	lines, err := c.orders.ListLines(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list production lines: %w", err)
	}

	loaded := make(map[entities.LineID]*entities.ProductionLine, len(lines))
	lineOrder := make([]entities.LineID, 0, len(lines))
	pools := make(map[entities.LineID][]*entities.AcceptedOrder, len(lines))

	for _, line := range lines {
		if line == nil || !line.Active {
			continue
		}
		if _, dup := loaded[line.ID]; dup {
			continue
		}

		pool, err := c.orders.FetchAvailableOrders(ctx, line.ID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to fetch available orders for line %d: %w", line.ID, err)
		}

		loaded[line.ID] = line
		lineOrder = append(lineOrder, line.ID)
		pools[line.ID] = compactPool(pool)
	}
	return loaded, lineOrder, pools, nil
}

// finishLoad forgets consumed orders once no Load is outstanding
func (c *Composer) finishLoad() {
	c.loading--
	if c.loading == 0 {
		c.consumed = nil
	}
}

// dropConsumedSince removes orders submitted after generation since
func (c *Composer) dropConsumedSince(pool []*entities.AcceptedOrder, since uint64) []*entities.AcceptedOrder {
	if len(c.consumed) == 0 {
		return pool
	}
	kept := make([]*entities.AcceptedOrder, 0, len(pool))
	for _, order := range pool {
		if gen, ok := c.consumed[order.ID]; ok && gen > since {
			continue
		}
		kept = append(kept, order)
	}
	return kept
}

// Lines returns the composable lines in the order the backend listed them
func (c *Composer) Lines() []*entities.ProductionLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*entities.ProductionLine, 0, len(c.lineOrder))
	for _, id := range c.lineOrder {
		out = append(out, c.lines[id])
	}
	return out
}

// Pool returns a copy of a line's available orders
func (c *Composer) Pool(lineID entities.LineID) []*entities.AcceptedOrder {
	c.mu.Lock()
	defer c.mu.Unlock()

	pool := c.pools[lineID]
	out := make([]*entities.AcceptedOrder, len(pool))
	copy(out, pool)
	return out
}

// SelectLine makes lineID the active line with an empty selection. It
// returns false, changing nothing, when lineID is not a loaded line.
func (c *Composer) SelectLine(lineID entities.LineID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.lines[lineID]
	if !ok {
		return false
	}
	c.active = line
	c.selection = entities.NewSelection(lineID)
	return true
}

// ActiveLine returns the active line, or nil
func (c *Composer) ActiveLine() *entities.ProductionLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Selection returns a copy of the current selection, or nil when no line is
// active
func (c *Composer) Selection() *entities.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Clone()
}

// ToggleOrder flips the selection mark of an order on the active line. The
// order's weight is the one loaded in the pool.
//
// With no active line the call is a no-op. Selecting an order that would push
// the selected total over the line's capacity is refused with a
// *entities.CapacityExceededError and the selection is left as it was.
func (c *Composer) ToggleOrder(orderID entities.OrderID) (*dto.ToggleResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return &dto.ToggleResult{OrderID: orderID}, nil
	}

	order := c.findOrder(orderID)
	if order == nil {
		return nil, fmt.Errorf("order %d on line %d: %w", orderID, c.active.ID, entities.ErrOrderNotAvailable)
	}

	pool := c.pools[c.active.ID]
	total := c.policy.SelectedTotal(c.selection, pool)

	if !c.selection.IsSelected(orderID) {
		if err := c.policy.CheckAddition(c.active, orderID, order.Weight, total); err != nil {
			c.publish(c.active.ID, events.SelectionRejectedEvent, events.SelectionRejected{
				LineID:   c.active.ID,
				OrderID:  orderID,
				Weight:   entities.CoerceKilograms(order.Weight),
				Selected: total,
				Capacity: c.active.MaxCapacity,
			})
			c.logger.WithFields(logrus.Fields{
				"line_id":  c.active.ID,
				"order_id": orderID,
			}).Info("selection rejected, line capacity exceeded")
			return nil, err
		}
	}

	selected := c.selection.Toggle(orderID)
	total = c.policy.SelectedTotal(c.selection, pool)

	return &dto.ToggleResult{
		OrderID:   orderID,
		Changed:   true,
		Selected:  selected,
		Total:     total,
		Remaining: c.active.Remaining(total),
	}, nil
}

// SelectedTotal sums the weight of the selected orders on the active line.
// The sum is recomputed from the selection on every call.
func (c *Composer) SelectedTotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedTotal()
}

// Remaining returns how many kilograms can still be added to the selection
func (c *Composer) Remaining() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return decimal.Zero
	}
	return c.active.Remaining(c.selectedTotal())
}

// ClearSelection unmarks every order on the active line
func (c *Composer) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Clear()
}

// Candidates lists the active line's available orders with their selection
// mark and whether they still fit
func (c *Composer) Candidates() []dto.Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidates(c.selectedTotal())
}

// View returns a snapshot of the active line for display
func (c *Composer) View() *dto.PoolView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := &dto.PoolView{
		Line:       c.active,
		Candidates: []dto.Candidate{},
		Total:      decimal.Zero,
		Remaining:  decimal.Zero,
		Submitting: c.submitting,
	}
	if c.active == nil {
		return view
	}

	total := c.selectedTotal()
	view.Candidates = c.candidates(total)
	view.SelectedCount = c.selection.Count()
	view.Total = total
	view.Remaining = c.active.Remaining(total)
	view.Empty = len(view.Candidates) == 0
	return view
}

// Submit sends the selection on the active line to the backend as a new
// batch. The preconditions are checked in order and each fails with its own
// error before any backend call: an active line, a non-empty selection, a
// positive total, and no other submission outstanding.
//
// On success the submitted orders leave the pool and the selection is
// cleared, including orders marked while the call was outstanding. On failure the selection is kept so the operator can retry.
func (c *Composer) Submit(ctx context.Context) (*dto.SubmitResult, error) {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return nil, entities.ErrNoLineSelected
	}
	line := c.active
	pool := c.pools[line.ID]
	total := c.policy.SelectedTotal(c.selection, pool)
	if err := c.policy.CheckSubmittable(c.selection.Count(), total); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, entities.ErrSubmitInFlight
	}

	items := make([]entities.SubmissionItem, 0, c.selection.Count())
	for _, order := range pool {
		if c.selection.IsSelected(order.ID) {
			items = append(items, entities.SubmissionItem{
				OrderID: order.ID,
				Weight:  entities.CoerceKilograms(order.Weight),
			})
		}
	}
	submission, err := entities.NewBatchSubmission(line.ID, items)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.submitting = true
	c.mu.Unlock()

	batchID, err := c.batches.SubmitBatch(ctx, *submission)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false

	orderIDs := submission.OrderIDs()
	if err != nil {
		c.publish(line.ID, events.BatchSubmissionFailedEvent, events.BatchSubmissionFailed{
			LineID: line.ID,
			Orders: orderIDs,
			Reason: err.Error(),
		})
		c.logger.WithFields(logrus.Fields{
			"line_id":   line.ID,
			"order_ids": orderIDs,
		}).WithError(err).Error("batch submission failed")
		return nil, &entities.SubmissionFailedError{LineID: line.ID, Orders: orderIDs, Err: err}
	}

	c.consume(line.ID, orderIDs)
	if c.active != nil && c.active.ID == line.ID {
		c.selection.Clear()
	}

	c.publish(line.ID, events.BatchSubmittedEvent, events.BatchSubmitted{
		LineID:  line.ID,
		BatchID: batchID,
		Orders:  orderIDs,
		Total:   submission.TotalWeight(),
	})
	c.logger.WithFields(logrus.Fields{
		"line_id":   line.ID,
		"batch_id":  batchID,
		"order_ids": orderIDs,
		"total_kg":  submission.TotalWeight().String(),
	}).Info("batch submitted")

	return &dto.SubmitResult{
		BatchID: batchID,
		LineID:  line.ID,
		Orders:  orderIDs,
		Total:   submission.TotalWeight(),
	}, nil
}

// CheckSubmittable returns the error Submit would fail with before calling
// the backend, or nil
func (c *Composer) CheckSubmittable() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return entities.ErrNoLineSelected
	}
	total := c.policy.SelectedTotal(c.selection, c.pools[c.active.ID])
	if err := c.policy.CheckSubmittable(c.selection.Count(), total); err != nil {
		return err
	}
	if c.submitting {
		return entities.ErrSubmitInFlight
	}
	return nil
}

// Submitting reports whether a submission is outstanding
func (c *Composer) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

func (c *Composer) selectedTotal() decimal.Decimal {
	if c.active == nil {
		return decimal.Zero
	}
	return c.policy.SelectedTotal(c.selection, c.pools[c.active.ID])
}

func (c *Composer) candidates(total decimal.Decimal) []dto.Candidate {
	if c.active == nil {
		return []dto.Candidate{}
	}
	pool := c.pools[c.active.ID]
	out := make([]dto.Candidate, 0, len(pool))
	for _, order := range pool {
		selected := c.selection.IsSelected(order.ID)
		out = append(out, dto.Candidate{
			Order:    order,
			Selected: selected,
			Exceeds:  !selected && c.policy.Exceeds(c.active, total, order.Weight),
		})
	}
	return out
}

func (c *Composer) findOrder(id entities.OrderID) *entities.AcceptedOrder {
	if c.active == nil {
		return nil
	}
	for _, order := range c.pools[c.active.ID] {
		if order.ID == id {
			return order
		}
	}
	return nil
}

// consume drops submitted orders from a line's pool and bumps the pool
// generation
func (c *Composer) consume(lineID entities.LineID, ids []entities.OrderID) {
	c.generation++
	if c.loading > 0 && c.consumed == nil {
		c.consumed = make(map[entities.OrderID]uint64, len(ids))
	}
	drop := make(map[entities.OrderID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
		if c.loading > 0 {
			c.consumed[id] = c.generation
		}
	}
	pool := c.pools[lineID]
	kept := make([]*entities.AcceptedOrder, 0, len(pool))
	for _, order := range pool {
		if !drop[order.ID] {
			kept = append(kept, order)
		}
	}
	c.pools[lineID] = kept
}

func (c *Composer) publish(lineID entities.LineID, eventType string, data interface{}) {
	if c.events == nil {
		return
	}
	stream := events.LineStream(int64(lineID))
	if err := c.events.AppendEvent(stream, events.NewEvent(eventType, stream, data)); err != nil {
		c.logger.WithError(err).Warn("failed to publish event")
	}
}

// compactPool drops nil and duplicate orders, keeping backend order
func compactPool(pool []*entities.AcceptedOrder) []*entities.AcceptedOrder {
	out := make([]*entities.AcceptedOrder, 0, len(pool))
	seen := make(map[entities.OrderID]bool, len(pool))
	for _, order := range pool {
		if order == nil || seen[order.ID] {
			continue
		}
		seen[order.ID] = true
		out = append(out, order)
	}
	return out
}
