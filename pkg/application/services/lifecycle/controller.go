package lifecycle

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vsinha/tandas/pkg/application/dto"
	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/domain/repositories"
	"github.com/vsinha/tandas/pkg/infrastructure/events"
)

// Config holds the optional collaborators of a Controller
type Config struct {
	// Guard defaults to a MemoryGuard
	Guard Guard
	// EventStore receives transition events when set
	EventStore events.EventStore
	// Logger defaults to a discarding logger
	Logger *logrus.Entry
	// Now defaults to time.Now
	Now func() time.Time
}

// Controller presents the batches of one lifecycle state grouped by line and
// applies one bulk forward transition per line.
//
// A transition is two-step: RequestTransition computes and stores a plan,
// ConfirmTransition sends it. The lock is never held across a backend call.
type Controller struct {
	batches repositories.BatchRepository
	guard   Guard
	events  events.EventStore
	logger  *logrus.Entry
	now     func() time.Time

	mu       sync.Mutex
	state    entities.BatchState
	groups   []*entities.LineGroup
	pending  map[entities.LineID]*dto.TransitionPlan
	inFlight map[entities.LineID]bool
}

// NewController creates a controller with default configuration
func NewController(batches repositories.BatchRepository) *Controller {
	return NewControllerWithConfig(Config{}, batches)
}

// NewControllerWithConfig creates a controller with custom configuration
func NewControllerWithConfig(config Config, batches repositories.BatchRepository) *Controller {
	guard := config.Guard
	if guard == nil {
		guard = NewMemoryGuard()
	}
	logger := config.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Controller{
		batches:  batches,
		guard:    guard,
		events:   config.EventStore,
		logger:   logger.WithField("module", "lifecycle"),
		now:      now,
		pending:  make(map[entities.LineID]*dto.TransitionPlan),
		inFlight: make(map[entities.LineID]bool),
	}
}

// LoadState fetches every batch in state and replaces the working set with
// them, grouped by owning line. Lines without batches in state are omitted.
//
// Pending plans survive a reload of the same state, limited to the batches
// still present. Switching state discards them.
func (c *Controller) LoadState(ctx context.Context, state entities.BatchState) error {
	if !state.IsValid() {
		return fmt.Errorf("%w: %q", entities.ErrInvalidState, state)
	}

	fetched, err := c.batches.FetchBatchesByState(ctx, state)
	if err != nil {
		return fmt.Errorf("failed to fetch %s batches: %w", state, err)
	}
	groups := regroup(fetched, state)

	c.mu.Lock()
	defer c.mu.Unlock()

	if state != c.state {
		c.pending = make(map[entities.LineID]*dto.TransitionPlan)
	}
	c.state = state
	c.groups = groups

	for lineID, plan := range c.pending {
		group := c.group(lineID)
		if group == nil {
			delete(c.pending, lineID)
			continue
		}
		present := make(map[entities.BatchID]bool)
		for _, id := range group.BatchIDs(state) {
			present[id] = true
		}
		kept := plan.BatchIDs[:0:0]
		for _, id := range plan.BatchIDs {
			if present[id] {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(c.pending, lineID)
			continue
		}
		plan.BatchIDs = kept
	}

	return nil
}

// State returns the lifecycle state being viewed
func (c *Controller) State() entities.BatchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Groups returns a copy of the working set
func (c *Controller) Groups() []*entities.LineGroup {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*entities.LineGroup, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, copyGroup(g))
	}
	return out
}

// Group returns a copy of one line's group, or nil when the line has no
// batches in the viewed state
func (c *Controller) Group(lineID entities.LineID) *entities.LineGroup {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.group(lineID)
	if g == nil {
		return nil
	}
	return copyGroup(g)
}

// InFlight reports whether a transition is outstanding for the line
func (c *Controller) InFlight(lineID entities.LineID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight[lineID]
}

// Pending returns the plan waiting for confirmation on the line, or nil
func (c *Controller) Pending(lineID entities.LineID) *dto.TransitionPlan {
	c.mu.Lock()
	defer c.mu.Unlock()

	plan, ok := c.pending[lineID]
	if !ok {
		return nil
	}
	return copyPlan(plan)
}

// RequestTransition prepares the bulk transition of every batch of the line
// in the viewed state to the next state. Nothing is sent until
// ConfirmTransition is called.
func (c *Controller) RequestTransition(lineID entities.LineID) (*dto.TransitionPlan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsTerminal() {
		return nil, fmt.Errorf("line %d: %w", lineID, entities.ErrTerminalState)
	}
	if c.inFlight[lineID] {
		return nil, fmt.Errorf("line %d: %w", lineID, entities.ErrTransitionInFlight)
	}

	group := c.group(lineID)
	var ids []entities.BatchID
	if group != nil {
		ids = group.BatchIDs(c.state)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("line %d: %w", lineID, entities.ErrNothingToTransition)
	}

	plan := &dto.TransitionPlan{
		LineID:      lineID,
		LineName:    group.LineName,
		From:        c.state,
		To:          c.state.Next(),
		BatchIDs:    ids,
		RequestedAt: c.now(),
	}
	c.pending[lineID] = plan

	return copyPlan(plan), nil
}

// CancelTransition discards the line's pending plan. It reports whether
// there was one.
func (c *Controller) CancelTransition(lineID entities.LineID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.pending[lineID]
	delete(c.pending, lineID)
	return ok
}

// ConfirmTransition sends the line's pending plan to the backend in a single
// call. The plan is consumed whatever the outcome; a retry starts with a new
// request.
//
// On failure the working set is left as it was and a
// *entities.TransitionFailedError is returned. On success the moved batches
// leave the view and the viewed state is reloaded; a failed reload is
// reported in the result's ReloadErr.
func (c *Controller) ConfirmTransition(ctx context.Context, lineID entities.LineID) (*dto.TransitionResult, error) {
	c.mu.Lock()
	if c.inFlight[lineID] {
		c.mu.Unlock()
		return nil, fmt.Errorf("line %d: %w", lineID, entities.ErrTransitionInFlight)
	}
	plan, ok := c.pending[lineID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("line %d: %w", lineID, entities.ErrNotConfirmable)
	}
	delete(c.pending, lineID)
	c.inFlight[lineID] = true
	c.mu.Unlock()

	release, err := c.guard.TryAcquire(ctx, lineID)
	if err != nil {
		c.finish(lineID)
		return nil, fmt.Errorf("line %d: %w", lineID, err)
	}

	err = c.batches.UpdateBatchState(ctx, plan.BatchIDs, plan.To)

	if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
		c.logger.WithField("line_id", lineID).WithError(relErr).Warn("failed to release line guard")
	}

	if err != nil {
		c.finish(lineID)
		c.publish(lineID, events.BatchTransitionFailedEvent, events.BatchTransitionFailed{
			LineID:   lineID,
			BatchIDs: plan.BatchIDs,
			From:     plan.From,
			To:       plan.To,
			Reason:   err.Error(),
		})
		c.logger.WithFields(logrus.Fields{
			"line_id":      lineID,
			"batch_ids":    plan.BatchIDs,
			"target_state": plan.To,
		}).WithError(err).Error("batch transition failed")
		return nil, &entities.TransitionFailedError{
			LineID:   lineID,
			From:     plan.From,
			To:       plan.To,
			BatchIDs: plan.BatchIDs,
			Err:      err,
		}
	}

	c.mu.Lock()
	delete(c.inFlight, lineID)
	if c.state == plan.From {
		c.removeBatches(lineID, plan.BatchIDs)
	}
	state := c.state
	c.mu.Unlock()

	c.publish(lineID, events.BatchTransitionedEvent, events.BatchTransitioned{
		LineID:   lineID,
		BatchIDs: plan.BatchIDs,
		From:     plan.From,
		To:       plan.To,
	})
	c.logger.WithFields(logrus.Fields{
		"line_id":      lineID,
		"batch_ids":    plan.BatchIDs,
		"target_state": plan.To,
	}).Info("batches transitioned")

	result := &dto.TransitionResult{
		LineID:   lineID,
		From:     plan.From,
		To:       plan.To,
		BatchIDs: plan.BatchIDs,
	}
	if err := c.LoadState(ctx, state); err != nil {
		c.logger.WithField("line_id", lineID).WithError(err).Warn("reload after transition failed")
		result.ReloadErr = err
	}

	return result, nil
}

func (c *Controller) finish(lineID entities.LineID) {
	c.mu.Lock()
	delete(c.inFlight, lineID)
	c.mu.Unlock()
}

func (c *Controller) group(lineID entities.LineID) *entities.LineGroup {
	for _, g := range c.groups {
		if g.LineID == lineID {
			return g
		}
	}
	return nil
}

// removeBatches patches the working set after a successful transition
func (c *Controller) removeBatches(lineID entities.LineID, ids []entities.BatchID) {
	moved := make(map[entities.BatchID]bool, len(ids))
	for _, id := range ids {
		moved[id] = true
	}

	groups := c.groups[:0:0]
	for _, g := range c.groups {
		if g.LineID != lineID {
			groups = append(groups, g)
			continue
		}
		patched := copyGroup(g)
		patched.Batches = patched.Batches[:0]
		for _, b := range g.Batches {
			if !moved[b.ID] {
				patched.Batches = append(patched.Batches, b)
			}
		}
		if len(patched.Batches) > 0 {
			groups = append(groups, patched)
		}
	}
	c.groups = groups
}

func (c *Controller) publish(lineID entities.LineID, eventType string, data interface{}) {
	if c.events == nil {
		return
	}
	stream := events.LineStream(int64(lineID))
	if err := c.events.AppendEvent(stream, events.NewEvent(eventType, stream, data)); err != nil {
		c.logger.WithError(err).Warn("failed to publish event")
	}
}

// regroup merges the fetched groups by line, keeping only batches in state.
// Batches listed twice for a line are merged into the first occurrence.
func regroup(fetched []*entities.LineGroup, state entities.BatchState) []*entities.LineGroup {
	byLine := make(map[entities.LineID]*entities.LineGroup)
	order := make([]entities.LineID, 0, len(fetched))
	seen := make(map[entities.BatchID]*entities.Batch)

	for _, g := range fetched {
		if g == nil {
			continue
		}
		group, ok := byLine[g.LineID]
		if !ok {
			group = &entities.LineGroup{
				LineID:      g.LineID,
				LineName:    g.LineName,
				Description: g.Description,
				MaxCapacity: g.MaxCapacity,
				Active:      g.Active,
			}
			byLine[g.LineID] = group
			order = append(order, g.LineID)
		}
		for _, b := range g.Batches {
			if b == nil || b.State != state {
				continue
			}
			if prev, dup := seen[b.ID]; dup {
				prev.Orders = append(prev.Orders, b.Orders...)
				continue
			}
			batch := *b
			batch.Orders = append([]entities.BatchOrder(nil), b.Orders...)
			if batch.LineID == 0 {
				batch.LineID = g.LineID
			}
			seen[b.ID] = &batch
			group.Batches = append(group.Batches, &batch)
		}
	}

	groups := make([]*entities.LineGroup, 0, len(order))
	for _, id := range order {
		if g := byLine[id]; len(g.Batches) > 0 {
			groups = append(groups, g)
		}
	}
	return groups
}

func copyGroup(g *entities.LineGroup) *entities.LineGroup {
	out := *g
	out.Batches = append([]*entities.Batch(nil), g.Batches...)
	return &out
}

func copyPlan(p *dto.TransitionPlan) *dto.TransitionPlan {
	out := *p
	out.BatchIDs = append([]entities.BatchID(nil), p.BatchIDs...)
	return &out
}
