package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/domain/repositories"
)

// StubBackend is a scripted backend for service tests. It records every call
// and fails on demand.
type StubBackend struct {
	mu sync.Mutex

	Lines  []*entities.ProductionLine
	Pools  map[entities.LineID][]*entities.AcceptedOrder
	Groups map[entities.BatchState][]*entities.LineGroup

	NextBatchID entities.BatchID

	ListErr   error
	FetchErr  error
	SubmitErr error
	GroupsErr error
	UpdateErr error

	// Block, when set, is received from before SubmitBatch and
	// UpdateBatchState answer, letting tests hold a call in flight
	Block chan struct{}
	// Entered is signalled when a blocked call has started
	Entered chan struct{}

	ListCalls   int
	FetchCalls  int
	SubmitCalls []entities.BatchSubmission
	GroupsCalls []entities.BatchState
	UpdateCalls []UpdateCall
}

// UpdateCall records one UpdateBatchState call
type UpdateCall struct {
	BatchIDs []entities.BatchID
	Target   entities.BatchState
}

var (
	_ repositories.OrderRepository = (*StubBackend)(nil)
	_ repositories.BatchRepository = (*StubBackend)(nil)
)

// NewStubBackend creates an empty stub
func NewStubBackend() *StubBackend {
	return &StubBackend{
		Pools:       make(map[entities.LineID][]*entities.AcceptedOrder),
		Groups:      make(map[entities.BatchState][]*entities.LineGroup),
		NextBatchID: 100,
	}
}

func (s *StubBackend) ListLines(ctx context.Context) ([]*entities.ProductionLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ListCalls++
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	return append([]*entities.ProductionLine(nil), s.Lines...), nil
}

func (s *StubBackend) FetchAvailableOrders(ctx context.Context, lineID entities.LineID) ([]*entities.AcceptedOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.FetchCalls++
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	return append([]*entities.AcceptedOrder{}, s.Pools[lineID]...), nil
}

func (s *StubBackend) SubmitBatch(ctx context.Context, submission entities.BatchSubmission) (entities.BatchID, error) {
	s.wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.SubmitCalls = append(s.SubmitCalls, submission)
	if s.SubmitErr != nil {
		return 0, s.SubmitErr
	}

	consumed := make(map[entities.OrderID]bool, len(submission.Items))
	for _, item := range submission.Items {
		consumed[item.OrderID] = true
	}
	pool := s.Pools[submission.LineID]
	kept := pool[:0:0]
	for _, order := range pool {
		if !consumed[order.ID] {
			kept = append(kept, order)
		}
	}
	s.Pools[submission.LineID] = kept

	id := s.NextBatchID
	s.NextBatchID++
	return id, nil
}

func (s *StubBackend) FetchBatchesByState(ctx context.Context, state entities.BatchState) ([]*entities.LineGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.GroupsCalls = append(s.GroupsCalls, state)
	if s.GroupsErr != nil {
		return nil, s.GroupsErr
	}
	return append([]*entities.LineGroup{}, s.Groups[state]...), nil
}

func (s *StubBackend) UpdateBatchState(ctx context.Context, batchIDs []entities.BatchID, target entities.BatchState) error {
	s.wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.UpdateCalls = append(s.UpdateCalls, UpdateCall{
		BatchIDs: append([]entities.BatchID(nil), batchIDs...),
		Target:   target,
	})
	if s.UpdateErr != nil {
		return s.UpdateErr
	}

	moving := make(map[entities.BatchID]bool, len(batchIDs))
	for _, id := range batchIDs {
		moving[id] = true
	}
	for state, groups := range s.Groups {
		if state == target {
			continue
		}
		for _, group := range groups {
			var kept []*entities.Batch
			for _, b := range group.Batches {
				if !moving[b.ID] {
					kept = append(kept, b)
					continue
				}
				moved := *b
				moved.State = target
				s.addToGroup(target, group, &moved)
			}
			group.Batches = kept
		}
	}
	return nil
}

// SetPool replaces the available orders of a line
func (s *StubBackend) SetPool(lineID entities.LineID, orders ...*entities.AcceptedOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pools[lineID] = orders
}

// AddBatches places batches under their line's group for state
func (s *StubBackend) AddBatches(line *entities.ProductionLine, state entities.BatchState, batches ...*entities.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header := &entities.LineGroup{
		LineID:      line.ID,
		LineName:    line.Name,
		MaxCapacity: line.MaxCapacity,
		Active:      line.Active,
	}
	for _, b := range batches {
		b.State = state
		s.addToGroup(state, header, b)
	}
}

// SubmitCount returns how many SubmitBatch calls were made
func (s *StubBackend) SubmitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SubmitCalls)
}

// UpdateCount returns how many UpdateBatchState calls were made
func (s *StubBackend) UpdateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.UpdateCalls)
}

// PoolIDs returns the ids of a line's available orders
func (s *StubBackend) PoolIDs(lineID entities.LineID) []entities.OrderID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]entities.OrderID, 0, len(s.Pools[lineID]))
	for _, order := range s.Pools[lineID] {
		ids = append(ids, order.ID)
	}
	return ids
}

func (s *StubBackend) addToGroup(state entities.BatchState, header *entities.LineGroup, b *entities.Batch) {
	for _, group := range s.Groups[state] {
		if group.LineID == header.LineID {
			group.Batches = append(group.Batches, b)
			return
		}
	}
	group := *header
	group.Batches = []*entities.Batch{b}
	s.Groups[state] = append(s.Groups[state], &group)
}

func (s *StubBackend) wait() {
	if s.Block == nil {
		return
	}
	if s.Entered != nil {
		s.Entered <- struct{}{}
	}
	<-s.Block
}

// MustCreateLine is a helper for tests - panics on validation error
func MustCreateLine(id entities.LineID, name string, capacityKg string) *entities.ProductionLine {
	line, err := entities.NewProductionLine(id, name, "", decimal.RequireFromString(capacityKg), true, nil)
	if err != nil {
		panic(err)
	}
	return line
}

// MustCreateOrder is a helper for tests - panics on validation error
func MustCreateOrder(id entities.OrderID, lineID entities.LineID, weightKg string) *entities.AcceptedOrder {
	order, err := entities.NewAcceptedOrder(
		id,
		lineID,
		entities.ProductRef{ID: int64(id), Name: fmt.Sprintf("Product %d", id)},
		decimal.RequireFromString(weightKg),
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		panic(err)
	}
	order.Client = entities.ClientRef{ID: 1, FirstName: "Ana", LastName: "Perez"}
	return order
}

// NewBatch builds a batch with one order per id
func NewBatch(id entities.BatchID, lineID entities.LineID, orderIDs ...entities.OrderID) *entities.Batch {
	b := &entities.Batch{ID: id, LineID: lineID}
	for i, orderID := range orderIDs {
		b.Orders = append(b.Orders, entities.BatchOrder{
			OrderID:  orderID,
			Weight:   decimal.NewFromInt(100),
			Sequence: i + 1,
		})
	}
	return b
}

// BuildCapacityScenario seeds a 500 kg line with orders A=200, B=250, C=100
// (ids 1, 2, 3)
func BuildCapacityScenario() (*StubBackend, *entities.ProductionLine) {
	backend := NewStubBackend()
	line := MustCreateLine(1, "Linea Secado", "500")
	backend.Lines = []*entities.ProductionLine{line}
	backend.SetPool(line.ID,
		MustCreateOrder(1, line.ID, "200"),
		MustCreateOrder(2, line.ID, "250"),
		MustCreateOrder(3, line.ID, "100"),
	)
	return backend, line
}
