package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	testhelpers "github.com/vsinha/tandas/pkg/application/services/testing"
	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/infrastructure/events"
)

// buildPlannedScenario seeds line 1 with three planned batches and line 2
// with one batch in progress
func buildPlannedScenario() (*testhelpers.StubBackend, *entities.ProductionLine, *entities.ProductionLine) {
	backend := testhelpers.NewStubBackend()
	l1 := testhelpers.MustCreateLine(1, "Linea Secado", "500")
	l2 := testhelpers.MustCreateLine(2, "Linea Molienda", "800")
	backend.Lines = []*entities.ProductionLine{l1, l2}

	backend.AddBatches(l1, entities.StatePlanned,
		testhelpers.NewBatch(11, l1.ID, 1, 2),
		testhelpers.NewBatch(12, l1.ID, 3),
		testhelpers.NewBatch(13, l1.ID, 4),
	)
	backend.AddBatches(l2, entities.StateInProgress,
		testhelpers.NewBatch(21, l2.ID, 5),
	)
	return backend, l1, l2
}

func TestController_Scenario_PlannedToInProgress(t *testing.T) {
	ctx := context.Background()
	backend, l1, _ := buildPlannedScenario()
	store := events.NewInMemoryEventStore()
	c := NewControllerWithConfig(Config{EventStore: store}, backend)

	if err := c.LoadState(ctx, entities.StatePlanned); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}

	plan, err := c.RequestTransition(l1.ID)
	if err != nil {
		t.Fatalf("RequestTransition failed: %v", err)
	}
	if plan.To != entities.StateInProgress {
		t.Errorf("Expected target en_progreso, got %s", plan.To)
	}
	if len(plan.BatchIDs) != 3 {
		t.Fatalf("Expected 3 batch ids, got %v", plan.BatchIDs)
	}
	if backend.UpdateCount() != 0 {
		t.Fatal("Expected no backend call before confirmation")
	}

	result, err := c.ConfirmTransition(ctx, l1.ID)
	if err != nil {
		t.Fatalf("ConfirmTransition failed: %v", err)
	}
	if result.ReloadErr != nil {
		t.Errorf("Unexpected reload error: %v", result.ReloadErr)
	}

	if backend.UpdateCount() != 1 {
		t.Fatalf("Expected one update call, got %d", backend.UpdateCount())
	}
	call := backend.UpdateCalls[0]
	if call.Target != entities.StateInProgress {
		t.Errorf("Expected target en_progreso, got %s", call.Target)
	}
	want := []entities.BatchID{11, 12, 13}
	for i, id := range want {
		if call.BatchIDs[i] != id {
			t.Errorf("Expected batch ids %v, got %v", want, call.BatchIDs)
			break
		}
	}

	if g := c.Group(l1.ID); g != nil {
		t.Errorf("Expected line 1 to leave the planificada view, got %d batches", len(g.Batches))
	}
	if c.InFlight(l1.ID) {
		t.Error("Expected line control to be enabled again")
	}

	evts, _ := store.ReadEvents(events.LineStream(int64(l1.ID)), 1)
	if len(evts) != 1 || evts[0].Type() != events.BatchTransitionedEvent {
		t.Errorf("Expected one batch.transitioned event, got %v", evts)
	}
}

func TestController_Scenario_NothingToTransition(t *testing.T) {
	ctx := context.Background()
	backend, l1, _ := buildPlannedScenario()
	c := NewController(backend)

	if err := c.LoadState(ctx, entities.StateInProgress); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}

	_, err := c.RequestTransition(l1.ID)
	if !errors.Is(err, entities.ErrNothingToTransition) {
		t.Fatalf("Expected ErrNothingToTransition, got %v", err)
	}
	if _, err := c.ConfirmTransition(ctx, l1.ID); !errors.Is(err, entities.ErrNotConfirmable) {
		t.Errorf("Expected ErrNotConfirmable, got %v", err)
	}
	if backend.UpdateCount() != 0 {
		t.Error("Expected no backend call")
	}
}

func TestController_InProgressToCompleted(t *testing.T) {
	ctx := context.Background()
	backend, _, l2 := buildPlannedScenario()
	c := NewController(backend)

	if err := c.LoadState(ctx, entities.StateInProgress); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	plan, err := c.RequestTransition(l2.ID)
	if err != nil {
		t.Fatalf("RequestTransition failed: %v", err)
	}
	if plan.To != entities.StateCompleted {
		t.Errorf("Expected target completada, got %s", plan.To)
	}
	if _, err := c.ConfirmTransition(ctx, l2.ID); err != nil {
		t.Fatalf("ConfirmTransition failed: %v", err)
	}
	if len(c.Groups()) != 0 {
		t.Errorf("Expected empty en_progreso view, got %d groups", len(c.Groups()))
	}
}

func TestController_TerminalState(t *testing.T) {
	backend, l1, _ := buildPlannedScenario()
	backend.AddBatches(l1, entities.StateCompleted, testhelpers.NewBatch(31, l1.ID, 9))
	c := NewController(backend)

	if err := c.LoadState(context.Background(), entities.StateCompleted); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if _, err := c.RequestTransition(l1.ID); !errors.Is(err, entities.ErrTerminalState) {
		t.Errorf("Expected ErrTerminalState, got %v", err)
	}
}

func TestController_LoadState_InvalidState(t *testing.T) {
	backend, _, _ := buildPlannedScenario()
	c := NewController(backend)

	err := c.LoadState(context.Background(), entities.BatchState("archivada"))
	if !errors.Is(err, entities.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}
	if len(backend.GroupsCalls) != 0 {
		t.Error("Expected no backend call for an invalid state")
	}
}

func TestController_Confirm_FailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	backend, l1, _ := buildPlannedScenario()
	c := NewController(backend)

	if err := c.LoadState(ctx, entities.StatePlanned); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	before := c.Groups()

	if _, err := c.RequestTransition(l1.ID); err != nil {
		t.Fatalf("RequestTransition failed: %v", err)
	}
	backend.UpdateErr = errors.New("backend unavailable")

	_, err := c.ConfirmTransition(ctx, l1.ID)
	if !errors.Is(err, entities.ErrTransitionFailed) {
		t.Fatalf("Expected ErrTransitionFailed, got %v", err)
	}
	var trErr *entities.TransitionFailedError
	if !errors.As(err, &trErr) {
		t.Fatalf("Expected *TransitionFailedError, got %T", err)
	}
	if trErr.LineID != l1.ID || trErr.From != entities.StatePlanned || trErr.To != entities.StateInProgress {
		t.Errorf("Expected line/operation context, got %+v", trErr)
	}

	after := c.Groups()
	if len(after) != len(before) || len(after[0].Batches) != len(before[0].Batches) {
		t.Error("Expected working set to be untouched after failure")
	}
	if c.InFlight(l1.ID) {
		t.Error("Expected line control to be re-enabled after failure")
	}
	if c.Pending(l1.ID) != nil {
		t.Error("Expected the failed plan to be consumed")
	}

	// Manual retry
	backend.UpdateErr = nil
	if _, err := c.RequestTransition(l1.ID); err != nil {
		t.Fatalf("RequestTransition retry failed: %v", err)
	}
	if _, err := c.ConfirmTransition(ctx, l1.ID); err != nil {
		t.Fatalf("ConfirmTransition retry failed: %v", err)
	}
	if backend.UpdateCount() != 2 {
		t.Errorf("Expected two update calls, got %d", backend.UpdateCount())
	}
}

func TestController_Confirm_InFlight(t *testing.T) {
	ctx := context.Background()
	backend, l1, _ := buildPlannedScenario()
	other := testhelpers.MustCreateLine(3, "Linea Envasado", "300")
	backend.AddBatches(other, entities.StatePlanned, testhelpers.NewBatch(41, other.ID, 7))
	backend.Block = make(chan struct{})
	backend.Entered = make(chan struct{}, 2)

	c := NewController(backend)
	if err := c.LoadState(ctx, entities.StatePlanned); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if _, err := c.RequestTransition(l1.ID); err != nil {
		t.Fatalf("RequestTransition failed: %v", err)
	}

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = c.ConfirmTransition(ctx, l1.ID)
	}()
	<-backend.Entered

	if !c.InFlight(l1.ID) {
		t.Error("Expected line 1 to be in flight")
	}
	if _, err := c.RequestTransition(l1.ID); !errors.Is(err, entities.ErrTransitionInFlight) {
		t.Errorf("Expected ErrTransitionInFlight on request, got %v", err)
	}
	if _, err := c.ConfirmTransition(ctx, l1.ID); !errors.Is(err, entities.ErrTransitionInFlight) {
		t.Errorf("Expected ErrTransitionInFlight on confirm, got %v", err)
	}

	// Another line is not blocked
	if _, err := c.RequestTransition(other.ID); err != nil {
		t.Errorf("Expected other line to accept a request, got %v", err)
	}
	if c.InFlight(other.ID) {
		t.Error("Expected other line to be idle")
	}

	close(backend.Block)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("Confirm failed: %v", firstErr)
	}
	if backend.UpdateCount() != 1 {
		t.Errorf("Expected one update call, got %d", backend.UpdateCount())
	}
}

func TestController_Confirm_GuardHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	backend, l1, _ := buildPlannedScenario()
	guard := NewMemoryGuard()
	c := NewControllerWithConfig(Config{Guard: guard}, backend)

	if err := c.LoadState(ctx, entities.StatePlanned); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if _, err := c.RequestTransition(l1.ID); err != nil {
		t.Fatalf("RequestTransition failed: %v", err)
	}

	release, err := guard.TryAcquire(ctx, l1.ID)
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	if _, err := c.ConfirmTransition(ctx, l1.ID); !errors.Is(err, entities.ErrTransitionInFlight) {
		t.Errorf("Expected ErrTransitionInFlight, got %v", err)
	}
	if backend.UpdateCount() != 0 {
		t.Error("Expected no backend call while the guard is held")
	}
	_ = release(ctx)
	if guard.Held(l1.ID) {
		t.Error("Expected guard to be released")
	}
}

func TestController_Confirm_ReloadFailure(t *testing.T) {
	ctx := context.Background()
	backend, l1, _ := buildPlannedScenario()
	c := NewController(backend)

	if err := c.LoadState(ctx, entities.StatePlanned); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if _, err := c.RequestTransition(l1.ID); err != nil {
		t.Fatalf("RequestTransition failed: %v", err)
	}
	backend.GroupsErr = errors.New("timeout")

	result, err := c.ConfirmTransition(ctx, l1.ID)
	if err != nil {
		t.Fatalf("Expected transition to stand, got %v", err)
	}
	if result.ReloadErr == nil {
		t.Error("Expected reload error to be reported")
	}
	if c.Group(l1.ID) != nil {
		t.Error("Expected moved batches to be patched out of the view")
	}
}

func TestController_CancelTransition(t *testing.T) {
	backend, l1, _ := buildPlannedScenario()
	c := NewController(backend)
	if err := c.LoadState(context.Background(), entities.StatePlanned); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}

	if c.CancelTransition(l1.ID) {
		t.Error("Expected no plan to cancel")
	}
	if _, err := c.RequestTransition(l1.ID); err != nil {
		t.Fatalf("RequestTransition failed: %v", err)
	}
	if !c.CancelTransition(l1.ID) {
		t.Error("Expected plan to be cancelled")
	}
	if _, err := c.ConfirmTransition(context.Background(), l1.ID); !errors.Is(err, entities.ErrNotConfirmable) {
		t.Errorf("Expected ErrNotConfirmable, got %v", err)
	}
}

func TestController_LoadState_Regroups(t *testing.T) {
	backend := testhelpers.NewStubBackend()
	l1 := testhelpers.MustCreateLine(1, "Linea", "500")
	backend.Groups[entities.StatePlanned] = []*entities.LineGroup{
		{LineID: l1.ID, LineName: l1.Name, Batches: []*entities.Batch{
			{ID: 1, State: entities.StatePlanned, Orders: []entities.BatchOrder{{OrderID: 10}}},
			{ID: 2, State: entities.StateCompleted},
		}},
		{LineID: 2, LineName: "Sin tandas", Batches: []*entities.Batch{
			{ID: 3, State: entities.StateInProgress},
		}},
		{LineID: l1.ID, LineName: l1.Name, Batches: []*entities.Batch{
			{ID: 1, State: entities.StatePlanned, Orders: []entities.BatchOrder{{OrderID: 11}}},
			{ID: 4, State: entities.StatePlanned},
			nil,
		}},
	}

	c := NewController(backend)
	if err := c.LoadState(context.Background(), entities.StatePlanned); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}

	groups := c.Groups()
	if len(groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if len(g.Batches) != 2 || g.Batches[0].ID != 1 || g.Batches[1].ID != 4 {
		t.Fatalf("Expected batches [1 4], got %+v", g.Batches)
	}
	if len(g.Batches[0].Orders) != 2 {
		t.Errorf("Expected rows of batch 1 to be merged, got %d orders", len(g.Batches[0].Orders))
	}
	if g.Batches[0].LineID != l1.ID {
		t.Errorf("Expected owning line to be filled in, got %d", g.Batches[0].LineID)
	}
}

func TestController_UnknownStateFallsBackToCompleted(t *testing.T) {
	backend := testhelpers.NewStubBackend()
	l1 := testhelpers.MustCreateLine(1, "Linea", "500")
	backend.AddBatches(l1, entities.StateCancelled, testhelpers.NewBatch(5, l1.ID, 1))
	c := NewController(backend)

	if err := c.LoadState(context.Background(), entities.StateCancelled); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	plan, err := c.RequestTransition(l1.ID)
	if err != nil {
		t.Fatalf("RequestTransition failed: %v", err)
	}
	if plan.To != entities.StateCompleted {
		t.Errorf("Expected fallback target completada, got %s", plan.To)
	}
}
