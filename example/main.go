package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tandas/pkg/application/services/composer"
	"github.com/vsinha/tandas/pkg/application/services/lifecycle"
	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/infrastructure/events"
	"github.com/vsinha/tandas/pkg/infrastructure/repositories/memory"
)

func main() {
	ctx := context.Background()

	// In-memory backend with one 500 kg drying line
	backend := memory.NewBackend()
	setupDryingLine(backend)

	store := events.NewInMemoryEventStore()
	session := composer.NewComposerWithConfig(composer.Config{EventStore: store}, backend, backend)
	if err := session.Load(ctx); err != nil {
		fmt.Printf("❌ Load failed: %v\n", err)
		return
	}
	session.SelectLine(1)

	fmt.Println("🧺 Composing a batch for Linea Secado (500 kg)...")
	for _, id := range []entities.OrderID{1, 2, 3} {
		result, err := session.ToggleOrder(id)
		var capErr *entities.CapacityExceededError
		switch {
		case errors.As(err, &capErr):
			fmt.Printf("  ⚠️  %s\n", entities.UserMessage(err))
		case err != nil:
			fmt.Printf("  ❌ %v\n", err)
		default:
			fmt.Printf("  ✅ Order #%d selected: %s kg used, %s kg left\n",
				id, result.Total.String(), result.Remaining.String())
		}
	}
	fmt.Println()

	submitted, err := session.Submit(ctx)
	if err != nil {
		fmt.Printf("❌ %s\n", entities.UserMessage(err))
		return
	}
	fmt.Printf("📦 Batch #%d created with orders %v (%s kg)\n\n",
		submitted.BatchID, submitted.Orders, submitted.Total.String())

	// Walk the new batch through its lifecycle
	ctl := lifecycle.NewControllerWithConfig(lifecycle.Config{EventStore: store}, backend)
	for _, state := range []entities.BatchState{entities.StatePlanned, entities.StateInProgress} {
		if err := ctl.LoadState(ctx, state); err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}
		plan, err := ctl.RequestTransition(1)
		if err != nil {
			fmt.Printf("❌ %s\n", entities.UserMessage(err))
			return
		}
		result, err := ctl.ConfirmTransition(ctx, plan.LineID)
		if err != nil {
			fmt.Printf("❌ %s\n", entities.UserMessage(err))
			return
		}
		fmt.Printf("🔄 Line %d: batches %v moved %s -> %s\n", result.LineID, result.BatchIDs, result.From, result.To)
	}
	fmt.Println()

	all, _ := store.ReadAllEvents(0)
	fmt.Println("📜 Event log:")
	for _, e := range all {
		fmt.Printf("  %s %-24s %s\n", e.Timestamp().Format(time.TimeOnly), e.Type(), e.StreamID())
	}
}

func setupDryingLine(backend *memory.Backend) {
	line, err := entities.NewProductionLine(1, "Linea Secado", "Secado de frutas", decimal.NewFromInt(500), true, nil)
	if err != nil {
		panic(err)
	}
	if err := backend.AddLine(line); err != nil {
		panic(err)
	}

	delivery := time.Now().AddDate(0, 0, 14)
	orders := []struct {
		id      entities.OrderID
		product string
		kg      int64
	}{
		{1, "Pasas", 200},
		{2, "Pasas", 250},
		{3, "Ciruelas", 100},
	}
	for _, o := range orders {
		order, err := entities.NewAcceptedOrder(o.id, line.ID, entities.ProductRef{ID: int64(o.id), Name: o.product}, decimal.NewFromInt(o.kg), delivery)
		if err != nil {
			panic(err)
		}
		if err := backend.AddOrder(order); err != nil {
			panic(err)
		}
	}
}
