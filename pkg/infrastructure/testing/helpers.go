package testing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/infrastructure/repositories/memory"
)

// ScenarioClock is the fixed time the plant scenario is stamped with
var ScenarioClock = time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

// BuildPlantScenario builds a small dried-fruit plant backed by memory:
//
//	line 1 "Linea Secado"    500 kg, orders 1 (200), 2 (250), 3 (100)
//	line 2 "Linea Molienda" 1000 kg, orders 4 (400), 5 (300); batches 10, 11, 12 planificada
//	line 3 "Linea Envasado"  300 kg, inactive, batch 20 en_progreso
//
// Order 2 is already past its requested delivery at ScenarioClock.
func BuildPlantScenario() *memory.Backend {
	backend := memory.NewBackend()
	backend.SetClock(func() time.Time { return ScenarioClock })

	lines := []*entities.ProductionLine{
		mustLine(1, "Linea Secado", "Secado de frutas", "500", true),
		mustLine(2, "Linea Molienda", "Molienda y tamizado", "1000", true),
		mustLine(3, "Linea Envasado", "Envasado final", "300", true),
	}
	for _, line := range lines {
		must(backend.AddLine(line))
	}

	client := entities.ClientRef{ID: 3, FirstName: "Ana", LastName: "Perez"}
	orders := []struct {
		id       entities.OrderID
		line     entities.LineID
		product  entities.ProductRef
		weight   string
		delivery time.Time
	}{
		{1, 1, entities.ProductRef{ID: 7, Name: "Pasas"}, "200", ScenarioClock.AddDate(0, 0, 20)},
		{2, 1, entities.ProductRef{ID: 7, Name: "Pasas"}, "250", ScenarioClock.AddDate(0, 0, -2)},
		{3, 1, entities.ProductRef{ID: 8, Name: "Ciruelas"}, "100", ScenarioClock.AddDate(0, 1, 0)},
		{4, 2, entities.ProductRef{ID: 9, Name: "Harina de algarrobo"}, "400", ScenarioClock.AddDate(0, 0, 5)},
		{5, 2, entities.ProductRef{ID: 9, Name: "Harina de algarrobo"}, "300", ScenarioClock.AddDate(0, 0, 9)},
	}
	for _, o := range orders {
		order, err := entities.NewAcceptedOrder(o.id, o.line, o.product, decimal.RequireFromString(o.weight), o.delivery)
		must(err)
		order.SalesOrderID = int64(o.id) + 500
		order.Client = client
		order.Units = 10
		order.CreatedAt = ScenarioClock.AddDate(0, 0, -7)
		must(backend.AddOrder(order))
	}

	for i, id := range []entities.BatchID{10, 11, 12} {
		must(backend.AddBatch(batch(id, 2, entities.StatePlanned, entities.OrderID(100+i), "250", i+1)))
	}
	must(backend.AddBatch(batch(20, 3, entities.StateInProgress, 200, "280", 1)))

	return backend
}

func batch(id entities.BatchID, lineID entities.LineID, state entities.BatchState, orderID entities.OrderID, weight string, seq int) *entities.Batch {
	return &entities.Batch{
		ID:        id,
		LineID:    lineID,
		State:     state,
		CreatedAt: ScenarioClock.AddDate(0, 0, -1),
		Orders: []entities.BatchOrder{{
			OrderID:           orderID,
			SalesOrderID:      int64(orderID) + 500,
			Product:           entities.ProductRef{ID: 9, Name: "Harina de algarrobo"},
			Client:            entities.ClientRef{ID: 4, FirstName: "Luis", LastName: "Gomez"},
			Units:             5,
			Weight:            decimal.RequireFromString(weight),
			Sequence:          seq,
			RequestedDelivery: ScenarioClock.AddDate(0, 0, seq),
		}},
	}
}

func mustLine(id entities.LineID, name, description, capacity string, active bool) *entities.ProductionLine {
	line, err := entities.NewProductionLine(id, name, description, decimal.RequireFromString(capacity), active, nil)
	must(err)
	return line
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
