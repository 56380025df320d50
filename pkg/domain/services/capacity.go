package services

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/tandas/pkg/domain/entities"
)

// CapacityPolicy enforces the rule that a line's selected orders never weigh
// more than the line's maximum capacity
type CapacityPolicy struct{}

// NewCapacityPolicy creates a new capacity policy
func NewCapacityPolicy() *CapacityPolicy {
	return &CapacityPolicy{}
}

// SelectedTotal sums the weight of the pool orders marked in the selection.
// It always scans the selection, there is no cached running total.
func (p *CapacityPolicy) SelectedTotal(sel *entities.Selection, pool []*entities.AcceptedOrder) decimal.Decimal {
	total := decimal.Zero
	if sel == nil {
		return total
	}
	for _, order := range pool {
		if order != nil && sel.IsSelected(order.ID) {
			total = total.Add(entities.CoerceKilograms(order.Weight))
		}
	}
	return total
}

// Exceeds reports whether adding weight to total would overflow the line
func (p *CapacityPolicy) Exceeds(line *entities.ProductionLine, total, weight decimal.Decimal) bool {
	return !line.Fits(total.Add(entities.CoerceKilograms(weight)))
}

// CheckAddition returns a *entities.CapacityExceededError when selecting the
// order would overflow the line, nil otherwise
func (p *CapacityPolicy) CheckAddition(
	line *entities.ProductionLine,
	orderID entities.OrderID,
	weight, total decimal.Decimal,
) error {
	weight = entities.CoerceKilograms(weight)
	if !p.Exceeds(line, total, weight) {
		return nil
	}
	return &entities.CapacityExceededError{
		LineID:   line.ID,
		OrderID:  orderID,
		Weight:   weight,
		Selected: total,
		Capacity: line.MaxCapacity,
	}
}

// CheckSubmittable validates the submit preconditions in order: something
// is selected, and the selected total is positive
func (p *CapacityPolicy) CheckSubmittable(selectedCount int, total decimal.Decimal) error {
	if selectedCount == 0 {
		return entities.ErrEmptySelection
	}
	if !total.IsPositive() {
		return entities.ErrZeroWeight
	}
	return nil
}
