package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ProductionLine is a manufacturing line with a fixed maximum capacity in kg.
// It is read-only for the duration of a composition session.
type ProductionLine struct {
	ID          LineID          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	MaxCapacity decimal.Decimal `json:"max_capacity_kg"`
	Active      bool            `json:"active"`
	ProductIDs  []int64         `json:"product_ids"`
}

// NewProductionLine creates a validated ProductionLine
func NewProductionLine(
	id LineID,
	name, description string,
	maxCapacity decimal.Decimal,
	active bool,
	productIDs []int64,
) (*ProductionLine, error) {
	if id <= 0 {
		return nil, fmt.Errorf("line id must be positive, got %d", id)
	}
	if name == "" {
		return nil, fmt.Errorf("line name cannot be empty")
	}
	if maxCapacity.IsNegative() {
		return nil, fmt.Errorf("max capacity cannot be negative, got %s", maxCapacity)
	}

	return &ProductionLine{
		ID:          id,
		Name:        name,
		Description: description,
		MaxCapacity: maxCapacity,
		Active:      active,
		ProductIDs:  productIDs,
	}, nil
}

// Fits reports whether a batch of the given total weight fits on the line
func (l *ProductionLine) Fits(total decimal.Decimal) bool {
	return total.LessThanOrEqual(l.MaxCapacity)
}

// Remaining returns the unused capacity for a selected total, never below zero
func (l *ProductionLine) Remaining(total decimal.Decimal) decimal.Decimal {
	remaining := l.MaxCapacity.Sub(total)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Handles reports whether the line is eligible for the product
func (l *ProductionLine) Handles(productID int64) bool {
	for _, id := range l.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}
