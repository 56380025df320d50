package dto

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/tandas/pkg/domain/entities"
)

// ToggleResult describes the outcome of flipping one order's selection mark
type ToggleResult struct {
	OrderID entities.OrderID `json:"order_id"`
	// Changed is false when the toggle was a no-op (no active line)
	Changed   bool            `json:"changed"`
	Selected  bool            `json:"selected"`
	Total     decimal.Decimal `json:"selected_kg"`
	Remaining decimal.Decimal `json:"remaining_kg"`
}

// SubmitResult is returned after the backend accepted a new batch
type SubmitResult struct {
	BatchID entities.BatchID   `json:"batch_id"`
	LineID  entities.LineID    `json:"line_id"`
	Orders  []entities.OrderID `json:"order_ids"`
	Total   decimal.Decimal    `json:"total_kg"`
}

// Candidate is one available order as shown to the operator
type Candidate struct {
	Order    *entities.AcceptedOrder `json:"order"`
	Selected bool                    `json:"selected"`
	// Exceeds marks an unselected order that no longer fits on the line
	Exceeds bool `json:"exceeds"`
}

// PoolView is a snapshot of the composer for the active line
type PoolView struct {
	Line          *entities.ProductionLine `json:"line"`
	Candidates    []Candidate              `json:"candidates"`
	SelectedCount int                      `json:"selected_count"`
	Total         decimal.Decimal          `json:"selected_kg"`
	Remaining     decimal.Decimal          `json:"remaining_kg"`
	Empty         bool                     `json:"empty"`
	Submitting    bool                     `json:"submitting"`
}
