package events

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/tandas/pkg/domain/entities"
)

const (
	SelectionRejectedEvent = "selection.rejected"

	BatchSubmittedEvent        = "batch.submitted"
	BatchSubmissionFailedEvent = "batch.submission_failed"

	BatchTransitionedEvent     = "batch.transitioned"
	BatchTransitionFailedEvent = "batch.transition_failed"
)

type SelectionRejected struct {
	LineID   entities.LineID  `json:"line_id"`
	OrderID  entities.OrderID `json:"order_id"`
	Weight   decimal.Decimal  `json:"weight_kg"`
	Selected decimal.Decimal  `json:"selected_kg"`
	Capacity decimal.Decimal  `json:"capacity_kg"`
}

type BatchSubmitted struct {
	LineID  entities.LineID    `json:"line_id"`
	BatchID entities.BatchID   `json:"batch_id"`
	Orders  []entities.OrderID `json:"order_ids"`
	Total   decimal.Decimal    `json:"total_kg"`
}

type BatchSubmissionFailed struct {
	LineID entities.LineID    `json:"line_id"`
	Orders []entities.OrderID `json:"order_ids"`
	Reason string             `json:"reason"`
}

type BatchTransitioned struct {
	LineID   entities.LineID     `json:"line_id"`
	BatchIDs []entities.BatchID  `json:"batch_ids"`
	From     entities.BatchState `json:"from"`
	To       entities.BatchState `json:"to"`
}

type BatchTransitionFailed struct {
	LineID   entities.LineID     `json:"line_id"`
	BatchIDs []entities.BatchID  `json:"batch_ids"`
	From     entities.BatchState `json:"from"`
	To       entities.BatchState `json:"to"`
	Reason   string              `json:"reason"`
}
