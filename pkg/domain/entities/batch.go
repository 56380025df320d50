package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BatchOrder is one production order carried by a batch
type BatchOrder struct {
	OrderID           OrderID               `json:"order_id"`
	SalesOrderID      int64                 `json:"sales_order_id"`
	Product           ProductRef            `json:"product"`
	Client            ClientRef             `json:"client"`
	Units             int64                 `json:"units"`
	Weight            decimal.Decimal       `json:"weight_kg"`
	Sequence          int                   `json:"sequence"`
	CreatedAt         time.Time             `json:"created_at"`
	RequestedDelivery time.Time             `json:"requested_delivery"`
	PlannedStart      *time.Time            `json:"planned_start,omitempty"`
	PlannedEnd        *time.Time            `json:"planned_end,omitempty"`
	Materials         []MaterialRequirement `json:"materials"`
}

// IsLate reports whether the requested delivery date has already passed
func (o BatchOrder) IsLate(now time.Time) bool {
	return !o.RequestedDelivery.IsZero() && now.After(o.RequestedDelivery)
}

// Batch is a group of production orders scheduled together on one line
type Batch struct {
	ID        BatchID      `json:"id"`
	LineID    LineID       `json:"line_id"`
	State     BatchState   `json:"state"`
	Orders    []BatchOrder `json:"orders"`
	CreatedAt time.Time    `json:"created_at"`
}

// TotalWeight sums the weight of every order in the batch
func (b *Batch) TotalWeight() decimal.Decimal {
	total := decimal.Zero
	for _, o := range b.Orders {
		total = total.Add(o.Weight)
	}
	return total
}

// LineGroup is a line plus its batches in the state being viewed
type LineGroup struct {
	LineID      LineID          `json:"line_id"`
	LineName    string          `json:"line_name"`
	Description string          `json:"description"`
	MaxCapacity decimal.Decimal `json:"max_capacity_kg"`
	Active      bool            `json:"active"`
	Batches     []*Batch        `json:"batches"`
}

// BatchIDs returns the de-duplicated ids of the group's batches in state,
// in first-seen order
func (g *LineGroup) BatchIDs(state BatchState) []BatchID {
	seen := make(map[BatchID]bool, len(g.Batches))
	ids := make([]BatchID, 0, len(g.Batches))
	for _, b := range g.Batches {
		if b == nil || b.State != state || seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		ids = append(ids, b.ID)
	}
	return ids
}

// SubmissionItem is one (order, weight) pair of a batch submission
type SubmissionItem struct {
	OrderID OrderID         `json:"order_id"`
	Weight  decimal.Decimal `json:"weight_kg"`
}

// BatchSubmission is the request that creates a new batch from a selection
type BatchSubmission struct {
	LineID LineID           `json:"line_id"`
	Items  []SubmissionItem `json:"items"`
}

// NewBatchSubmission creates a validated BatchSubmission
func NewBatchSubmission(lineID LineID, items []SubmissionItem) (*BatchSubmission, error) {
	if lineID <= 0 {
		return nil, fmt.Errorf("line id must be positive, got %d", lineID)
	}
	if len(items) == 0 {
		return nil, ErrEmptySelection
	}
	seen := make(map[OrderID]bool, len(items))
	for _, item := range items {
		if seen[item.OrderID] {
			return nil, fmt.Errorf("order %d appears twice in submission", item.OrderID)
		}
		seen[item.OrderID] = true
	}
	return &BatchSubmission{LineID: lineID, Items: items}, nil
}

// OrderIDs returns the submitted order ids in submission order
func (s BatchSubmission) OrderIDs() []OrderID {
	ids := make([]OrderID, len(s.Items))
	for i, item := range s.Items {
		ids[i] = item.OrderID
	}
	return ids
}

// TotalWeight sums the submitted weights
func (s BatchSubmission) TotalWeight() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Weight)
	}
	return total
}
