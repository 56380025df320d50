package dto

import (
	"time"

	"github.com/vsinha/tandas/pkg/domain/entities"
)

// TransitionPlan is a bulk transition waiting for operator confirmation
type TransitionPlan struct {
	LineID      entities.LineID     `json:"line_id"`
	LineName    string              `json:"line_name"`
	From        entities.BatchState `json:"from"`
	To          entities.BatchState `json:"to"`
	BatchIDs    []entities.BatchID  `json:"batch_ids"`
	RequestedAt time.Time           `json:"requested_at"`
}

// TransitionResult is returned after the backend applied a bulk transition.
// ReloadErr is set when the follow-up refresh failed; the transition itself
// still happened.
type TransitionResult struct {
	LineID    entities.LineID     `json:"line_id"`
	From      entities.BatchState `json:"from"`
	To        entities.BatchState `json:"to"`
	BatchIDs  []entities.BatchID  `json:"batch_ids"`
	ReloadErr error               `json:"-"`
}
