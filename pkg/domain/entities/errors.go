package entities

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Conditions raised by batch composition and lifecycle transitions. All of
// them are recoverable by the operator.
var (
	ErrCapacityExceeded    = errors.New("line capacity exceeded")
	ErrEmptySelection      = errors.New("no orders selected")
	ErrZeroWeight          = errors.New("selected weight must be greater than zero")
	ErrNothingToTransition = errors.New("no batches to update")
	ErrSubmissionFailed    = errors.New("batch submission failed")
	ErrTransitionFailed    = errors.New("batch transition failed")

	ErrNoLineSelected     = errors.New("no production line selected")
	ErrOrderNotAvailable  = errors.New("order not available on line")
	ErrSubmitInFlight     = errors.New("batch submission already in progress")
	ErrTransitionInFlight = errors.New("transition already in progress for line")
	ErrNotConfirmable     = errors.New("no pending transition to confirm")
	ErrTerminalState      = errors.New("batch state is terminal")
	ErrInvalidState       = errors.New("invalid batch state")
)

// CapacityExceededError is returned when selecting an order would push the
// selected total over the line's maximum capacity
type CapacityExceededError struct {
	LineID   LineID
	OrderID  OrderID
	Weight   decimal.Decimal
	Selected decimal.Decimal
	Capacity decimal.Decimal
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf(
		"line %d: order %d (%s kg) on top of %s kg exceeds capacity of %s kg",
		e.LineID, e.OrderID, e.Weight, e.Selected, e.Capacity,
	)
}

// Is matches ErrCapacityExceeded
func (e *CapacityExceededError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// SubmissionFailedError wraps a backend rejection of a batch submission
type SubmissionFailedError struct {
	LineID LineID
	Orders []OrderID
	Err    error
}

func (e *SubmissionFailedError) Error() string {
	return fmt.Sprintf("line %d: %v: %v", e.LineID, ErrSubmissionFailed, e.Err)
}

// Is matches ErrSubmissionFailed
func (e *SubmissionFailedError) Is(target error) bool {
	return target == ErrSubmissionFailed
}

func (e *SubmissionFailedError) Unwrap() error {
	return e.Err
}

// TransitionFailedError wraps a backend rejection of a bulk state update
type TransitionFailedError struct {
	LineID   LineID
	From     BatchState
	To       BatchState
	BatchIDs []BatchID
	Err      error
}

func (e *TransitionFailedError) Error() string {
	return fmt.Sprintf("line %d: %v (%s -> %s): %v", e.LineID, ErrTransitionFailed, e.From, e.To, e.Err)
}

// Is matches ErrTransitionFailed
func (e *TransitionFailedError) Is(target error) bool {
	return target == ErrTransitionFailed
}

func (e *TransitionFailedError) Unwrap() error {
	return e.Err
}

// UserMessage converts an error from this module into a message fit for an
// operator. Unknown errors keep their own text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var capErr *CapacityExceededError
	var subErr *SubmissionFailedError
	var trErr *TransitionFailedError

	switch {
	case errors.As(err, &capErr):
		return fmt.Sprintf(
			"Capacity exceeded: order #%d (%s kg) would bring line %d to %s kg, above its %s kg maximum.",
			capErr.OrderID, capErr.Weight, capErr.LineID, capErr.Selected.Add(capErr.Weight), capErr.Capacity,
		)
	case errors.As(err, &subErr):
		return fmt.Sprintf("Could not create the batch for line %d: %v. The selection was kept, retry when ready.", subErr.LineID, subErr.Err)
	case errors.As(err, &trErr):
		return fmt.Sprintf("Could not move line %d from %q to %q: %v. Nothing was changed, retry when ready.", trErr.LineID, trErr.From, trErr.To, trErr.Err)
	case errors.Is(err, ErrEmptySelection):
		return "Empty selection: select at least one order to generate a batch."
	case errors.Is(err, ErrZeroWeight):
		return "Invalid weight: the selected total must be greater than 0 kg."
	case errors.Is(err, ErrNothingToTransition):
		return "Nothing to update: the line has no batches in this state."
	case errors.Is(err, ErrNoLineSelected):
		return "Select a production line first."
	case errors.Is(err, ErrOrderNotAvailable):
		return "That order is no longer available on the selected line."
	case errors.Is(err, ErrSubmitInFlight):
		return "A batch is already being submitted, wait for it to finish."
	case errors.Is(err, ErrTransitionInFlight):
		return "This line is already being updated, wait for it to finish."
	case errors.Is(err, ErrNotConfirmable):
		return "Request the transition before confirming it."
	case errors.Is(err, ErrTerminalState):
		return "Completed batches cannot change state."
	case errors.Is(err, ErrInvalidState):
		return err.Error()
	default:
		return err.Error()
	}
}
