package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/vsinha/tandas/pkg/application/services/composer"
	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/interfaces/cli/output"
)

// ComposeConfig holds configuration for the compose command
type ComposeConfig struct {
	Options
	LineID   int64
	OrderIDs []int64
	// Yes submits without asking
	Yes bool
}

// ComposeCommand selects orders on one line and submits them as a batch.
// Orders are toggled in the given order; one that would overflow the line is
// reported and skipped.
type ComposeCommand struct {
	config ComposeConfig
}

// NewComposeCommand creates a new compose command
func NewComposeCommand(config ComposeConfig) *ComposeCommand {
	return &ComposeCommand{config: config}
}

// ErrAborted is returned when the operator declines a confirmation
var ErrAborted = errors.New("aborted by operator")

// Execute runs the compose command
func (c *ComposeCommand) Execute(ctx context.Context) error {
	if c.config.LineID <= 0 {
		return fmt.Errorf("validation error: -line is required")
	}
	if len(c.config.OrderIDs) == 0 {
		return fmt.Errorf("validation error: -orders is required")
	}

	rt, err := OpenRuntime(ctx, c.config.Options)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := c.config.out()
	session := composer.NewComposerWithConfig(composer.Config{Logger: rt.Entry("compose")}, rt.Orders, rt.Batches)
	if err := session.Load(ctx); err != nil {
		return fmt.Errorf("error loading orders: %w", err)
	}
	if !session.SelectLine(entities.LineID(c.config.LineID)) {
		return fmt.Errorf("production line %d is not available", c.config.LineID)
	}

	for _, id := range c.config.OrderIDs {
		result, err := session.ToggleOrder(entities.OrderID(id))
		if err != nil {
			fmt.Fprintf(out, "Skipped order #%d: %s\n", id, entities.UserMessage(err))
			continue
		}
		if c.config.Verbose {
			fmt.Fprintf(out, "Order #%d selected=%v (%s kg selected)\n", id, result.Selected, result.Total.StringFixed(2))
		}
	}

	output.PrintPool(out, session.View())

	if err := session.CheckSubmittable(); err != nil {
		return err
	}
	if !c.config.Yes && !confirm(c.config.in(), out, "Create this batch?") {
		return ErrAborted
	}

	result, err := session.Submit(ctx)
	if err != nil {
		return err
	}

	if result.BatchID > 0 {
		fmt.Fprintf(out, "Batch #%d created on line %d with orders %v (%s kg)\n",
			result.BatchID, result.LineID, result.Orders, result.Total.StringFixed(2))
	} else {
		fmt.Fprintf(out, "Batch created on line %d with orders %v (%s kg)\n",
			result.LineID, result.Orders, result.Total.StringFixed(2))
	}
	return nil
}
