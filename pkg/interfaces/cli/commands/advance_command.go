package commands

import (
	"context"
	"fmt"

	"github.com/vsinha/tandas/pkg/application/services/lifecycle"
	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/interfaces/cli/output"
)

// AdvanceConfig holds configuration for the advance command
type AdvanceConfig struct {
	Options
	State  string
	LineID int64
	// Yes confirms without asking
	Yes bool
}

// AdvanceCommand moves every batch of one line in the given state to the
// next state, after the operator confirms the plan
type AdvanceCommand struct {
	config AdvanceConfig
}

// NewAdvanceCommand creates a new advance command
func NewAdvanceCommand(config AdvanceConfig) *AdvanceCommand {
	return &AdvanceCommand{config: config}
}

// Execute runs the advance command
func (c *AdvanceCommand) Execute(ctx context.Context) error {
	state, err := entities.ParseBatchState(c.config.State)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if c.config.LineID <= 0 {
		return fmt.Errorf("validation error: -line is required")
	}
	lineID := entities.LineID(c.config.LineID)

	rt, err := OpenRuntime(ctx, c.config.Options)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := c.config.out()
	ctl := lifecycle.NewControllerWithConfig(lifecycle.Config{
		Guard:  rt.Guard,
		Logger: rt.Entry("advance"),
	}, rt.Batches)
	if err := ctl.LoadState(ctx, state); err != nil {
		return err
	}

	plan, err := ctl.RequestTransition(lineID)
	if err != nil {
		return err
	}
	output.PrintPlan(out, plan)

	if !c.config.Yes && !confirm(c.config.in(), out, "Apply this change?") {
		ctl.CancelTransition(lineID)
		return ErrAborted
	}

	result, err := ctl.ConfirmTransition(ctx, lineID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Line %d: %d batch(es) moved from %s to %s\n",
		result.LineID, len(result.BatchIDs), result.From, result.To)
	if result.ReloadErr != nil {
		fmt.Fprintf(out, "Warning: could not refresh the %s view: %s\n", result.From, entities.UserMessage(result.ReloadErr))
	}
	return nil
}
