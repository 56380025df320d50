package commands

import (
	"context"
	"fmt"

	"github.com/vsinha/tandas/pkg/application/services/lifecycle"
	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/interfaces/cli/output"
)

// BatchesConfig holds configuration for the batches command
type BatchesConfig struct {
	Options
	State     string
	Format    string
	OutputDir string
}

// BatchesCommand prints the batches of one state grouped by line
type BatchesCommand struct {
	config BatchesConfig
}

// NewBatchesCommand creates a new batches command
func NewBatchesCommand(config BatchesConfig) *BatchesCommand {
	return &BatchesCommand{config: config}
}

// Execute runs the batches command
func (c *BatchesCommand) Execute(ctx context.Context) error {
	state, err := entities.ParseBatchState(c.config.State)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	rt, err := OpenRuntime(ctx, c.config.Options)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctl := lifecycle.NewControllerWithConfig(lifecycle.Config{
		Guard:  rt.Guard,
		Logger: rt.Entry("batches"),
	}, rt.Batches)
	if err := ctl.LoadState(ctx, state); err != nil {
		return err
	}

	return output.GenerateBatches(state, ctl.Groups(), output.Config{
		Format:    c.config.Format,
		OutputDir: c.config.OutputDir,
		Verbose:   c.config.Verbose,
		Out:       c.config.out(),
	})
}
