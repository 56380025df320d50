package commands

import (
	"context"
	"fmt"

	"github.com/vsinha/tandas/pkg/application/services/composer"
	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/interfaces/cli/output"
)

// LinesCommand lists the active production lines and their waiting orders
type LinesCommand struct {
	options Options
}

// NewLinesCommand creates a new lines command
func NewLinesCommand(options Options) *LinesCommand {
	return &LinesCommand{options: options}
}

// Execute runs the lines command
func (c *LinesCommand) Execute(ctx context.Context) error {
	rt, err := OpenRuntime(ctx, c.options)
	if err != nil {
		return err
	}
	defer rt.Close()

	session := composer.NewComposerWithConfig(composer.Config{Logger: rt.Entry("lines")}, rt.Orders, rt.Batches)
	if err := session.Load(ctx); err != nil {
		return fmt.Errorf("error loading lines: %w", err)
	}

	lines := session.Lines()
	pools := make(map[entities.LineID][]*entities.AcceptedOrder, len(lines))
	for _, line := range lines {
		pools[line.ID] = session.Pool(line.ID)
	}

	out := c.options.out()
	if len(lines) == 0 {
		fmt.Fprintln(out, "No active production lines.")
		return nil
	}
	output.PrintLines(out, lines, pools)
	return nil
}
