package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/interfaces/cli/commands"
)

// command is implemented by every subcommand
type command interface {
	Execute(ctx context.Context) error
}

func main() {
	if len(os.Args) < 2 {
		commands.PrintHelp(os.Stderr)
		os.Exit(2)
	}

	cmd, err := parse(os.Args[1], os.Args[2:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if cmd == nil {
		commands.PrintHelp(os.Stdout)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, commands.ErrAborted) {
			fmt.Fprintln(os.Stderr, "Aborted.")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", entities.UserMessage(err))
		os.Exit(1)
	}
}

func parse(name string, args []string) (command, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	var opts commands.Options
	fs.StringVar(&opts.ConfigFile, "config", "", "Configuration file (optional)")
	fs.StringVar(&opts.ScenarioDir, "scenario", "", "Path to scenario directory containing CSV files")
	fs.StringVar(&opts.BackendURL, "backend", "", "Production backend base URL")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Enable verbose output")

	switch name {
	case "lines":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return commands.NewLinesCommand(opts), nil

	case "compose":
		var (
			lineID = fs.Int64("line", 0, "Production line id")
			orders = fs.String("orders", "", "Comma separated order ids to select, in order")
			yes    = fs.Bool("yes", false, "Create the batch without asking")
		)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		ids, err := commands.ParseIDs(*orders)
		if err != nil {
			return nil, err
		}
		return commands.NewComposeCommand(commands.ComposeConfig{
			Options:  opts,
			LineID:   *lineID,
			OrderIDs: ids,
			Yes:      *yes,
		}), nil

	case "batches":
		var (
			state     = fs.String("state", string(entities.StatePlanned), "Batch state: planificada, en_progreso, completada")
			format    = fs.String("format", "text", "Output format: text, json, csv, xlsx")
			outputDir = fs.String("output", "", "Output directory for results (optional)")
		)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return commands.NewBatchesCommand(commands.BatchesConfig{
			Options:   opts,
			State:     *state,
			Format:    *format,
			OutputDir: *outputDir,
		}), nil

	case "advance":
		var (
			state  = fs.String("state", string(entities.StatePlanned), "State the batches are in")
			lineID = fs.Int64("line", 0, "Production line id")
			yes    = fs.Bool("yes", false, "Apply without asking")
		)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return commands.NewAdvanceCommand(commands.AdvanceConfig{
			Options: opts,
			State:   *state,
			LineID:  *lineID,
			Yes:     *yes,
		}), nil

	case "serve":
		addr := fs.String("addr", "", "Listen address, overrides http.addr")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return commands.NewServeCommand(commands.ServeConfig{Options: opts, Addr: *addr}), nil

	case "help", "-h", "-help", "--help":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown command %q, run 'tandas help'", name)
	}
}
