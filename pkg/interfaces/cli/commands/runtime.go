package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vsinha/tandas/pkg/application/services/lifecycle"
	"github.com/vsinha/tandas/pkg/domain/repositories"
	"github.com/vsinha/tandas/pkg/infrastructure/config"
	"github.com/vsinha/tandas/pkg/infrastructure/locking"
	"github.com/vsinha/tandas/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/tandas/pkg/infrastructure/repositories/rest"
)

// Options holds the settings shared by every subcommand
type Options struct {
	ConfigFile  string
	ScenarioDir string
	BackendURL  string
	Verbose     bool

	// In answers confirmation prompts; nil means os.Stdin
	In io.Reader
	// Out receives command output; nil means os.Stdout
	Out io.Writer
}

func (o Options) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

func (o Options) in() io.Reader {
	if o.In == nil {
		return os.Stdin
	}
	return o.In
}

// Runtime is the wired backend and infrastructure a command works with
type Runtime struct {
	Config  *config.Config
	Orders  repositories.OrderRepository
	Batches repositories.BatchRepository
	Guard   lifecycle.Guard
	Logger  *logrus.Logger

	closers []func() error
}

// OpenRuntime loads configuration and connects the backend. A scenario
// directory selects the in-memory backend, otherwise the REST backend is
// used. A configured Redis address enables the shared per-line guard.
func OpenRuntime(ctx context.Context, opts Options) (*Runtime, error) {
	overrides := map[string]interface{}{
		"backend.scenario": opts.ScenarioDir,
		"backend.url":      opts.BackendURL,
	}
	if opts.Verbose {
		overrides["log.level"] = "debug"
	}
	cfg, err := config.LoadWithOverrides(opts.ConfigFile, overrides)
	if err != nil {
		return nil, err
	}

	if err := config.ConfigureLogger(cfg.Log, nil); err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	rt := &Runtime{Config: cfg, Logger: config.GetLogger()}

	if cfg.Backend.Scenario != "" {
		backend, err := csv.NewLoader().LoadScenario(cfg.Backend.Scenario)
		if err != nil {
			return nil, fmt.Errorf("error loading scenario: %w", err)
		}
		rt.Orders, rt.Batches = backend, backend
		rt.Logger.WithField("scenario", cfg.Backend.Scenario).Debug("using in-memory backend")
	} else {
		repo := rest.NewRepository(rest.NewHTTPClient(cfg.Backend.URL, cfg.Backend.Timeout))
		rt.Orders, rt.Batches = repo, repo
		rt.Logger.WithField("url", cfg.Backend.URL).Debug("using REST backend")
	}

	if cfg.Redis.Address != "" {
		rdb, err := locking.Connect(ctx, cfg.Redis.Address)
		if err != nil {
			return nil, err
		}
		rt.Guard = locking.NewRedisGuard(rdb, cfg.Redis.LockTTL)
		rt.closers = append(rt.closers, rdb.Close)
	} else {
		rt.Guard = lifecycle.NewMemoryGuard()
	}

	return rt, nil
}

// Entry returns a log entry tagged with the command name
func (r *Runtime) Entry(command string) *logrus.Entry {
	return r.Logger.WithField("command", command)
}

// Close releases connections opened by OpenRuntime
func (r *Runtime) Close() error {
	var first error
	for _, closeFn := range r.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// confirm asks a yes/no question; anything but y or yes is a no
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		fmt.Fprintln(out)
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

// ParseIDs parses a comma separated list of positive ids
func ParseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
