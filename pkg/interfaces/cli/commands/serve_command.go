package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vsinha/tandas/pkg/infrastructure/events"
	"github.com/vsinha/tandas/pkg/interfaces/api"
)

const shutdownTimeout = 30 * time.Second

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Options
	// Addr overrides http.addr when set
	Addr string
}

// ServeCommand runs the HTTP API until ctx is cancelled
type ServeCommand struct {
	config ServeConfig
}

// NewServeCommand creates a new serve command
func NewServeCommand(config ServeConfig) *ServeCommand {
	return &ServeCommand{config: config}
}

// Execute runs the serve command
func (c *ServeCommand) Execute(ctx context.Context) error {
	rt, err := OpenRuntime(ctx, c.config.Options)
	if err != nil {
		return err
	}
	defer rt.Close()

	addr := rt.Config.HTTP.Addr
	if c.config.Addr != "" {
		addr = c.config.Addr
	}

	server := api.NewServer(api.Config{
		CORSOrigins: rt.Config.HTTP.CORSOrigins,
		Guard:       rt.Guard,
		EventStore:  events.NewInMemoryEventStore(),
		Logger:      rt.Logger,
		SessionTTL:  rt.Config.HTTP.SessionTTL,
		MaxSessions: rt.Config.HTTP.MaxSessions,
	}, rt.Orders, rt.Batches)

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	rt.Logger.WithFields(logrus.Fields{"addr": addr}).Info("http api listening")

	select {
	case <-ctx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	rt.Logger.Info("http api stopped")
	return nil
}
