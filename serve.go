package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tabvault/tabvault/internal/browser"
	"github.com/tabvault/tabvault/internal/config"
	"github.com/tabvault/tabvault/internal/engine"
	"github.com/tabvault/tabvault/internal/store"
)

// Reconnect backoff bounds for the browser bridge connection.
const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync daemon",
		Long:  "Connects to the browser bridge and syncs tab changes until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	logger := buildLogger()
	cfg := loadedCfg

	ctx := shutdownContext(parent, logger)

	st := store.Open(cfg.Database.Path, logger)
	defer st.Close()

	eng := engine.New(engine.Config{
		Store:           st,
		Logger:          logger,
		DefaultDebounce: time.Duration(cfg.Sync.DebounceMs) * time.Millisecond,
	})
	if err := eng.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing sync engine: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runBridge(ctx, cfg.Bridge.URL, eng, logger)
	})

	// Hot-reload the config file when present. Only the debounce interval
	// applies live; database and bridge changes need a restart.
	if path := configWatchPath(); path != "" {
		g.Go(func() error {
			return config.Watch(ctx, path, logger, func(next *config.Config) {
				eng.SetDefaultDebounce(time.Duration(next.Sync.DebounceMs) * time.Millisecond)
			})
		})
	}

	err := g.Wait()

	// Final flush so a clean shutdown never drops queued changes.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if ferr := eng.Flush(flushCtx); ferr != nil {
		logger.Error("final flush failed", "error", ferr)
	}

	eng.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// runBridge keeps a bridge connection alive until the context is canceled,
// reconnecting with exponential backoff on failure.
func runBridge(ctx context.Context, url string, eng *engine.Engine, logger *slog.Logger) error {
	backoff := reconnectMin

	for {
		client, err := browser.Dial(ctx, url, logger)
		if err == nil {
			backoff = reconnectMin

			// The client doubles as the engine's snapshot source for
			// on-demand tab and group fetches; it is only valid while
			// this connection lives.
			eng.SetSnapshot(client)
			err = client.Run(ctx, eng)
			eng.SetSnapshot(nil)

			client.Close()
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn("bridge connection lost, reconnecting",
			"error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// configWatchPath returns the config file to watch for live reloads, or ""
// when no config file exists on disk.
func configWatchPath() string {
	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err != nil {
		return ""
	}

	return path
}
