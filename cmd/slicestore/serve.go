package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/slicestore/internal/config"
	"github.com/vango-dev/slicestore/pkg/inspect"
	"github.com/vango-dev/slicestore/pkg/observe"
	"github.com/vango-dev/slicestore/pkg/store"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		port       int
		host       string
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo store with the inspector",
		Long: `Run a demo counter store and serve the inspector.

The counter ticks on an interval so the /watch stream and the metrics have
something to show. Stop with Ctrl+C.

Examples:
  slicestore serve
  slicestore serve --port 9000 --interval 500ms
  SLICESTORE_LOG_LEVEL=debug slicestore serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(configPath, ".")
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Inspector.Port = port
			}
			if host != "" {
				cfg.Inspector.Host = host
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, interval, os.Stderr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to slicestore.json (default ./slicestore.json if present)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Inspector port (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Inspector host (default from config)")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Demo tick interval")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, interval time.Duration, logOut io.Writer) error {
	logger := newLogger(logOut, cfg)
	slog.SetDefault(logger)

	shutdown, err := observe.SetupTracing(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	hub := inspect.NewHub()
	observers := []store.Observer{hub}
	if cfg.Metrics.Enabled {
		observers = append(observers, observe.NewMetrics(
			observe.WithRegistry(reg),
			observe.WithNamespace(cfg.Metrics.Namespace),
			observe.WithSubsystem(cfg.Metrics.Subsystem),
		))
	}
	if cfg.Tracing.Endpoint != "" {
		observers = append(observers, observe.NewTracing(
			observe.WithIncludeFields(cfg.Tracing.IncludeFields),
		))
	}

	s := newDemoStore(logger, observers...)
	view, err := mountView(s, logger)
	if err != nil {
		return err
	}
	defer view.Dispose()

	errCh := make(chan error, 1)
	if cfg.Inspector.Enabled {
		ins := inspect.New(s,
			inspect.WithHub(hub),
			inspect.WithGatherer(reg),
			inspect.WithLogger(logger),
		)
		success("Inspector at http://%s", cfg.InspectorAddress())
		info("GET /state  /keys  /metrics  /watch")
		go func() { errCh <- ins.ListenAndServe(ctx, cfg.InspectorAddress()) }()
	}

	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tick(s)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			if cfg.Inspector.Enabled {
				// Wait for the inspector to drain.
				if err := <-errCh; err != nil {
					return err
				}
			}
			logger.Info("stopped", "seq", s.Seq())
			return nil
		}
	}
}

// newLogger builds the process logger from the log section.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
