package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hpcsched/kestrel/internal/config"
	"github.com/hpcsched/kestrel/internal/engine"
	"github.com/hpcsched/kestrel/internal/kvs"
	"github.com/hpcsched/kestrel/internal/metrics"
	"github.com/hpcsched/kestrel/internal/pubsub"
)

// shutdownTimeout bounds the final batch flush on exit.
const shutdownTimeout = 5 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath  string
	Database    string
	MetricsAddr string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the job-manager event engine",
		Long: `Start the kestrel event engine.

The engine opens the SQLite eventlog store (creating it if it doesn't
exist), starts the single-threaded reactor, and serves Prometheus
metrics if an address is configured. Flags override config file values.

Example:
  kestrel run --db ./kestrel.db
  kestrel run --config /etc/kestrel.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite eventlog store")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics", "", "Prometheus listen address, e.g. :9090")

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return failf(ExitUsage, "load config: %w", err)
		}
		cfg = loaded
	}
	if opts.Database != "" {
		cfg.DB = opts.Database
	}
	if opts.MetricsAddr != "" {
		cfg.MetricsAddr = opts.MetricsAddr
	}
	if cfg.DB == "" {
		return failf(ExitUsage, "no database path given (--db or config)")
	}

	logLevel := parseLevel(cfg.LogLevel)
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)

	log.Info("opening eventlog store", "path", cfg.DB)
	store, err := kvs.Open(cfg.DB)
	if err != nil {
		return failf(ExitUsage, "open store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing store", "error", closeErr)
		}
	}()

	collector := metrics.NewCollector()
	reactor := engine.NewReactor()
	eng := engine.New(engine.Options{
		Store:     store,
		Publisher: pubsub.NewBus(),
		Reactor:   reactor,
		Log:       log,
		Stats:     collector,
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: collector.Handler()}
		go func() {
			log.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errCh := make(chan error, 1)
	go func() { errCh <- reactor.Run(ctx) }()

	log.Info("engine started", "db", cfg.DB)

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig)
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return failf(ExitFailure, "engine: %w", err)
		}
		return nil
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer flushCancel()
	if err := eng.Shutdown(flushCtx); err != nil {
		log.Error("shutdown flush incomplete", "error", err)
	}
	reactor.Stop()

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return failf(ExitFailure, "engine: %w", err)
	}
	log.Info("engine stopped gracefully")
	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
