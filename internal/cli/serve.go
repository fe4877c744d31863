package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sushid/internal/audio/device"
	"github.com/roach88/sushid/internal/dispatch"
	"github.com/roach88/sushid/internal/engine"
	"github.com/roach88/sushid/internal/host"
	"github.com/roach88/sushid/internal/rpc"
	"github.com/roach88/sushid/internal/store"
)

// DefaultListen is the conventional control port.
const DefaultListen = ":19019"

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Config           string
	Listen           string
	Capacity         int
	MaxPerCycle      int
	CallTimeout      time.Duration
	Journal          string
	Device           bool
	BufferBlocks     int
	TimingStatistics bool
	TimingInterval   time.Duration
	MaxInFlight      int

	// Ready is called with the bound address once the server accepts
	// connections. Used by tests listening on port 0.
	Ready func(addr string)

	// IDGenerator overrides session ids (for testing). Nil selects UUIDv7.
	IDGenerator rpc.IDGenerator
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and its JSON-RPC control server",
		Long: `Run the audio engine and serve its control surface as JSON-RPC 2.0
over WebSocket. Plain HTTP POST requests are answered as single calls.

The engine is driven by an offline ticker at the block period unless
--device is given, in which case it plays through the system audio output.
Configured events are applied after start. With --journal, every mutating
call is recorded to a SQLite journal.

Examples:
  sushid serve
  sushid serve --config engine.yaml --listen 127.0.0.1:19019
  sushid serve --device --journal ./calls.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "engine configuration file (YAML or JSON); default topology if empty")
	cmd.Flags().StringVar(&opts.Listen, "listen", DefaultListen, "listen address")
	cmd.Flags().IntVar(&opts.Capacity, "capacity", engine.DefaultCapacity, "command channel capacity")
	cmd.Flags().IntVar(&opts.MaxPerCycle, "max-per-cycle", engine.DefaultMaxPerCycle, "commands applied per audio cycle")
	cmd.Flags().DurationVar(&opts.CallTimeout, "call-timeout", dispatch.DefaultCallTimeout, "how long a call waits for the audio goroutine")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record mutating calls to this SQLite file")
	cmd.Flags().BoolVar(&opts.Device, "device", false, "play through the system audio output")
	cmd.Flags().IntVar(&opts.BufferBlocks, "buffer-blocks", device.DefaultBufferBlocks, "device buffer length in engine blocks")
	cmd.Flags().BoolVar(&opts.TimingStatistics, "timing-statistics", false, "enable timing statistics at start")
	cmd.Flags().DurationVar(&opts.TimingInterval, "timing-interval", 100*time.Millisecond, "timing statistics update interval")
	cmd.Flags().IntVar(&opts.MaxInFlight, "max-in-flight", rpc.DefaultMaxInFlight, "calls in flight per session; 0 disables the limit")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	cfg, _, err := loadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	callTimeout := opts.CallTimeout
	if callTimeout == 0 {
		callTimeout = -1
	}
	h, err := host.Build(cfg, host.Options{
		Capacity:         opts.Capacity,
		MaxPerCycle:      opts.MaxPerCycle,
		CallTimeout:      callTimeout,
		TimingStatistics: opts.TimingStatistics,
		Logger:           logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build engine", err)
	}

	gwOpts := []rpc.Option{rpc.WithLogger(logger), rpc.WithMaxInFlight(opts.MaxInFlight)}
	if opts.IDGenerator != nil {
		gwOpts = append(gwOpts, rpc.WithIDGenerator(opts.IDGenerator))
	}

	if opts.Journal != "" {
		st, err := store.Open(opts.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		rec := store.NewRecorder(st, store.WithLogger(logger))
		defer func() {
			if closeErr := rec.Close(); closeErr != nil {
				logger.Error("error flushing journal", "error", closeErr)
			}
			logger.Info("journal closed", "written", rec.Written(), "dropped", rec.Dropped())
		}()
		gwOpts = append(gwOpts, rpc.WithRecorder(rec))
		logger.Info("journal ready", "path", opts.Journal)
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

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	gw := rpc.NewGateway(h.Table, gwOpts...)
	srv := &http.Server{Handler: gw, ReadHeaderTimeout: 5 * time.Second}

	// Accept commands from the first connection on; they apply once the
	// frontend renders its first block.
	h.Engine.SetReady(true)
	errc := make(chan error, 3)
	go func() {
		if opts.Device {
			errc <- device.Run(ctx, h.Engine, device.Options{BufferBlocks: opts.BufferBlocks, Logger: logger})
			return
		}
		errc <- h.Engine.Run(ctx)
	}()
	go h.Timer.Run(ctx, opts.TimingInterval)
	go func() {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()
	if len(cfg.Events) > 0 {
		go func() {
			if err := h.Table.RunEvents(ctx, cfg.Events); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("configured events interrupted", "error", err)
			}
		}()
	}

	addr := ln.Addr().String()
	logger.Info("control server listening", "addr", addr, "tracks", len(cfg.Tracks), "device", opts.Device)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on ws://%s\n", addr)
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := gw.Close(); err != nil {
		logger.Warn("gateway close failed", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", runErr)
	}
	st := h.Engine.Stats()
	logger.Info("server stopped gracefully", "cycles", st.Cycles, "applied", st.Applied, "rejected", st.Rejected)
	return nil
}
