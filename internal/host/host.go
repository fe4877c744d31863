// Package host assembles the control plane from a configuration: the
// registry snapshot, the engine with its transport, the timing collector
// and the method table.
package host

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/sushid/internal/config"
	"github.com/roach88/sushid/internal/dispatch"
	"github.com/roach88/sushid/internal/engine"
	"github.com/roach88/sushid/internal/registry"
	"github.com/roach88/sushid/internal/timing"
)

// DefaultTimingLog is the capacity of the timing measurement fifo.
const DefaultTimingLog = 4096

// Options tunes the assembled host. Zero values select the defaults of
// the owning packages.
type Options struct {
	Capacity         int
	MaxPerCycle      int
	CallTimeout      time.Duration // negative disables the bound
	TimingStatistics bool
	TimingLog        int
	Logger           *slog.Logger
}

// Host is an assembled, not yet running, control plane.
type Host struct {
	Config   *config.Config
	Registry *registry.Registry
	Engine   *engine.Engine
	Timer    *timing.Timer
	Table    *dispatch.Table
}

// Build assembles a host for cfg, or for config.Default() when cfg is nil.
func Build(cfg *config.Config, opts Options) (*Host, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TimingLog <= 0 {
		opts.TimingLog = DefaultTimingLog
	}

	snap, err := registry.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("build topology: %w", err)
	}
	tr, err := engine.TransportFromConfig(cfg.HostConfig)
	if err != nil {
		return nil, fmt.Errorf("host_config: %w", err)
	}

	timer := timing.New(timing.BlockPeriod(snap.BufferSize, snap.Samplerate), opts.TimingLog)
	timer.SetEnabled(opts.TimingStatistics)

	engOpts := []engine.Option{
		engine.WithTimer(timer),
		engine.WithTransport(tr),
		engine.WithLogger(opts.Logger),
	}
	if opts.Capacity > 0 {
		engOpts = append(engOpts, engine.WithCapacity(opts.Capacity))
	}
	if opts.MaxPerCycle > 0 {
		engOpts = append(engOpts, engine.WithMaxPerCycle(opts.MaxPerCycle))
	}
	eng, err := engine.New(snap, engOpts...)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	reg := registry.New(snap)
	tblOpts := []dispatch.Option{dispatch.WithLogger(opts.Logger)}
	switch {
	case opts.CallTimeout > 0:
		tblOpts = append(tblOpts, dispatch.WithCallTimeout(opts.CallTimeout))
	case opts.CallTimeout < 0:
		tblOpts = append(tblOpts, dispatch.WithCallTimeout(0))
	}

	return &Host{
		Config:   cfg,
		Registry: reg,
		Engine:   eng,
		Timer:    timer,
		Table:    dispatch.New(reg, eng, timer, tblOpts...),
	}, nil
}

// Step renders n blocks on the calling goroutine. It must not run while
// another goroutine drives the engine.
func (h *Host) Step(n int) {
	buf := make([]float32, h.Engine.BlockSize())
	for i := 0; i < n; i++ {
		h.Engine.Process(buf)
	}
}
