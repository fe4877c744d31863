package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sushid/internal/config"
	"github.com/roach88/sushid/internal/engine"
	"github.com/roach88/sushid/internal/registry"
	"github.com/roach88/sushid/internal/timing"
)

// Stack is an engine with its registry and timing collector, built from a
// configuration. The engine is ready but not driven until Drive is called.
type Stack struct {
	Config   *config.Config
	Registry *registry.Registry
	Engine   *engine.Engine
	Timer    *timing.Timer
}

// NewStack builds a stack for cfg, or for config.Default() when cfg is
// nil. Timing statistics are enabled; tests call Timer.Update to merge
// measurements.
func NewStack(t testing.TB, cfg *config.Config, opts ...engine.Option) *Stack {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	snap, err := registry.Build(cfg)
	require.NoError(t, err)

	tr, err := engine.TransportFromConfig(cfg.HostConfig)
	require.NoError(t, err)

	timer := timing.New(timing.BlockPeriod(snap.BufferSize, snap.Samplerate), 4096)
	timer.SetEnabled(true)

	opts = append([]engine.Option{engine.WithTimer(timer), engine.WithTransport(tr)}, opts...)
	eng, err := engine.New(snap, opts...)
	require.NoError(t, err)
	eng.SetReady(true)

	return &Stack{
		Config:   cfg,
		Registry: registry.New(snap),
		Engine:   eng,
		Timer:    timer,
	}
}

// Drive calls Engine.Process from one goroutine until the test ends.
func (s *Stack) Drive(t testing.TB) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]float32, s.Engine.BlockSize())
		for ctx.Err() == nil {
			s.Engine.Process(buf)
			time.Sleep(200 * time.Microsecond)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// Step renders n blocks on the calling goroutine. It must not be mixed
// with Drive.
func (s *Stack) Step(n int) {
	buf := make([]float32, s.Engine.BlockSize())
	for i := 0; i < n; i++ {
		s.Engine.Process(buf)
	}
}
