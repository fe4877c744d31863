// Package device plays the engine through the system audio output.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/roach88/sushid/internal/audio"
	"github.com/roach88/sushid/internal/engine"
)

// Channels is the output channel count.
const Channels = 2

// DefaultBufferBlocks is the device buffer length in engine blocks.
const DefaultBufferBlocks = 4

// Options configures the output.
type Options struct {
	// BufferBlocks sets the device buffer length in engine blocks. Larger
	// buffers survive scheduling hiccups at the cost of latency.
	BufferBlocks int
	Logger       *slog.Logger
}

// Run plays eng until ctx is done. The device's callback goroutine becomes
// the engine's audio goroutine. The engine is marked ready once playback
// has started and not ready when Run returns.
//
// Only one output context may exist per process.
func Run(ctx context.Context, eng *engine.Engine, opts Options) error {
	if opts.BufferBlocks <= 0 {
		opts.BufferBlocks = DefaultBufferBlocks
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	blockDur := time.Duration(float64(eng.BlockSize()) / eng.Samplerate() * float64(time.Second))
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(eng.Samplerate()),
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(opts.BufferBlocks) * blockDur,
	})
	if err != nil {
		return fmt.Errorf("cannot create audio context: %w", err)
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	player := otoCtx.NewPlayer(audio.NewReader(eng, Channels))
	eng.SetReady(true)
	defer eng.SetReady(false)
	player.Play()
	opts.Logger.Info("engine starting", "frontend", "device", "samplerate", eng.Samplerate(), "buffer_size", eng.BlockSize(), "buffer_blocks", opts.BufferBlocks)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			player.Pause()
			st := eng.Stats()
			opts.Logger.Info("engine stopping: context cancelled", "cycles", st.Cycles, "applied", st.Applied, "rejected", st.Rejected)
			return ctx.Err()
		case <-ticker.C:
			if err := player.Err(); err != nil {
				return fmt.Errorf("audio output failed: %w", err)
			}
		}
	}
}
