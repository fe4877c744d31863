package engine

import (
	"fmt"

	"github.com/roach88/sushid/internal/config"
	"github.com/roach88/sushid/internal/control"
)

// Transport is the engine-global transport state.
type Transport struct {
	PlayingMode   control.PlayingMode
	SyncMode      control.SyncMode
	Tempo         float64
	TimeSignature control.TimeSignature
}

// DefaultTransport is the transport of an engine started without host
// settings.
func DefaultTransport() Transport {
	return Transport{
		PlayingMode:   control.Stopped,
		SyncMode:      control.SyncInternal,
		Tempo:         config.DefaultTempo,
		TimeSignature: control.TimeSignature{Numerator: 4, Denominator: 4},
	}
}

// TransportFromConfig derives the initial transport from host settings.
func TransportFromConfig(h config.HostConfig) (Transport, error) {
	tr := DefaultTransport()
	if h.Tempo != 0 {
		if err := control.ValidateTempo(h.Tempo); err != nil {
			return tr, fmt.Errorf("host_config.tempo: %w", err)
		}
		tr.Tempo = h.Tempo
	}
	if h.TimeSignature != nil {
		if err := h.TimeSignature.Validate(); err != nil {
			return tr, fmt.Errorf("host_config.time_signature: %w", err)
		}
		tr.TimeSignature = *h.TimeSignature
	}
	if h.PlayingMode != "" {
		m, err := control.ParsePlayingMode(h.PlayingMode)
		if err != nil {
			return tr, fmt.Errorf("host_config.playing_mode: %w", err)
		}
		tr.PlayingMode = m
	}
	if h.TempoSync != "" {
		m, err := control.ParseSyncMode(h.TempoSync)
		if err != nil {
			return tr, fmt.Errorf("host_config.tempo_sync: %w", err)
		}
		tr.SyncMode = m
	}
	return tr, nil
}
