// Package audio adapts the engine to byte-stream audio outputs.
package audio

import (
	"encoding/binary"
	"math"
)

// Renderer produces mono blocks. Implemented by *engine.Engine.
type Renderer interface {
	Process(out []float32)
	BlockSize() int
}

// BytesPerSample is the size of one encoded sample.
const BytesPerSample = 2

// Reader renders the engine on demand and encodes the output as
// interleaved signed 16-bit little-endian PCM, the mono signal copied to
// every channel. The output device calls Read from its own goroutine,
// which then acts as the audio goroutine. Buffers are allocated once.
type Reader struct {
	r        Renderer
	channels int
	block    []float32
	pcm      []byte
	pos      int // next unread byte in pcm
}

// NewReader creates a reader producing the given number of channels.
func NewReader(r Renderer, channels int) *Reader {
	if channels < 1 {
		channels = 1
	}
	n := r.BlockSize()
	return &Reader{
		r:        r,
		channels: channels,
		block:    make([]float32, n),
		pcm:      make([]byte, 0, n*channels*BytesPerSample),
	}
}

// Read fills p with whole frames, rendering new blocks as needed. It never
// returns an error.
func (rd *Reader) Read(p []byte) (int, error) {
	frame := rd.channels * BytesPerSample
	want := len(p) - len(p)%frame
	n := 0
	for n < want {
		if rd.pos == len(rd.pcm) {
			rd.render()
		}
		c := copy(p[n:want], rd.pcm[rd.pos:])
		rd.pos += c
		n += c
	}
	return n, nil
}

func (rd *Reader) render() {
	rd.r.Process(rd.block)
	rd.pcm = rd.pcm[:0]
	var sample [BytesPerSample]byte
	for _, v := range rd.block {
		binary.LittleEndian.PutUint16(sample[:], uint16(toInt16(v)))
		for c := 0; c < rd.channels; c++ {
			rd.pcm = append(rd.pcm, sample[:]...)
		}
	}
	rd.pos = 0
}

// toInt16 converts a sample to 16 bits, clipping outside [-1, 1].
func toInt16(v float32) int16 {
	switch {
	case v != v:
		return 0
	case v < -1:
		return -math.MaxInt16
	case v > 1:
		return math.MaxInt16
	default:
		return int16(v * math.MaxInt16)
	}
}
