//go:build !headless

package main

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/cwbudde/sf-bridge/bridge"
)

// audioOutput pulls blocks from the bridge on the device callback.
type audioOutput struct {
	ctx      *oto.Context
	player   *oto.Player
	bridge   *bridge.Bridge
	channels int
	buffers  [][]float32
	view     [][]float32
	started  bool
	mu       sync.Mutex // guards player start and close
}

func newAudioOutput(b *bridge.Bridge, sampleRate, channels, blockSize int) (*audioOutput, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4 * time.Duration(blockSize) * time.Second / time.Duration(sampleRate),
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	o := &audioOutput{
		ctx:      ctx,
		bridge:   b,
		channels: channels,
		buffers:  make([][]float32, channels),
		view:     make([][]float32, channels),
	}
	for c := range o.buffers {
		o.buffers[c] = make([]float32, blockSize)
	}
	o.player = ctx.NewPlayer(o)
	return o, nil
}

// Read implements io.Reader for the oto player. It renders whole frames in
// ticks of at most one block.
func (o *audioOutput) Read(p []byte) (int, error) {
	frameBytes := 4 * o.channels
	frames := len(p) / frameBytes
	block := len(o.buffers[0])
	written := 0
	for frames > 0 {
		n := min(frames, block)
		for c := range o.buffers {
			o.view[c] = o.buffers[c][:n]
			clear(o.view[c])
		}
		o.bridge.Process(o.view)
		for i := range n {
			for c := range o.view {
				binary.LittleEndian.PutUint32(p[written:], math.Float32bits(o.view[c][i]))
				written += 4
			}
		}
		frames -= n
	}
	return written, nil
}

func (o *audioOutput) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started {
		o.player.Play()
		o.started = true
	}
}

func (o *audioOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		_ = o.player.Close()
		o.player = nil
	}
	o.started = false
}
