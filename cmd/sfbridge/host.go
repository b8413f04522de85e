package main

import (
	"context"
	"math"

	"github.com/cwbudde/sf-bridge/bridge"
)

// offlineHost drives Process block by block the way an audio callback
// would, sending script events at block boundaries.
type offlineHost struct {
	bridge     *bridge.Bridge
	sampleRate int
	events     []scriptEvent
	next       int
	buffers    [][]float32
	view       [][]float32
}

func newOfflineHost(b *bridge.Bridge, sampleRate, channels, blockSize int, events []scriptEvent) *offlineHost {
	h := &offlineHost{
		bridge:     b,
		sampleRate: sampleRate,
		events:     events,
		buffers:    make([][]float32, channels),
		view:       make([][]float32, channels),
	}
	for c := range h.buffers {
		h.buffers[c] = make([]float32, blockSize)
	}
	return h
}

// dispatch sends every event due at or before frame and waits until the
// control loop has handed them to the render queue.
func (h *offlineHost) dispatch(ctx context.Context, frame int64) error {
	sent := false
	for h.next < len(h.events) && h.frameOf(h.events[h.next].At) <= frame {
		if err := h.bridge.Send(ctx, h.events[h.next].Msg); err != nil {
			return err
		}
		h.next++
		sent = true
	}
	if !sent {
		return nil
	}
	return h.bridge.Flush(ctx)
}

// render runs one tick of n frames. The returned slices are reused by the
// next call.
func (h *offlineHost) render(n int) [][]float32 {
	for c := range h.buffers {
		h.view[c] = h.buffers[c][:n]
		clear(h.view[c])
	}
	h.bridge.Process(h.view)
	return h.view
}

func (h *offlineHost) frameOf(at float64) int64 {
	return int64(math.Round(at * float64(h.sampleRate)))
}
