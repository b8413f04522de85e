package bridge

import (
	"errors"

	"github.com/cwbudde/sf-bridge/engine"
)

var errRenderPanic = errors.New("bridge: engine panicked")

// Process is the render tick. The host calls it once per audio period with
// one buffer per output channel, all of the same length. It always returns
// true.
//
// Before SynthReady the buffers are left as they are; hosts that need
// silence must pre-zero them. Once ready, channels 0 and 1 are overwritten
// with exactly len(outputs[0]) frames and further channels are untouched.
// A mono output receives the left signal. If the engine fails, the block is
// silent.
//
// Process must not be called concurrently with itself.
func (b *Bridge) Process(outputs [][]float32) bool {
	b.stats.ticks.Add(1)
	if len(outputs) == 0 || len(outputs[0]) == 0 {
		return true
	}
	if b.State() != SynthReady {
		return true
	}
	h := b.eng.Load()
	if h == nil {
		return true
	}

	n := len(outputs[0])
	left := outputs[0]
	var right []float32
	if len(outputs) > 1 && len(outputs[1]) >= n {
		right = outputs[1][:n]
	} else {
		if cap(b.scratch) < n {
			b.scratch = make([]float32, n)
		}
		right = b.scratch[:n]
	}

	if err := b.tick(h.engine, left, right); err != nil {
		clear(left)
		clear(right)
		b.stats.renderFaults.Add(1)
	}
	b.frame.Add(int64(n))
	b.stats.frames.Add(uint64(n))
	return true
}

// tick drains the command queue without blocking and renders one block.
// The drain is bounded by the queue capacity.
func (b *Bridge) tick(e engine.Engine, left, right []float32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errRenderPanic
		}
	}()
	now := b.frame.Load()
drain:
	for range cap(b.commands) {
		select {
		case cmd := <-b.commands:
			if cmd.apply(e, now) {
				b.stats.lateCommands.Add(1)
			}
		default:
			break drain
		}
	}
	return e.Render(left, right)
}
