// Package engine defines the narrow surface a synthesis engine exposes to the
// real-time bridge, plus the loaders that turn engine module bytes into a
// constructor.
//
// An Engine is driven from a single render goroutine. Only PresetHeaders may
// be called from other goroutines; its result is fixed at construction time.
package engine

import (
	"context"
	"errors"
)

// ErrConfig marks construction failures caused by the caller's input, such
// as a malformed instrument bank or an unsupported sample rate.
var ErrConfig = errors.New("engine: configuration error")

// PresetHeader describes one preset of the loaded instrument bank.
type PresetHeader struct {
	Name   string `json:"name"`
	Bank   int    `json:"bank"`
	Preset int    `json:"preset"`
}

// Engine is a constructed synthesizer instance.
//
// All methods except PresetHeaders must be bounded-time and must not block.
// Frame offsets are relative to the first frame of the next Render call.
type Engine interface {
	NoteOn(channel, key, velocity, frameOffset int)
	NoteOff(channel, key, frameOffset int)
	ProgramSelect(channel, bank, preset int)
	PresetHeaders() []PresetHeader

	// Render fills len(left) frames into left and right. Both slices have
	// the same length.
	Render(left, right []float32) error
}

// Factory constructs an engine from instrument bank bytes. It may be slow
// and is never called from the render goroutine.
type Factory func(bank []byte, sampleRate int) (Engine, error)

// Loader compiles or resolves engine module bytes into a Factory.
type Loader interface {
	Load(ctx context.Context, module []byte) (Factory, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, module []byte) (Factory, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, module []byte) (Factory, error) {
	return f(ctx, module)
}
