package wasmhost

import (
	"context"
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/cwbudde/sf-bridge/engine"
)

// Engine adapts one module instance to engine.Engine.
//
// Calls into the instance reuse a preallocated stack. A trap inside
// NoteOn, NoteOff or ProgramSelect is kept and returned by the next Render.
type Engine struct {
	ctx context.Context
	mod api.Module
	mem api.Memory

	noteOn        api.Function
	noteOff       api.Function
	programSelect api.Function
	render        api.Function

	stack   [4]uint64
	err     error
	headers []engine.PresetHeader
}

func instantiate(rt wazero.Runtime, compiled wazero.CompiledModule, bank []byte, sampleRate int, log *zap.Logger) (*Engine, error) {
	ctx := context.Background()
	// Anonymous so several engines can come from the same module.
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, fmt.Errorf("wasmhost: instantiate failed: %w", err)
	}
	e := &Engine{
		ctx:           ctx,
		mod:           mod,
		mem:           mod.Memory(),
		noteOn:        mod.ExportedFunction(exportNoteOn),
		noteOff:       mod.ExportedFunction(exportNoteOff),
		programSelect: mod.ExportedFunction(exportProgramSelect),
		render:        mod.ExportedFunction(exportRender),
	}
	if err := e.construct(bank, sampleRate); err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	log.Info("wasm engine constructed", zap.Int("sample_rate", sampleRate), zap.Int("presets", len(e.headers)))
	return e, nil
}

func (e *Engine) construct(bank []byte, sampleRate int) error {
	ptr, err := e.call1(exportAlloc, uint64(len(bank)))
	if err != nil {
		return err
	}
	if !e.mem.Write(ptr, bank) {
		return fmt.Errorf("wasmhost: bank of %d bytes does not fit at %#x", len(bank), ptr)
	}
	status, err := e.call(exportSynthNew, uint64(ptr), uint64(len(bank)), api.EncodeI32(int32(sampleRate)))
	if err != nil {
		return err
	}
	switch api.DecodeI32(status) {
	case synthOK:
	case synthConfigError:
		return fmt.Errorf("%w: engine module rejected bank or sample rate %d", engine.ErrConfig, sampleRate)
	default:
		return fmt.Errorf("wasmhost: synth_new failed with status %d", api.DecodeI32(status))
	}

	count, err := e.call(exportPresetCount)
	if err != nil {
		return err
	}
	n := int(api.DecodeI32(count))
	e.headers = make([]engine.PresetHeader, 0, max(n, 0))
	for i := 0; i < n; i++ {
		ptr, err := e.call1(exportPresetHeader, uint64(i))
		if err != nil {
			return err
		}
		h, err := decodeHeader(e.mem, ptr)
		if err != nil {
			return err
		}
		e.headers = append(e.headers, h)
	}
	return nil
}

// call invokes a construction-time export. It may allocate.
func (e *Engine) call(name string, params ...uint64) (uint64, error) {
	res, err := e.mod.ExportedFunction(name).Call(e.ctx, params...)
	if err != nil {
		return 0, fmt.Errorf("wasmhost: %s: %w", name, err)
	}
	if len(res) == 0 {
		return 0, nil
	}
	return res[0], nil
}

func (e *Engine) call1(name string, param uint64) (uint32, error) {
	res, err := e.call(name, param)
	return api.DecodeU32(res), err
}

func (e *Engine) invoke(fn api.Function, n int) {
	if err := fn.CallWithStack(e.ctx, e.stack[:n]); err != nil && e.err == nil {
		e.err = err
	}
}

// NoteOn implements engine.Engine.
func (e *Engine) NoteOn(channel, key, velocity, frameOffset int) {
	e.stack[0] = api.EncodeI32(int32(channel))
	e.stack[1] = api.EncodeI32(int32(key))
	e.stack[2] = api.EncodeI32(int32(velocity))
	e.stack[3] = api.EncodeI32(int32(frameOffset))
	e.invoke(e.noteOn, 4)
}

// NoteOff implements engine.Engine.
func (e *Engine) NoteOff(channel, key, frameOffset int) {
	e.stack[0] = api.EncodeI32(int32(channel))
	e.stack[1] = api.EncodeI32(int32(key))
	e.stack[2] = api.EncodeI32(int32(frameOffset))
	e.invoke(e.noteOff, 3)
}

// ProgramSelect implements engine.Engine.
func (e *Engine) ProgramSelect(channel, bank, preset int) {
	e.stack[0] = api.EncodeI32(int32(channel))
	e.stack[1] = api.EncodeI32(int32(bank))
	e.stack[2] = api.EncodeI32(int32(preset))
	e.invoke(e.programSelect, 3)
}

// PresetHeaders implements engine.Engine.
func (e *Engine) PresetHeaders() []engine.PresetHeader {
	return slices.Clone(e.headers)
}

// Render implements engine.Engine.
func (e *Engine) Render(left, right []float32) error {
	if err := e.err; err != nil {
		e.err = nil
		return fmt.Errorf("wasmhost: event call: %w", err)
	}
	n := len(left)
	if len(right) != n {
		return fmt.Errorf("wasmhost: channel length mismatch %d != %d", n, len(right))
	}
	e.stack[0] = api.EncodeI32(int32(n))
	if err := e.render.CallWithStack(e.ctx, e.stack[:1]); err != nil {
		return fmt.Errorf("wasmhost: render: %w", err)
	}
	data, ok := e.mem.Read(api.DecodeU32(e.stack[0]), uint32(8*n))
	if !ok {
		return fmt.Errorf("wasmhost: render buffer out of range")
	}
	decodePlanar(data, left, right)
	return nil
}

// Close releases the instance.
func (e *Engine) Close(ctx context.Context) error {
	return e.mod.Close(ctx)
}
