// Package wasmhost runs synthesis engines compiled to WebAssembly.
//
// An engine module must export its linear memory as "memory" and the
// following i32 functions:
//
//	alloc(size) -> ptr
//	synth_new(bank_ptr, bank_len, sample_rate) -> status  (0 ok, 1 config error)
//	note_on(channel, key, velocity, frame_offset)
//	note_off(channel, key, frame_offset)
//	program_select(channel, bank, preset)
//	preset_count() -> n
//	preset_header(i) -> ptr  (u16 bank, u16 preset, u16 name_len, name)
//	render(frames) -> ptr    (frames f32 left, then frames f32 right)
package wasmhost

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/cwbudde/sf-bridge/engine"
)

var (
	// ErrMissingExport is returned by Load when the module lacks part of
	// the engine ABI.
	ErrMissingExport = errors.New("wasmhost: missing export")
	// ErrSignature is returned by Load when an export has the wrong type.
	ErrSignature = errors.New("wasmhost: export signature mismatch")
)

// Options configures a Loader.
type Options struct {
	// MemoryLimitPages caps the linear memory of each instance (64 KiB
	// pages). Zero keeps the wazero default.
	MemoryLimitPages uint32
	Logger           *zap.Logger
}

// Loader compiles engine modules with wazero. It implements engine.Loader.
type Loader struct {
	opts Options
	log  *zap.Logger
}

// NewLoader returns a Loader.
func NewLoader(opts Options) *Loader {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{opts: opts, log: log.Named("wasmhost")}
}

// Load compiles module and validates its exports. Each call gets its own
// runtime, which lives as long as the engines built from the factory.
func (l *Loader) Load(ctx context.Context, module []byte) (engine.Factory, error) {
	cfg := wazero.NewRuntimeConfig()
	if l.opts.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(l.opts.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	compiled, err := rt.CompileModule(ctx, module)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("wasmhost: compile failed: %w", err)
	}
	if err := validateExports(compiled); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	l.log.Debug("engine module compiled", zap.Int("bytes", len(module)))

	return func(bank []byte, sampleRate int) (engine.Engine, error) {
		e, err := instantiate(rt, compiled, bank, sampleRate, l.log)
		if err != nil {
			return nil, err
		}
		return e, nil
	}, nil
}

func validateExports(compiled wazero.CompiledModule) error {
	if _, ok := compiled.ExportedMemories()[exportMemory]; !ok {
		return fmt.Errorf("%w: %s", ErrMissingExport, exportMemory)
	}
	funcs := compiled.ExportedFunctions()
	for _, name := range []string{
		exportAlloc, exportSynthNew, exportNoteOn, exportNoteOff,
		exportProgramSelect, exportPresetCount, exportPresetHeader, exportRender,
	} {
		def, ok := funcs[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingExport, name)
		}
		if err := checkSignature(name, def); err != nil {
			return err
		}
	}
	return nil
}
