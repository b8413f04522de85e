package bridge

import "github.com/cwbudde/sf-bridge/engine"

// Ack is an acknowledgment emitted by the bridge on the channel returned by
// Acks.
type Ack interface {
	// Type returns the wire tag of the acknowledgment.
	Type() string
	isAck()
}

// ModuleLoaded reports that the engine module compiled.
type ModuleLoaded struct{}

// ModuleLoadFailed reports a compilation failure. The bridge stays in
// EngineBytesPending and accepts another LoadEngineModule.
type ModuleLoadFailed struct {
	Err error
}

// SynthInitialized reports that the engine was constructed.
type SynthInitialized struct {
	SampleRate int
}

// SynthInitFailed reports a construction failure. The bridge stays in
// EngineLoaded.
type SynthInitFailed struct {
	Err error
}

// PresetHeadersGot answers QueryPresetHeaders. Headers is never nil.
type PresetHeadersGot struct {
	Headers []engine.PresetHeader
}

func (ModuleLoaded) Type() string     { return "wasm-module-loaded" }
func (ModuleLoadFailed) Type() string { return "wasm-module-failed" }
func (SynthInitialized) Type() string { return "synth-initialized" }
func (SynthInitFailed) Type() string  { return "synth-init-failed" }
func (PresetHeadersGot) Type() string { return "preset-headers-got" }

func (ModuleLoaded) isAck()     {}
func (ModuleLoadFailed) isAck() {}
func (SynthInitialized) isAck() {}
func (SynthInitFailed) isAck()  {}
func (PresetHeadersGot) isAck() {}
