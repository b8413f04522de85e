package wasmhost

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/cwbudde/sf-bridge/engine"
)

// Exported function names of the engine module ABI.
const (
	exportMemory        = "memory"
	exportAlloc         = "alloc"
	exportSynthNew      = "synth_new"
	exportNoteOn        = "note_on"
	exportNoteOff       = "note_off"
	exportProgramSelect = "program_select"
	exportPresetCount   = "preset_count"
	exportPresetHeader  = "preset_header"
	exportRender        = "render"
)

// synth_new result codes.
const (
	synthOK          = 0
	synthConfigError = 1
)

// headerPrefixSize is the fixed part of a preset header record:
// u16 bank, u16 preset, u16 name length, all little endian.
const headerPrefixSize = 6

type signature struct {
	params  int
	results int
}

// abi lists the required function exports. All parameters and results are
// i32.
var abi = map[string]signature{
	exportAlloc:         {params: 1, results: 1},
	exportSynthNew:      {params: 3, results: 1},
	exportNoteOn:        {params: 4, results: 0},
	exportNoteOff:       {params: 3, results: 0},
	exportProgramSelect: {params: 3, results: 0},
	exportPresetCount:   {params: 0, results: 1},
	exportPresetHeader:  {params: 1, results: 1},
	exportRender:        {params: 1, results: 1},
}

func checkSignature(name string, def api.FunctionDefinition) error {
	want := abi[name]
	params, results := def.ParamTypes(), def.ResultTypes()
	ok := len(params) == want.params && len(results) == want.results
	for _, t := range params {
		ok = ok && t == api.ValueTypeI32
	}
	for _, t := range results {
		ok = ok && t == api.ValueTypeI32
	}
	if !ok {
		return fmt.Errorf("%w: %s takes %d and returns %d i32 values", ErrSignature, name, want.params, want.results)
	}
	return nil
}

// decodeHeader parses a preset header record from mem at ptr.
func decodeHeader(mem api.Memory, ptr uint32) (engine.PresetHeader, error) {
	prefix, ok := mem.Read(ptr, headerPrefixSize)
	if !ok {
		return engine.PresetHeader{}, fmt.Errorf("wasmhost: preset header at %#x out of range", ptr)
	}
	h := engine.PresetHeader{
		Bank:   int(binary.LittleEndian.Uint16(prefix[0:])),
		Preset: int(binary.LittleEndian.Uint16(prefix[2:])),
	}
	nameLen := uint32(binary.LittleEndian.Uint16(prefix[4:]))
	name, ok := mem.Read(ptr+headerPrefixSize, nameLen)
	if !ok {
		return engine.PresetHeader{}, fmt.Errorf("wasmhost: preset name at %#x out of range", ptr)
	}
	h.Name = string(name)
	return h, nil
}

// decodePlanar splits planar little-endian f32 data (left block, then right
// block) into left and right.
func decodePlanar(data []byte, left, right []float32) {
	n := len(left)
	for i := range left {
		left[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		right[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*(n+i):]))
	}
}
