package wasmhost

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/cwbudde/sf-bridge/engine"
)

const (
	testBankPtr   = 1024
	testHeaderPtr = 2048
	testHeaderLen = 16
	testRenderPtr = 4096
)

// testRenderBlock is the planar block returned by render for two frames.
var testRenderBlock = [2][2]float32{{0.5, -0.25}, {1, 0.125}}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, payload []byte) []byte {
	return append(append([]byte{id}, uleb(uint32(len(payload)))...), payload...)
}

func wasmName(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func funcType(params, results int) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint32(params))...)
	for range params {
		out = append(out, 0x7f)
	}
	out = append(out, uleb(uint32(results))...)
	for range results {
		out = append(out, 0x7f)
	}
	return out
}

func funcBody(code ...byte) []byte {
	fn := append([]byte{0x00}, code...) // no locals
	fn = append(fn, 0x0b)
	return append(uleb(uint32(len(fn))), fn...)
}

func i32Const(v int32) []byte { return append([]byte{0x41}, sleb(v)...) }

func dataSegment(offset int32, data []byte) []byte {
	out := []byte{0x00}
	out = append(out, i32Const(offset)...)
	out = append(out, 0x0b)
	return append(out, vec(bytesOf(data)...)...)
}

func bytesOf(data []byte) [][]byte {
	out := make([][]byte, len(data))
	for i := range data {
		out[i] = data[i : i+1]
	}
	return out
}

func headerRecord(bank, preset uint16, label string) []byte {
	rec := make([]byte, testHeaderLen)
	binary.LittleEndian.PutUint16(rec[0:], bank)
	binary.LittleEndian.PutUint16(rec[2:], preset)
	binary.LittleEndian.PutUint16(rec[4:], uint16(len(label)))
	copy(rec[headerPrefixSize:], label)
	return rec
}

// abiModule assembles a complete engine module. synth_new returns the
// first bank byte as its status, note_on traps on key 0 and render always
// returns testRenderBlock.
func abiModule() []byte {
	const (
		typeI32ToI32 = iota
		typeSynthNew
		typeNoteOn
		typeThreeArgs
		typeCount
	)
	exports := []string{
		exportAlloc, exportSynthNew, exportNoteOn, exportNoteOff,
		exportProgramSelect, exportPresetCount, exportPresetHeader, exportRender,
	}
	funcTypes := []byte{
		typeI32ToI32, typeSynthNew, typeNoteOn, typeThreeArgs,
		typeThreeArgs, typeCount, typeI32ToI32, typeI32ToI32,
	}

	exportEntries := [][]byte{append(wasmName(exportMemory), 0x02, 0x00)}
	for i, n := range exports {
		exportEntries = append(exportEntries, append(wasmName(n), 0x00, byte(i)))
	}

	var headers []byte
	headers = append(headers, headerRecord(0, 0, "Grand")...)
	headers = append(headers, headerRecord(8, 1, "Felt")...)

	var block []byte
	for _, ch := range testRenderBlock {
		for _, s := range ch {
			block = binary.LittleEndian.AppendUint32(block, math.Float32bits(s))
		}
	}

	headerAt := []byte{0x20, 0x00}
	headerAt = append(headerAt, i32Const(testHeaderLen)...)
	headerAt = append(headerAt, 0x6c) // i32.mul
	headerAt = append(headerAt, i32Const(testHeaderPtr)...)
	headerAt = append(headerAt, 0x6a) // i32.add

	codes := [][]byte{
		funcBody(i32Const(testBankPtr)...),
		funcBody(0x20, 0x00, 0x2d, 0x00, 0x00),             // i32.load8_u bank[0]
		funcBody(0x20, 0x01, 0x45, 0x04, 0x40, 0x00, 0x0b), // key == 0: unreachable
		funcBody(),
		funcBody(),
		funcBody(i32Const(2)...),
		funcBody(headerAt...),
		funcBody(i32Const(testRenderPtr)...),
	}

	mod := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}
	mod = append(mod, section(0x01, vec(
		funcType(1, 1), funcType(3, 1), funcType(4, 0), funcType(3, 0), funcType(0, 1),
	))...)
	mod = append(mod, section(0x03, vec(bytesOf(funcTypes)...))...)
	mod = append(mod, section(0x05, vec([]byte{0x00, 0x01}))...)
	mod = append(mod, section(0x07, vec(exportEntries...))...)
	mod = append(mod, section(0x0a, vec(codes...))...)
	mod = append(mod, section(0x0b, vec(
		dataSegment(testHeaderPtr, headers),
		dataSegment(testRenderPtr, block),
	))...)
	return mod
}

func loadABIModule(t *testing.T) engine.Factory {
	t.Helper()
	f, err := NewLoader(Options{MemoryLimitPages: 4}).Load(context.Background(), abiModule())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return f
}

func newABIEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := loadABIModule(t)([]byte{synthOK, 'b', 'a', 'n', 'k'}, 48000)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	we := e.(*Engine)
	t.Cleanup(func() { _ = we.Close(context.Background()) })
	return we
}

func TestFactoryReportsSynthStatus(t *testing.T) {
	f := loadABIModule(t)
	if _, err := f([]byte{synthConfigError}, 48000); !errors.Is(err, engine.ErrConfig) {
		t.Fatalf("status 1: got=%v want ErrConfig", err)
	}
	_, err := f([]byte{7}, 48000)
	if err == nil || errors.Is(err, engine.ErrConfig) || !strings.Contains(err.Error(), "status 7") {
		t.Fatalf("status 7: got=%v want non-config failure", err)
	}
	if _, err := f([]byte{synthOK}, 48000); err != nil {
		t.Fatalf("status 0 after failures: %v", err)
	}
}

func TestEngineReadsPresetHeaders(t *testing.T) {
	e := newABIEngine(t)
	want := []engine.PresetHeader{
		{Name: "Grand", Bank: 0, Preset: 0},
		{Name: "Felt", Bank: 8, Preset: 1},
	}
	got := e.PresetHeaders()
	if len(got) != len(want) {
		t.Fatalf("headers: got=%+v want=%+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("header %d: got=%+v want=%+v", i, got[i], want[i])
		}
	}
	got[0].Name = "changed"
	if e.PresetHeaders()[0].Name != "Grand" {
		t.Fatalf("PresetHeaders exposed internal state")
	}
}

func TestEngineRendersPlanarBlock(t *testing.T) {
	e := newABIEngine(t)
	e.NoteOn(0, 60, 100, 0)
	e.NoteOff(0, 60, 1)
	e.ProgramSelect(0, 8, 1)

	left := make([]float32, 2)
	right := make([]float32, 2)
	if err := e.Render(left, right); err != nil {
		t.Fatalf("Render: %v", err)
	}
	for i := range left {
		if left[i] != testRenderBlock[0][i] || right[i] != testRenderBlock[1][i] {
			t.Fatalf("frame %d: got=(%g,%g) want=(%g,%g)",
				i, left[i], right[i], testRenderBlock[0][i], testRenderBlock[1][i])
		}
	}

	if err := e.Render(left, make([]float32, 1)); err == nil {
		t.Fatalf("expected channel length mismatch")
	}
}

func TestEventTrapSurfacesOnNextRender(t *testing.T) {
	e := newABIEngine(t)
	e.NoteOn(0, 0, 100, 0)

	left := make([]float32, 2)
	right := make([]float32, 2)
	err := e.Render(left, right)
	if err == nil || !strings.Contains(err.Error(), "event call") {
		t.Fatalf("first Render: got=%v want event call error", err)
	}
	if err := e.Render(left, right); err != nil {
		t.Fatalf("second Render: %v", err)
	}
	if left[0] != testRenderBlock[0][0] {
		t.Fatalf("left[0]: got=%g want=%g", left[0], testRenderBlock[0][0])
	}
}
