package bridge

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/cwbudde/sf-bridge/engine"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		in   string
		want Message
	}{
		{`{"type":"send-wasm-module","wasmBytes":"cGlhbm8=","sf2Bytes":"YmFuaw=="}`,
			LoadEngineModule{Module: []byte("piano"), Bank: []byte("bank")}},
		{`{"type":"send-sf2-bytes","sf2Bytes":"YmFuaw=="}`,
			LoadInstrumentBank{Bank: []byte("bank")}},
		{`{"type":"init-synth","sampleRate":44100}`,
			InitSynth{SampleRate: 44100}},
		{`{"type":"send-note-on-event","channel":2,"key":60,"vel":100,"delayTime":0.01}`,
			NoteOn{Channel: 2, Key: 60, Velocity: 100, Delay: 0.01}},
		{`{"type":"send-note-off-event","key":60,"delayTime":0.5}`,
			NoteOff{Key: 60, Delay: 0.5}},
		{`{"type":"program-select","bank_num":1,"preset_num":4}`,
			SelectProgram{Bank: 1, Preset: 4}},
		{`{"type":"get-preset-headers"}`,
			QueryPresetHeaders{}},
	}
	for _, tt := range tests {
		got, err := DecodeMessage([]byte(tt.in))
		if err != nil {
			t.Fatalf("DecodeMessage(%s): %v", tt.in, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("DecodeMessage(%s): got=%#v want=%#v", tt.in, got, tt.want)
		}
	}
}

func TestDecodeMessageRejectsUnknownType(t *testing.T) {
	for _, in := range []string{`{"type":"reset-synth"}`, `{}`} {
		if _, err := DecodeMessage([]byte(in)); !errors.Is(err, ErrUnknownMessage) {
			t.Fatalf("DecodeMessage(%s): got=%v want ErrUnknownMessage", in, err)
		}
	}
	if _, err := DecodeMessage([]byte(`{"type":`)); err == nil || errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestEncodeMessageUsesWireNames(t *testing.T) {
	data, err := EncodeMessage(NoteOn{Channel: 1, Key: 61, Velocity: 70, Delay: 0.25})
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]any{"type": "send-note-on-event", "channel": 1.0, "key": 61.0, "vel": 70.0, "delayTime": 0.25}
	if !reflect.DeepEqual(fields, want) {
		t.Fatalf("fields: got=%v want=%v", fields, want)
	}

	msg, err := DecodeMessage(data)
	if err != nil || msg != (NoteOn{Channel: 1, Key: 61, Velocity: 70, Delay: 0.25}) {
		t.Fatalf("decode of encoded message: got=%#v err=%v", msg, err)
	}
}

func TestEncodeAck(t *testing.T) {
	tests := []struct {
		ack  Ack
		want string
	}{
		{ModuleLoaded{}, `{"type":"wasm-module-loaded"}`},
		{ModuleLoadFailed{Err: errors.New("bad magic")}, `{"type":"wasm-module-failed","error":"bad magic"}`},
		{SynthInitialized{SampleRate: 48000}, `{"type":"synth-initialized","sampleRate":48000}`},
		{SynthInitFailed{Err: ErrNoBank}, `{"type":"synth-init-failed","error":"` + ErrNoBank.Error() + `"}`},
		{PresetHeadersGot{}, `{"type":"preset-headers-got","presetHeaders":[]}`},
		{PresetHeadersGot{Headers: []engine.PresetHeader{{Name: "Grand", Bank: 0, Preset: 1}}},
			`{"type":"preset-headers-got","presetHeaders":[{"name":"Grand","bank":0,"preset":1}]}`},
	}
	for _, tt := range tests {
		got, err := EncodeAck(tt.ack)
		if err != nil {
			t.Fatalf("EncodeAck(%T): %v", tt.ack, err)
		}
		if string(got) != tt.want {
			t.Fatalf("EncodeAck(%T): got=%s want=%s", tt.ack, got, tt.want)
		}
	}
}

func TestDecodeAck(t *testing.T) {
	a, err := DecodeAck([]byte(`{"type":"synth-init-failed","error":"no bank"}`))
	if err != nil {
		t.Fatalf("DecodeAck: %v", err)
	}
	failed, ok := a.(SynthInitFailed)
	if !ok || failed.Err == nil || !strings.Contains(failed.Err.Error(), "no bank") {
		t.Fatalf("unexpected ack %#v", a)
	}

	a, err = DecodeAck([]byte(`{"type":"preset-headers-got","presetHeaders":[]}`))
	if err != nil {
		t.Fatalf("DecodeAck: %v", err)
	}
	if got := a.(PresetHeadersGot); got.Headers == nil || len(got.Headers) != 0 {
		t.Fatalf("expected empty header list, got %#v", got.Headers)
	}

	if _, err := DecodeAck([]byte(`{"type":"synth-exploded"}`)); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}
}
