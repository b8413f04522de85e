package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cwbudde/sf-bridge/engine"
)

// ErrUnknownMessage is returned when decoding a message or acknowledgment
// with an unrecognized type tag.
var ErrUnknownMessage = errors.New("bridge: unknown message type")

// wireMessage is the JSON form of every Message. Byte fields are base64.
type wireMessage struct {
	Type       string  `json:"type"`
	WasmBytes  []byte  `json:"wasmBytes,omitempty"`
	SF2Bytes   []byte  `json:"sf2Bytes,omitempty"`
	SampleRate int     `json:"sampleRate,omitempty"`
	Channel    int     `json:"channel,omitempty"`
	Key        int     `json:"key,omitempty"`
	Vel        int     `json:"vel,omitempty"`
	DelayTime  float64 `json:"delayTime,omitempty"`
	BankNum    int     `json:"bank_num,omitempty"`
	PresetNum  int     `json:"preset_num,omitempty"`
}

// DecodeMessage parses a JSON control message.
func DecodeMessage(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("bridge: decode message: %w", err)
	}
	switch w.Type {
	case LoadEngineModule{}.Type():
		return LoadEngineModule{Module: w.WasmBytes, Bank: w.SF2Bytes}, nil
	case LoadInstrumentBank{}.Type():
		return LoadInstrumentBank{Bank: w.SF2Bytes}, nil
	case InitSynth{}.Type():
		return InitSynth{SampleRate: w.SampleRate, Bank: w.SF2Bytes}, nil
	case NoteOn{}.Type():
		return NoteOn{Channel: w.Channel, Key: w.Key, Velocity: w.Vel, Delay: w.DelayTime}, nil
	case NoteOff{}.Type():
		return NoteOff{Channel: w.Channel, Key: w.Key, Delay: w.DelayTime}, nil
	case SelectProgram{}.Type():
		return SelectProgram{Channel: w.Channel, Bank: w.BankNum, Preset: w.PresetNum}, nil
	case QueryPresetHeaders{}.Type():
		return QueryPresetHeaders{}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMessage, w.Type)
	}
}

// EncodeMessage renders m as JSON.
func EncodeMessage(m Message) ([]byte, error) {
	if m == nil {
		return nil, errors.New("bridge: encode nil message")
	}
	enc := &messageEncoder{w: wireMessage{Type: m.Type()}}
	m.accept(enc)
	return json.Marshal(enc.w)
}

type messageEncoder struct {
	w wireMessage
}

func (e *messageEncoder) loadEngineModule(m LoadEngineModule) {
	e.w.WasmBytes = m.Module
	e.w.SF2Bytes = m.Bank
}

func (e *messageEncoder) loadInstrumentBank(m LoadInstrumentBank) {
	e.w.SF2Bytes = m.Bank
}

func (e *messageEncoder) initSynth(m InitSynth) {
	e.w.SampleRate = m.SampleRate
	e.w.SF2Bytes = m.Bank
}

func (e *messageEncoder) noteOn(m NoteOn) {
	e.w.Channel, e.w.Key, e.w.Vel, e.w.DelayTime = m.Channel, m.Key, m.Velocity, m.Delay
}

func (e *messageEncoder) noteOff(m NoteOff) {
	e.w.Channel, e.w.Key, e.w.DelayTime = m.Channel, m.Key, m.Delay
}

func (e *messageEncoder) selectProgram(m SelectProgram) {
	e.w.Channel, e.w.BankNum, e.w.PresetNum = m.Channel, m.Bank, m.Preset
}

func (e *messageEncoder) queryPresetHeaders(QueryPresetHeaders) {}

type wireAck struct {
	Type          string                `json:"type"`
	Error         string                `json:"error,omitempty"`
	SampleRate    int                   `json:"sampleRate,omitempty"`
	PresetHeaders []engine.PresetHeader `json:"presetHeaders,omitempty"`
}

// presetHeadersAck keeps an empty header list on the wire as [].
type presetHeadersAck struct {
	Type          string                `json:"type"`
	PresetHeaders []engine.PresetHeader `json:"presetHeaders"`
}

// EncodeAck renders a as JSON.
func EncodeAck(a Ack) ([]byte, error) {
	switch a := a.(type) {
	case ModuleLoaded:
		return json.Marshal(wireAck{Type: a.Type()})
	case ModuleLoadFailed:
		return json.Marshal(wireAck{Type: a.Type(), Error: errString(a.Err)})
	case SynthInitialized:
		return json.Marshal(wireAck{Type: a.Type(), SampleRate: a.SampleRate})
	case SynthInitFailed:
		return json.Marshal(wireAck{Type: a.Type(), Error: errString(a.Err)})
	case PresetHeadersGot:
		headers := a.Headers
		if headers == nil {
			headers = []engine.PresetHeader{}
		}
		return json.Marshal(presetHeadersAck{Type: a.Type(), PresetHeaders: headers})
	default:
		return nil, fmt.Errorf("%w %T", ErrUnknownMessage, a)
	}
}

// DecodeAck parses a JSON acknowledgment. Errors are restored as opaque
// error values carrying the original text.
func DecodeAck(data []byte) (Ack, error) {
	var w wireAck
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("bridge: decode ack: %w", err)
	}
	switch w.Type {
	case ModuleLoaded{}.Type():
		return ModuleLoaded{}, nil
	case ModuleLoadFailed{}.Type():
		return ModuleLoadFailed{Err: errors.New(w.Error)}, nil
	case SynthInitialized{}.Type():
		return SynthInitialized{SampleRate: w.SampleRate}, nil
	case SynthInitFailed{}.Type():
		return SynthInitFailed{Err: errors.New(w.Error)}, nil
	case PresetHeadersGot{}.Type():
		headers := w.PresetHeaders
		if headers == nil {
			headers = []engine.PresetHeader{}
		}
		return PresetHeadersGot{Headers: headers}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMessage, w.Type)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
