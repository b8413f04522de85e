package bridge

// Message is a control message sent into the bridge with Send. The set of
// variants is closed: every variant is dispatched through handler, so a new
// variant does not compile until the control loop handles it.
type Message interface {
	// Type returns the wire tag of the message.
	Type() string
	accept(h handler)
}

type handler interface {
	loadEngineModule(LoadEngineModule)
	loadInstrumentBank(LoadInstrumentBank)
	initSynth(InitSynth)
	noteOn(NoteOn)
	noteOff(NoteOff)
	selectProgram(SelectProgram)
	queryPresetHeaders(QueryPresetHeaders)
}

// LoadEngineModule starts compilation of engine module bytes. Bank, when
// set, is buffered as if sent with LoadInstrumentBank.
type LoadEngineModule struct {
	Module []byte
	Bank   []byte
}

// LoadInstrumentBank buffers instrument bank bytes for the next InitSynth.
// It is accepted in every state.
type LoadInstrumentBank struct {
	Bank []byte
}

// InitSynth constructs the engine from the buffered bank. Bank, when set,
// replaces the buffered bank first.
type InitSynth struct {
	SampleRate int
	Bank       []byte
}

// NoteOn starts a note Delay seconds after the bridge receives it.
type NoteOn struct {
	Channel  int
	Key      int
	Velocity int
	Delay    float64
}

// NoteOff releases a note Delay seconds after the bridge receives it.
type NoteOff struct {
	Channel int
	Key     int
	Delay   float64
}

// SelectProgram switches the preset of a channel.
type SelectProgram struct {
	Channel int
	Bank    int
	Preset  int
}

// QueryPresetHeaders asks for a PresetHeadersGot acknowledgment.
type QueryPresetHeaders struct{}

func (LoadEngineModule) Type() string   { return "send-wasm-module" }
func (LoadInstrumentBank) Type() string { return "send-sf2-bytes" }
func (InitSynth) Type() string          { return "init-synth" }
func (NoteOn) Type() string             { return "send-note-on-event" }
func (NoteOff) Type() string            { return "send-note-off-event" }
func (SelectProgram) Type() string      { return "program-select" }
func (QueryPresetHeaders) Type() string { return "get-preset-headers" }

func (m LoadEngineModule) accept(h handler)   { h.loadEngineModule(m) }
func (m LoadInstrumentBank) accept(h handler) { h.loadInstrumentBank(m) }
func (m InitSynth) accept(h handler)          { h.initSynth(m) }
func (m NoteOn) accept(h handler)             { h.noteOn(m) }
func (m NoteOff) accept(h handler)            { h.noteOff(m) }
func (m SelectProgram) accept(h handler)      { h.selectProgram(m) }
func (m QueryPresetHeaders) accept(h handler) { h.queryPresetHeaders(m) }
