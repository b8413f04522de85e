// Package piano is the native synthesis engine behind the bridge: a pooled
// waveguide piano voiced by an instrument bank.
package piano

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cwbudde/sf-bridge/bank"
	"github.com/cwbudde/sf-bridge/engine"
	"github.com/cwbudde/sf-bridge/internal/wavio"
)

// Name is the engine name registered with engine.Register.
const Name = "piano"

const (
	// MaxChannels is the number of independently programmable channels.
	MaxChannels = 16
	// DefaultPolyphony is the voice pool size used by New.
	DefaultPolyphony = 32

	maxPending    = 1024
	minSampleRate = 8000
	maxSampleRate = 192000
)

// ErrUnstable is returned by Render when the voice mix stops being finite.
// All voices are silenced before it is returned.
var ErrUnstable = errors.New("piano: non-finite output")

func init() {
	engine.Register(Name, New)
}

// Piano is the engine managing programs, voice allocation and polyphony.
type Piano struct {
	sampleRate int
	bank       *bank.Bank
	fallback   *bank.Preset
	programs   [MaxChannels]*bank.Preset
	voices     []*Voice
	pending    eventQueue
	frame      int64
	serial     uint64
	mono       []float32
	body       *BodyConvolver
	outputGain float32
	headers    []engine.PresetHeader
}

// New parses bank bytes and constructs a piano. It satisfies engine.Factory.
func New(bankBytes []byte, sampleRate int) (engine.Engine, error) {
	b, err := bank.Parse(bankBytes)
	if err != nil {
		return nil, err
	}
	return NewPiano(b, sampleRate, DefaultPolyphony)
}

// NewPiano creates a new piano engine
func NewPiano(b *bank.Bank, sampleRate int, maxPolyphony int) (*Piano, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil instrument bank", engine.ErrConfig)
	}
	if sampleRate < minSampleRate || sampleRate > maxSampleRate {
		return nil, fmt.Errorf("%w: unsupported sample rate %d Hz (want %d..%d)", engine.ErrConfig, sampleRate, minSampleRate, maxSampleRate)
	}
	if maxPolyphony < 1 {
		maxPolyphony = 1
	}
	p := &Piano{
		sampleRate: sampleRate,
		bank:       b,
		fallback:   bank.DefaultPreset(),
		voices:     make([]*Voice, maxPolyphony),
		pending:    newEventQueue(maxPending),
		outputGain: b.OutputGain,
		headers:    b.Headers(),
		mono:       make([]float32, 128),
	}
	initial := p.fallback
	if len(b.Presets) > 0 {
		initial = b.Presets[0]
	}
	for ch := range p.programs {
		p.programs[ch] = initial
	}
	for i := range p.voices {
		p.voices[i] = newVoice(sampleRate)
	}
	if len(b.BodyIR) > 0 {
		ir, err := wavio.Resample(b.BodyIR, b.BodyIRRate, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("%w: resample body ir: %v", engine.ErrConfig, err)
		}
		body, err := NewBodyConvolver(ir)
		if err != nil {
			return nil, fmt.Errorf("%w: body ir: %v", engine.ErrConfig, err)
		}
		p.body = body
	}
	return p, nil
}

// SampleRate returns the rate the engine was constructed with.
func (p *Piano) SampleRate() int {
	return p.sampleRate
}

// NoteOn triggers a note frameOffset frames into the next Render call.
// Velocity 0 releases the key.
func (p *Piano) NoteOn(channel, key, velocity, frameOffset int) {
	if !validChannel(channel) || !validKey(key) {
		return
	}
	if velocity <= 0 {
		p.NoteOff(channel, key, frameOffset)
		return
	}
	if velocity > 127 {
		velocity = 127
	}
	p.schedule(event{
		frame:    p.frame + int64(max(frameOffset, 0)),
		kind:     evNoteOn,
		channel:  channel,
		key:      key,
		velocity: velocity,
		preset:   p.programs[channel],
	})
}

// NoteOff releases a note frameOffset frames into the next Render call.
func (p *Piano) NoteOff(channel, key, frameOffset int) {
	if !validChannel(channel) || !validKey(key) {
		return
	}
	p.schedule(event{
		frame:   p.frame + int64(max(frameOffset, 0)),
		kind:    evNoteOff,
		channel: channel,
		key:     key,
	})
}

// ProgramSelect switches the preset used by subsequent notes on channel.
// Unknown (bank, preset) pairs keep the current program.
func (p *Piano) ProgramSelect(channel, bankNum, preset int) {
	if !validChannel(channel) {
		return
	}
	if pr, ok := p.bank.Lookup(bankNum, preset); ok {
		p.programs[channel] = pr
	}
}

// PresetHeaders returns a copy of the bank's preset headers.
func (p *Piano) PresetHeaders() []engine.PresetHeader {
	return slices.Clone(p.headers)
}

// ActiveVoices returns the number of sounding voices.
func (p *Piano) ActiveVoices() int {
	n := 0
	for _, v := range p.voices {
		if v.active {
			n++
		}
	}
	return n
}

// Render renders one block. Pending events are applied at their exact frame
// by splitting the block.
func (p *Piano) Render(left, right []float32) error {
	n := len(left)
	if len(right) != n {
		return fmt.Errorf("piano: channel length mismatch %d != %d", n, len(right))
	}
	if n == 0 {
		return nil
	}
	if cap(p.mono) < n {
		p.mono = make([]float32, n)
	}
	mono := p.mono[:n]
	clear(mono)

	pos := 0
	for pos < n {
		now := p.frame + int64(pos)
		for p.pending.Len() > 0 && p.pending.peek().frame <= now {
			p.apply(p.pending.pop())
		}
		end := n
		if p.pending.Len() > 0 {
			if next := int(p.pending.peek().frame - p.frame); next < end {
				end = next
			}
		}
		for _, v := range p.voices {
			v.renderAdd(mono[pos:end])
		}
		pos = end
	}
	p.frame += int64(n)

	if p.body != nil {
		p.body.Process(mono)
	}
	for i, s := range mono {
		if !isFinite(s) {
			p.panic()
			clear(left)
			clear(right)
			return ErrUnstable
		}
		s *= p.outputGain
		left[i] = s
		right[i] = s
	}
	return nil
}

func (p *Piano) schedule(ev event) {
	if !p.pending.push(ev) {
		p.apply(ev)
	}
}

func (p *Piano) apply(ev event) {
	switch ev.kind {
	case evNoteOn:
		preset := ev.preset
		if preset == nil {
			preset = p.fallback
		}
		p.serial++
		p.allocVoice().start(ev.channel, ev.key, ev.velocity, preset, p.serial)
	case evNoteOff:
		for _, v := range p.voices {
			if v.active && v.channel == ev.channel && v.note == ev.key {
				v.release()
			}
		}
	}
}

// allocVoice picks a free voice, or steals the oldest one.
func (p *Piano) allocVoice() *Voice {
	var oldest *Voice
	for _, v := range p.voices {
		if !v.active {
			return v
		}
		if oldest == nil || v.serial < oldest.serial {
			oldest = v
		}
	}
	return oldest
}

// panic silences every voice and drops pending events.
func (p *Piano) panic() {
	for _, v := range p.voices {
		v.stop()
	}
	p.pending.clear()
	if p.body != nil {
		p.body.Reset()
	}
}

func validChannel(ch int) bool { return ch >= 0 && ch < MaxChannels }
func validKey(key int) bool    { return key >= 0 && key <= 127 }
